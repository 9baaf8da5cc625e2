package insight

import (
	"regexp"

	"github.com/radiusdt/adsight/internal/models"
)

// goalRule maps a goal to the words that define it. Rules are checked in
// slice order, so an awareness keyword beats an engagement keyword in the
// same question.
type goalRule struct {
	goal    models.Goal
	pattern *regexp.Regexp
}

var goalRules = []goalRule{
	{
		goal:    models.GoalAwareness,
		pattern: regexp.MustCompile(`(?i)\b(reach|impressions?|visibility|brand|branding|cpm|exposure|awareness)\b`),
	},
	{
		goal: models.GoalEngagement,
		pattern: regexp.MustCompile(`(?i)\b(clicks?|ctr|traffic|engagement|engaged|video completion|completion rate|` +
			`watch(ed|ing)?|watch time|(increase|maintain) traffic)\b`),
	},
	{
		goal:    models.GoalConversion,
		pattern: regexp.MustCompile(`(?i)\b(sales|sale|revenue|roas|roi|cpa|purchases?|invest(ment|ing)?|budget)\b`),
	},
}

// followUpPattern matches language that only makes sense against an earlier
// turn: pronouns, superlative references, continuations and comparisons.
var followUpPattern = regexp.MustCompile(`(?i)\b(there|it|that|those|the best one|highest|lowest|` +
	`which one|what about|both|all of them|the same)\b`)

// ResolveGoal classifies the optimization goal of a question. prior is the
// most recent goal from the conversation, or nil. The result is never empty.
func ResolveGoal(question string, prior *models.Goal) models.Goal {
	for _, rule := range goalRules {
		if rule.pattern.MatchString(question) {
			return rule.goal
		}
	}
	if prior != nil && IsFollowUp(question) {
		return *prior
	}
	return models.DefaultGoal
}

// IsFollowUp reports whether a question leans on an earlier turn.
func IsFollowUp(question string) bool {
	return followUpPattern.MatchString(question)
}

// PriorGoal scans history from the newest entry to the oldest and returns the
// first valid goal tag it finds.
func PriorGoal(history []models.HistoryMessage) *models.Goal {
	for i := len(history) - 1; i >= 0; i-- {
		if g, ok := models.ParseGoal(history[i].Goal); ok {
			return &g
		}
	}
	return nil
}
