package insight

import (
	"regexp"
	"strings"

	"github.com/radiusdt/adsight/internal/models"
)

// goalMetrics is the metric set each goal foregrounds. It takes precedence
// over the keyword cascade whenever a goal is known.
var goalMetrics = map[models.Goal][]models.Metric{
	models.GoalAwareness:  {models.MetricImpressions, models.MetricCPM},
	models.GoalEngagement: {models.MetricCTR},
	models.GoalConversion: {models.MetricFinancial},
}

type metricRule struct {
	pattern *regexp.Regexp
	metrics []models.Metric
}

// metricCascade is checked top to bottom; the first match wins.
var metricCascade = []metricRule{
	{re(`completion rate|completion_rate|vcr|video completion|complete rate|views_100\s*/`), []models.Metric{models.MetricCompletionRate}},
	{re(`funnel|retention|drop[- ]?off|quartile|views_25|views_50|views_3s|3[- ]?s(econd)?\b|hook rate`), []models.Metric{models.MetricVideoFunnel}},
	{re(`\bctr\b|click[- ]through`), []models.Metric{models.MetricCTR}},
	{re(`conversion rate|\bcvr\b`), []models.Metric{models.MetricConversionRate}},
	{re(`\bcpa\b|cost per (acquisition|conversion)`), []models.Metric{models.MetricCPA}},
	{re(`\bcpm\b|cost per (thousand|mille)`), []models.Metric{models.MetricCPM}},
}

var (
	countWords = []struct {
		pattern *regexp.Regexp
		metric  models.Metric
	}{
		{re(`\bconversions?\b`), models.MetricConversions},
		{re(`\bclicks?\b`), models.MetricClicks},
		{re(`\bimpressions?\b`), models.MetricImpressions},
	}
	moneyWords = []struct {
		pattern *regexp.Regexp
		metric  models.Metric
	}{
		{re(`\bspend\b|\bspent\b|\bcost\b`), models.MetricSpend},
		{re(`\brevenue\b|\bsales\b`), models.MetricRevenue},
	}

	roasPattern        = re(`\broas\b|return on ad spend`)
	strategyPattern    = re(`invest|budget|allocat|strategy|should i|recommend`)
	performancePattern = re(`perform|compar|\bbest\b|\bworst\b|\bvs\.?\b|versus|\btop\b`)
	videoPattern       = re(`\bvideo\b`)
	tableReference     = re(regexp.QuoteMeta(models.TableName))
)

// SelectMetrics returns the metrics to foreground when presenting an answer.
// A known goal decides on its own; without one the query text and question
// are run through a keyword cascade. Exactly one list is returned and it
// never affects which metrics are computed.
func SelectMetrics(sql, question string, goal *models.Goal) []models.Metric {
	if goal != nil {
		if metrics, ok := goalMetrics[*goal]; ok {
			return append([]models.Metric(nil), metrics...)
		}
	}
	// The table name alone would read as performance language.
	return cascadeMetrics(tableReference.ReplaceAllString(sql, "") + "\n" + question)
}

func cascadeMetrics(text string) []models.Metric {
	for _, rule := range metricCascade {
		if rule.pattern.MatchString(text) {
			return append([]models.Metric(nil), rule.metrics...)
		}
	}

	var counts []models.Metric
	for _, w := range countWords {
		if w.pattern.MatchString(text) {
			counts = append(counts, w.metric)
		}
	}
	if len(counts) > 0 {
		return counts
	}

	var money []models.Metric
	for _, w := range moneyWords {
		if w.pattern.MatchString(text) {
			money = append(money, w.metric)
		}
	}
	if len(money) > 0 {
		return money
	}

	switch {
	case roasPattern.MatchString(text):
		return []models.Metric{models.MetricROAS}
	case strategyPattern.MatchString(text):
		return []models.Metric{models.MetricFinancial, models.MetricCPA}
	case performancePattern.MatchString(text):
		if videoPattern.MatchString(text) {
			return []models.Metric{models.MetricCompletionRate, models.MetricVideoFunnel}
		}
		return []models.Metric{models.MetricFinancial, models.MetricCTR}
	}
	return []models.Metric{models.MetricFinancial}
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + strings.TrimSpace(expr))
}
