package models

import "strings"

// ===========================================
// GOAL
// ===========================================

// Goal is the optimization objective inferred for a conversation turn.
type Goal string

const (
	GoalAwareness  Goal = "AWARENESS"
	GoalEngagement Goal = "ENGAGEMENT"
	GoalConversion Goal = "CONVERSION"
)

// DefaultGoal applies when nothing in the question or history says otherwise.
const DefaultGoal = GoalConversion

// ParseGoal normalizes a goal tag. ok is false for anything that is not one
// of the three known goals.
func ParseGoal(s string) (Goal, bool) {
	switch g := Goal(strings.ToUpper(strings.TrimSpace(s))); g {
	case GoalAwareness, GoalEngagement, GoalConversion:
		return g, true
	}
	return "", false
}

// ===========================================
// SHAPE
// ===========================================

// ShapeKind tells whether a query produces one aggregate or one per group.
type ShapeKind string

const (
	ShapeSingle     ShapeKind = "single"
	ShapeComparison ShapeKind = "comparison"
)

// Shape is the detected result shape. Dimension is empty for single shapes
// and for comparisons whose grouping column was not recognised.
type Shape struct {
	Kind      ShapeKind `json:"kind"`
	Dimension string    `json:"dimension,omitempty"`
}

// IsGrouped reports whether the shape groups by a known dimension.
func (s Shape) IsGrouped() bool {
	return s.Kind == ShapeComparison && s.Dimension != ""
}

// ===========================================
// METRICS
// ===========================================

// Metric identifies a metric (or metric bundle) to foreground in an answer.
type Metric string

const (
	MetricFinancial      Metric = "financial" // revenue, spend and ROAS together
	MetricImpressions    Metric = "impressions"
	MetricCPM            Metric = "cpm"
	MetricCTR            Metric = "ctr"
	MetricCompletionRate Metric = "completion_rate"
	MetricVideoFunnel    Metric = "video_funnel"
	MetricConversionRate Metric = "conversion_rate"
	MetricCPA            Metric = "cpa"
	MetricConversions    Metric = "conversions"
	MetricClicks         Metric = "clicks"
	MetricSpend          Metric = "spend"
	MetricRevenue        Metric = "revenue"
	MetricROAS           Metric = "roas"
)

// ===========================================
// QUERY INTENT
// ===========================================

// QueryIntent is everything derived from one generated query. It lives for a
// single request.
type QueryIntent struct {
	SQL string
	// GeneratedGoal is the goal tag the generator echoed back. The goal
	// resolved before generation stays authoritative.
	GeneratedGoal Goal
	Valid         bool
	Filters       map[string][]string
	Shape         Shape
}
