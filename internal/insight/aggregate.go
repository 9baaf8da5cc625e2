package insight

import (
	"math"

	"github.com/radiusdt/adsight/internal/models"
)

// AggregationResult is the output of Aggregate: Total for single shapes,
// Groups for comparisons.
type AggregationResult struct {
	Shape  models.Shape
	Total  *models.Aggregate
	Groups map[string]*models.Aggregate
}

// Aggregate sums the (already filtered) records according to shape and
// computes every derived metric. A comparison without a recognised dimension
// is aggregated as a single total. records is read only.
func Aggregate(records []models.Record, shape models.Shape) *AggregationResult {
	if !shape.IsGrouped() {
		total := &models.Aggregate{}
		for i := range records {
			accumulate(total, &records[i])
		}
		calculateDerivedMetrics(total)
		return &AggregationResult{Shape: shape, Total: total}
	}

	groups := make(map[string]*models.Aggregate)
	for i := range records {
		key, _ := records[i].DimensionValue(shape.Dimension)
		agg, ok := groups[key]
		if !ok {
			agg = &models.Aggregate{}
			groups[key] = agg
		}
		accumulate(agg, &records[i])
	}
	for _, agg := range groups {
		calculateDerivedMetrics(agg)
	}
	return &AggregationResult{Shape: shape, Groups: groups}
}

func accumulate(agg *models.Aggregate, r *models.Record) {
	agg.Rows++
	agg.Spend += r.Spend
	agg.Revenue += r.Revenue
	agg.Impressions += r.Impressions
	agg.VideoStarts += r.VideoStarts
	agg.Views3s += r.Views3s
	agg.Views25 += r.Views25
	agg.Views50 += r.Views50
	agg.Views100 += r.Views100
	agg.Clicks += r.Clicks
	agg.Conversions += r.Conversions
}

// calculateDerivedMetrics fills the ratio fields from the summed counters.
// ROAS is rounded to a whole multiple because answers display it as "8x";
// every other ratio keeps two decimals.
func calculateDerivedMetrics(agg *models.Aggregate) {
	agg.ROAS = math.Round(safeDiv(agg.Revenue, agg.Spend))
	agg.CTR = round2(safeDiv(float64(agg.Clicks), float64(agg.Impressions)) * 100)
	agg.CPA = round2(safeDiv(agg.Spend, float64(agg.Conversions)))
	agg.ConversionRate = round2(safeDiv(float64(agg.Conversions), float64(agg.Clicks)) * 100)
	agg.CompletionRate = round2(safeDiv(float64(agg.Views100), float64(agg.VideoStarts)) * 100)
	agg.CPM = round2(safeDiv(agg.Spend, float64(agg.Impressions)) * 1000)
}

// safeDiv returns 0 for a zero denominator instead of NaN or Inf.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
