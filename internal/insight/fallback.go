package insight

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/radiusdt/adsight/internal/models"
)

var printer = message.NewPrinter(language.English)

// FallbackSummary renders aggregation results without the answer renderer.
// Groups are listed by ROAS, best first, ties broken by name.
func FallbackSummary(res *AggregationResult) string {
	if res == nil {
		return "No data available for this question."
	}

	var sb strings.Builder
	if !res.Shape.IsGrouped() {
		sb.WriteString("Here is the overall performance:\n")
		writeLine(&sb, "Overall", res.Total)
		return strings.TrimRight(sb.String(), "\n")
	}

	if len(res.Groups) == 0 {
		return "No matching data was found for this question."
	}

	keys := SortedGroupKeys(res.Groups)
	printer.Fprintf(&sb, "Here is the performance by %s:\n", strings.ReplaceAll(res.Shape.Dimension, "_", " "))
	for _, k := range keys {
		name := k
		if name == "" {
			name = "Unknown"
		}
		writeLine(&sb, name, res.Groups[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SortedGroupKeys orders group keys by ROAS descending, then by name.
func SortedGroupKeys(groups map[string]*models.Aggregate) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := groups[keys[i]], groups[keys[j]]
		if a.ROAS != b.ROAS {
			return a.ROAS > b.ROAS
		}
		return keys[i] < keys[j]
	})
	return keys
}

func writeLine(sb *strings.Builder, name string, agg *models.Aggregate) {
	if agg == nil {
		agg = &models.Aggregate{}
	}
	printer.Fprintf(sb, "- %s: ROAS %.0fx, spend $%.2f, revenue $%.2f, CTR %.2f%%\n",
		name, agg.ROAS, agg.Spend, agg.Revenue, agg.CTR)
}
