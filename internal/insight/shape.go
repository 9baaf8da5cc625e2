package insight

import (
	"regexp"
	"strings"

	"github.com/radiusdt/adsight/internal/models"
)

var (
	groupByPattern = regexp.MustCompile(`(?is)\bGROUP\s+BY\s+(.*)`)
	// clauseEnd marks where a grouping list stops.
	clauseEnd = regexp.MustCompile(`(?i)\b(HAVING|ORDER\s+BY|LIMIT|OFFSET|UNION|WINDOW)\b|;|\)`)
)

// DetectShape classifies a query as a single aggregate or a comparison over
// one dimension. Only the first recognised grouping column is used.
func DetectShape(sql string) models.Shape {
	m := groupByPattern.FindStringSubmatch(sql)
	if m == nil {
		return models.Shape{Kind: models.ShapeSingle}
	}

	list := m[1]
	if loc := clauseEnd.FindStringIndex(list); loc != nil {
		list = list[:loc[0]]
	}

	for _, item := range strings.Split(list, ",") {
		if col := normalizeColumn(item); models.IsDimension(col) {
			return models.Shape{Kind: models.ShapeComparison, Dimension: col}
		}
	}
	return models.Shape{Kind: models.ShapeComparison}
}

// normalizeColumn strips qualifiers and quoting: `v."Platform"` -> platform.
func normalizeColumn(item string) string {
	item = strings.TrimSpace(item)
	if i := strings.LastIndex(item, "."); i >= 0 {
		item = item[i+1:]
	}
	item = strings.Trim(item, "\"`[] \t\n")
	return strings.ToLower(item)
}
