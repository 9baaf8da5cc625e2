package insight

import (
	"regexp"
	"strings"

	"github.com/radiusdt/adsight/internal/models"
)

// Filters maps a dimension column to the values a query restricts it to.
// A missing key means the column is unrestricted.
type Filters map[string][]string

type columnPatterns struct {
	equality  *regexp.Regexp
	inclusion *regexp.Regexp
}

var (
	wherePattern = regexp.MustCompile(`(?is)\bWHERE\b(.*)`)
	// whereEnd marks where a WHERE clause stops. Parentheses are not a
	// boundary since IN lists use them.
	whereEnd = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|ORDER\s+BY|LIMIT|OFFSET|UNION|WINDOW)\b|;`)
	// caseExpression matches a non-nested CASE ... END.
	caseExpression = regexp.MustCompile(`(?is)\bCASE\b.*?\bEND\b`)
)

var filterPatterns = func() map[string]columnPatterns {
	out := make(map[string]columnPatterns, len(models.Dimensions))
	for _, col := range models.Dimensions {
		out[col] = columnPatterns{
			equality:  regexp.MustCompile(`(?i)\b` + col + `\s*=\s*'([^']*)'`),
			inclusion: regexp.MustCompile(`(?i)\b` + col + `\s+IN\s*\(([^)]*)\)`),
		}
	}
	return out
}()

// ExtractFilter returns the literal values sql restricts column to, or nil
// when the column is unrestricted. Only `column = 'v'` and
// `column IN ('a', 'b')` inside the WHERE clause are recognised; ranges,
// negations, CASE expressions and HAVING predicates are treated as
// unrestricted.
func ExtractFilter(sql, column string) []string {
	p, ok := filterPatterns[column]
	if !ok {
		return nil
	}
	sql = whereClause(sql)
	if sql == "" {
		return nil
	}

	if m := p.inclusion.FindStringSubmatch(sql); m != nil {
		if values := splitLiteralList(m[1]); len(values) > 0 {
			return values
		}
	}
	if m := p.equality.FindStringSubmatch(sql); m != nil {
		return []string{m[1]}
	}
	return nil
}

// whereClause returns the body of the first WHERE clause with CASE
// expressions removed, or "" when there is none.
func whereClause(sql string) string {
	m := wherePattern.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	clause := m[1]
	if loc := whereEnd.FindStringIndex(clause); loc != nil {
		clause = clause[:loc[0]]
	}
	return caseExpression.ReplaceAllString(clause, " ")
}

// ExtractFilters runs ExtractFilter for every known dimension.
func ExtractFilters(sql string) Filters {
	f := Filters{}
	for _, col := range models.Dimensions {
		if values := ExtractFilter(sql, col); values != nil {
			f[col] = values
		}
	}
	return f
}

// Match reports whether a record passes every dimension filter. Values are
// compared case-insensitively.
func (f Filters) Match(r *models.Record) bool {
	for col, allowed := range f {
		v, ok := r.DimensionValue(col)
		if !ok {
			continue
		}
		if !containsFold(allowed, v) {
			return false
		}
	}
	return true
}

// Apply returns the records that pass the filters. The input slice is not
// modified; with no filters it is returned as is.
func (f Filters) Apply(records []models.Record) []models.Record {
	if len(f) == 0 {
		return records
	}
	out := make([]models.Record, 0, len(records))
	for i := range records {
		if f.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func splitLiteralList(s string) []string {
	var values []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 || part[0] != '\'' || part[len(part)-1] != '\'' {
			continue
		}
		values = append(values, part[1:len(part)-1])
	}
	return values
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
