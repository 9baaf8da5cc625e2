package insight

import (
	"regexp"
	"strings"

	"github.com/radiusdt/adsight/internal/models"
)

var (
	goalMarker = regexp.MustCompile(`(?i)GOAL:\s*([A-Za-z_]*)`)
	sqlMarker  = regexp.MustCompile(`(?i)SQL:`)
	fence      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	selectWord = regexp.MustCompile(`(?i)\bselect\b`)
)

// Generation is a parsed query-generator response.
type Generation struct {
	Goal models.Goal
	SQL  string
	// Reply is the text shown to the caller when the response is not a
	// query: the body after the SQL marker, or the whole response.
	Reply string
	Raw   string
}

// IsQuery reports whether the response carries query text rather than a
// conversational reply. SELECT must appear as a whole word, so identifiers
// such as "selected" do not count.
func (g Generation) IsQuery() bool {
	return selectWord.MatchString(g.SQL)
}

// ParseGeneration splits a generator response into its goal tag and query
// text. When either marker is missing the whole response is taken as query
// text and the goal defaults to CONVERSION.
func ParseGeneration(response string) Generation {
	raw := strings.TrimSpace(response)
	gen := Generation{Goal: models.DefaultGoal, SQL: raw, Reply: raw, Raw: raw}

	gm := goalMarker.FindStringSubmatchIndex(raw)
	sm := sqlMarker.FindStringIndex(raw)
	if gm != nil && sm != nil {
		if g, ok := models.ParseGoal(raw[gm[2]:gm[3]]); ok {
			gen.Goal = g
		}
		gen.SQL = raw[sm[1]:]
		if gm[0] > sm[1] {
			gen.SQL = raw[sm[1]:gm[0]]
		}
		if reply := strings.TrimSpace(gen.SQL); reply != "" {
			gen.Reply = reply
		}
	}

	gen.SQL = cleanSQL(gen.SQL)
	return gen
}

func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(strings.Trim(s, "`"))
}
