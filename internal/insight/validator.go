package insight

import (
	"strings"

	"github.com/radiusdt/adsight/internal/models"
)

// deniedKeywords are matched as case-insensitive substrings, so a column such
// as "updated_at" is rejected too. The dataset has no such columns.
var deniedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"EXEC", "TRUNCATE", "GRANT", "REVOKE",
}

// ValidateQuery checks that generated query text is a single read-only
// statement against the dataset table. Rules run in order and the first
// failure is returned as a *ValidationError.
func ValidateQuery(sql string) error {
	text := strings.TrimSpace(sql)
	upper := strings.ToUpper(text)

	if !strings.HasPrefix(upper, "SELECT") {
		return &ValidationError{Rule: RuleReadOnly, Reason: "only read-only queries allowed"}
	}

	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return &ValidationError{Rule: RuleDenyList, Reason: "forbidden keyword " + kw}
		}
	}

	if n := strings.Count(text, ";"); n > 1 {
		return &ValidationError{Rule: RuleMultiStatement, Reason: "multiple statements are not allowed"}
	} else if n == 1 {
		// A single terminator is only allowed at the very end.
		if rest := text[strings.Index(text, ";")+1:]; strings.TrimSpace(rest) != "" {
			return &ValidationError{Rule: RuleMultiStatement, Reason: "multiple statements are not allowed"}
		}
	}

	if !strings.Contains(strings.ToLower(text), models.TableName) {
		return &ValidationError{Rule: RuleTable, Reason: "query must read from " + models.TableName}
	}

	return nil
}
