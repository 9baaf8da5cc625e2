package insight

import "strings"

var strategyKeywords = []string{
	"invest", "budget", "allocate", "reallocate", "shift", "optimize", "optimise",
	"improve", "maximize", "maximise", "should i", "what should", "how can i",
	"recommend", "suggestion", "advice", "strategy", "best way",
}

// IsStrategyQuestion reports whether the question asks for a budget action
// (cut, add, reallocate) rather than a description of performance.
func IsStrategyQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range strategyKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
