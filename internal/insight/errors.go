package insight

import "fmt"

// Rule names reported by ValidationError.
const (
	RuleReadOnly       = "read_only"
	RuleDenyList       = "deny_list"
	RuleMultiStatement = "multi_statement"
	RuleTable          = "table"
)

// ValidationError is returned when generated query text is not a single safe
// read-only statement against the dataset table.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason
}

// ExecutionError wraps a failure to fetch or process records.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RenderError wraps an answer renderer failure. The pipeline recovers from it
// with FallbackSummary and never surfaces it.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// UnhandledError covers everything else, including generator failures and
// recovered panics.
type UnhandledError struct {
	Err error
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled: %v", e.Err)
}

func (e *UnhandledError) Unwrap() error { return e.Err }
