package models

// HistoryMessage is one earlier turn as echoed back by the caller.
type HistoryMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
	Goal    string `json:"goal,omitempty"`
}

// Visualization describes how a comparison result can be charted.
type Visualization struct {
	Type      ShapeKind             `json:"type"`
	Dimension string                `json:"dimension"`
	Metrics   []Metric              `json:"metrics"`
	Goal      Goal                  `json:"goal"`
	Data      map[string]*Aggregate `json:"data"`
}

// Result is returned to the caller for every question. Goal is meant to be
// sent back on the next turn as part of the history.
type Result struct {
	RequestID     string         `json:"request_id"`
	Success       bool           `json:"success"`
	SQL           *string        `json:"sql"`
	Answer        string         `json:"answer"`
	Visualization *Visualization `json:"visualization"`
	Goal          Goal           `json:"goal"`
	State         string         `json:"state"`
}
