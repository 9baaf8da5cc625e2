package insight

import (
	"context"

	"github.com/radiusdt/adsight/internal/models"
)

// GenerateRequest is what the query generator needs to write a query.
type GenerateRequest struct {
	Question  string
	History   []models.HistoryMessage
	PriorGoal *models.Goal
}

// QueryGenerator turns a question into either a GOAL/SQL block or a
// conversational reply.
type QueryGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// RecordSource returns every record of a reporting period. All further
// filtering happens in memory.
type RecordSource interface {
	FetchPeriod(ctx context.Context, period string) ([]models.Record, error)
}

// RenderRequest carries everything the answer renderer is given.
type RenderRequest struct {
	Question string
	History  []models.HistoryMessage
	SQL      string
	Result   *AggregationResult
	Goal     models.Goal
	Metrics  []models.Metric
	Strategy bool
}

// AnswerRenderer writes the natural-language answer.
type AnswerRenderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}
