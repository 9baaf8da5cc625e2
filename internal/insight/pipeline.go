// Package insight answers natural-language questions about the
// video_ad_performance dataset. It resolves the question's goal, has an
// external generator write a query, validates that query, re-implements its
// filtering and grouping in memory and hands the aggregates to an external
// renderer.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/models"
)

// State is a step of a single Ask call.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateGoalResolved   State = "GOAL_RESOLVED"
	StateQueryGenerated State = "QUERY_GENERATED"
	StateValidated      State = "VALIDATED"
	StateExecuted       State = "EXECUTED"
	StateComplete       State = "COMPLETE"
	StateNonQuery       State = "NON_QUERY"
	StateFailed         State = "FAILED"
)

// Caller-facing messages. Internal error text never leaves the pipeline.
const (
	MessageValidation = "I couldn't turn that into a safe query. Please rephrase your question."
	MessageExecution  = "I couldn't retrieve the data for that question. Try rephrasing it, for example " +
		"\"Which platform has the best ROAS?\" or \"Compare CTR by region\"."
	MessageUnhandled = "Sorry, something went wrong while answering your question. Please try again."
)

// Config holds the pipeline's collaborators.
type Config struct {
	Logger    *zap.Logger
	Generator QueryGenerator
	Source    RecordSource
	// Renderer may be nil, in which case every answer is the fallback summary.
	Renderer AnswerRenderer
	Metrics  *metrics.Metrics
	// Period is the report_month fetched from the record source (YYYY-MM-DD).
	Period string
}

// Pipeline sequences goal resolution, query generation, validation,
// extraction, aggregation and rendering. It keeps no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

// AskRequest is one conversation turn.
type AskRequest struct {
	Question  string
	History   []models.HistoryMessage
	RequestID string
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("query generator is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if cfg.Period == "" {
		return nil, fmt.Errorf("reporting period is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}, nil
}

// run tracks one Ask call through the state machine.
type run struct {
	requestID string
	state     State
	started   time.Time
}

// Ask answers one question. It never returns an error: every failure is
// turned into a Result with Success=false and a safe message.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (res *models.Result) {
	r := &run{requestID: req.RequestID, state: StateReceived, started: time.Now()}
	if r.requestID == "" {
		r.requestID = uuid.NewString()
	}
	res = &models.Result{RequestID: r.requestID, Goal: models.DefaultGoal}

	defer func() {
		if rec := recover(); rec != nil {
			p.fail(r, res, &UnhandledError{Err: fmt.Errorf("panic: %v", rec)})
		}
		res.State = string(r.state)
		if p.metrics != nil {
			p.metrics.RecordAsk(res.State, string(res.Goal), time.Since(r.started))
		}
	}()

	// Goal is resolved exactly once per request.
	prior := PriorGoal(req.History)
	goal := ResolveGoal(req.Question, prior)
	strategy := IsStrategyQuestion(req.Question)
	res.Goal = goal
	p.transition(r, StateGoalResolved, zap.String("goal", string(goal)), zap.Bool("strategy", strategy))

	start := time.Now()
	text, err := p.cfg.Generator.Generate(ctx, GenerateRequest{
		Question:  req.Question,
		History:   req.History,
		PriorGoal: prior,
	})
	p.observeCall("generate", start, err)
	if err != nil {
		p.fail(r, res, &UnhandledError{Err: fmt.Errorf("query generation: %w", err)})
		return res
	}

	gen := ParseGeneration(text)
	p.transition(r, StateQueryGenerated, zap.String("generated_goal", string(gen.Goal)))

	if !gen.IsQuery() {
		r.state = StateNonQuery
		p.log.Debug("generator returned a conversational reply", zap.String("request_id", r.requestID))
		res.Success = true
		res.Answer = gen.Reply
		return res
	}

	if err := ValidateQuery(gen.SQL); err != nil {
		p.fail(r, res, err)
		return res
	}
	sql := gen.SQL
	res.SQL = &sql

	intent := models.QueryIntent{
		SQL:           sql,
		GeneratedGoal: gen.Goal,
		Valid:         true,
		Filters:       ExtractFilters(sql),
		Shape:         DetectShape(sql),
	}
	p.transition(r, StateValidated,
		zap.String("shape", string(intent.Shape.Kind)),
		zap.String("dimension", intent.Shape.Dimension),
		zap.Any("filters", intent.Filters),
	)

	agg, err := p.execute(ctx, intent)
	if err != nil {
		p.fail(r, res, err)
		return res
	}
	p.transition(r, StateExecuted, zap.Int("groups", len(agg.Groups)))

	selected := SelectMetrics(sql, req.Question, &goal)
	res.Answer = p.render(ctx, r, RenderRequest{
		Question: req.Question,
		History:  req.History,
		SQL:      sql,
		Result:   agg,
		Goal:     goal,
		Metrics:  selected,
		Strategy: strategy,
	})
	res.Success = true
	if agg.Shape.IsGrouped() {
		res.Visualization = &models.Visualization{
			Type:      models.ShapeComparison,
			Dimension: agg.Shape.Dimension,
			Metrics:   selected,
			Goal:      goal,
			Data:      agg.Groups,
		}
	}
	p.transition(r, StateComplete)
	return res
}

// execute fetches the period and re-applies the query's filters and grouping.
func (p *Pipeline) execute(ctx context.Context, intent models.QueryIntent) (*AggregationResult, error) {
	start := time.Now()
	records, err := p.cfg.Source.FetchPeriod(ctx, p.cfg.Period)
	p.observeCall("fetch", start, err)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	if p.metrics != nil {
		p.metrics.RecordRecordsFetched(len(records))
	}

	filtered := Filters(intent.Filters).Apply(records)
	return Aggregate(filtered, intent.Shape), nil
}

// render asks the renderer for an answer and falls back to the deterministic
// summary when it fails or returns nothing usable.
func (p *Pipeline) render(ctx context.Context, r *run, req RenderRequest) string {
	if p.cfg.Renderer == nil {
		return FallbackSummary(req.Result)
	}

	start := time.Now()
	answer, err := p.cfg.Renderer.Render(ctx, req)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errors.New("empty answer")
	}
	p.observeCall("render", start, err)
	if err != nil {
		renderErr := &RenderError{Err: err}
		p.log.Warn("answer renderer failed, using fallback summary",
			zap.String("request_id", r.requestID),
			zap.Error(renderErr),
		)
		if p.metrics != nil {
			p.metrics.RecordRenderFallback()
		}
		return FallbackSummary(req.Result)
	}
	return strings.TrimSpace(answer)
}

func (p *Pipeline) transition(r *run, next State, fields ...zap.Field) {
	r.state = next
	p.log.Debug("pipeline state",
		append([]zap.Field{zap.String("request_id", r.requestID), zap.String("state", string(next))}, fields...)...,
	)
}

// fail moves the run to FAILED and fills res with the caller-safe message
// for err.
func (p *Pipeline) fail(r *run, res *models.Result, err error) {
	from := r.state
	r.state = StateFailed
	res.Success = false
	res.Visualization = nil

	var (
		validationErr *ValidationError
		executionErr  *ExecutionError
	)
	switch {
	case errors.As(err, &validationErr):
		res.SQL = nil
		res.Answer = MessageValidation
		if p.metrics != nil {
			p.metrics.RecordValidationRejection(validationErr.Rule)
		}
	case errors.As(err, &executionErr):
		res.Answer = MessageExecution
	default:
		res.Answer = MessageUnhandled
	}

	p.log.Warn("pipeline failed",
		zap.String("request_id", r.requestID),
		zap.String("from_state", string(from)),
		zap.Error(err),
	)
}

func (p *Pipeline) observeCall(call string, start time.Time, err error) {
	d := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.log.Info("external call completed",
		zap.String("call", call),
		zap.String("status", status),
		zap.Duration("duration", d),
	)
	if p.metrics != nil {
		p.metrics.RecordExternalCall(call, status, d)
	}
}
