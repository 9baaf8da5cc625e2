package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/models"
)

type fakeGenerator struct {
	response string
	err      error
	got      GenerateRequest
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	f.calls++
	f.got = req
	return f.response, f.err
}

type fakeSource struct {
	records []models.Record
	err     error
	panic   bool
	period  string
	calls   int
}

func (f *fakeSource) FetchPeriod(_ context.Context, period string) ([]models.Record, error) {
	f.calls++
	f.period = period
	if f.panic {
		panic("boom")
	}
	return f.records, f.err
}

type fakeRenderer struct {
	answer string
	err    error
	got    RenderRequest
	calls  int
}

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) (string, error) {
	f.calls++
	f.got = req
	return f.answer, f.err
}

type pipelineFixture struct {
	gen      *fakeGenerator
	source   *fakeSource
	renderer *fakeRenderer
	metrics  *metrics.Metrics
	pipeline *Pipeline
}

func newFixture(t *testing.T, response string) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		gen:      &fakeGenerator{response: response},
		source:   &fakeSource{records: sampleRecords()},
		renderer: &fakeRenderer{answer: "Meta leads with an 8x ROAS."},
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	p, err := New(Config{
		Logger:    zap.NewNop(),
		Generator: f.gen,
		Source:    f.source,
		Renderer:  f.renderer,
		Metrics:   f.metrics,
		Period:    "2025-10-01",
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

const groupedResponse = "GOAL: CONVERSION\n" +
	"SQL: SELECT platform, SUM(revenue) / SUM(spend) AS roas FROM video_ad_performance GROUP BY platform ORDER BY roas DESC"

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{Source: &fakeSource{}, Period: "2025-10-01"})
	assert.Error(t, err)

	_, err = New(Config{Generator: &fakeGenerator{}, Period: "2025-10-01"})
	assert.Error(t, err)

	_, err = New(Config{Generator: &fakeGenerator{}, Source: &fakeSource{}})
	assert.Error(t, err)

	p, err := New(Config{Generator: &fakeGenerator{}, Source: &fakeSource{}, Period: "2025-10-01"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestAsk_GroupedComparison(t *testing.T) {
	f := newFixture(t, groupedResponse)

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Which platform has the best ROAS?", RequestID: "req-1"})

	require.True(t, res.Success)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, string(StateComplete), res.State)
	assert.Equal(t, models.GoalConversion, res.Goal)
	assert.Equal(t, "Meta leads with an 8x ROAS.", res.Answer)
	require.NotNil(t, res.SQL)
	assert.Contains(t, *res.SQL, "GROUP BY platform")

	require.NotNil(t, res.Visualization)
	assert.Equal(t, models.ShapeComparison, res.Visualization.Type)
	assert.Equal(t, models.DimensionPlatform, res.Visualization.Dimension)
	assert.Equal(t, []models.Metric{models.MetricFinancial}, res.Visualization.Metrics)
	assert.Len(t, res.Visualization.Data, 2)
	assert.Equal(t, 8.0, res.Visualization.Data["Meta"].ROAS)

	assert.Equal(t, "2025-10-01", f.source.period)
	assert.Equal(t, models.GoalConversion, f.renderer.got.Goal)
	assert.False(t, f.renderer.got.Strategy)
	assert.Nil(t, f.gen.got.PriorGoal)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Asks.WithLabelValues("COMPLETE", "CONVERSION")))
}

func TestAsk_FollowUpKeepsPriorGoal(t *testing.T) {
	f := newFixture(t, "GOAL: AWARENESS\nSQL: SELECT SUM(spend) FROM video_ad_performance WHERE platform = 'Meta'")
	history := []models.HistoryMessage{
		{Role: "user", Content: "Which platform has the most impressions?"},
		{Role: "assistant", Content: "Meta had the most impressions.", Goal: "AWARENESS"},
	}

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "How much for the best one?", History: history})

	require.True(t, res.Success)
	assert.Equal(t, models.GoalAwareness, res.Goal)
	assert.NotEmpty(t, res.RequestID)
	assert.Nil(t, res.Visualization, "single results have no visualization")

	require.NotNil(t, f.gen.got.PriorGoal)
	assert.Equal(t, models.GoalAwareness, *f.gen.got.PriorGoal)
	assert.Len(t, f.gen.got.History, 2)

	total := f.renderer.got.Result.Total
	require.NotNil(t, total)
	assert.Equal(t, 100.0, total.Spend, "only Meta records are aggregated")
	assert.Equal(t, []models.Metric{models.MetricImpressions, models.MetricCPM}, f.renderer.got.Metrics)
}

func TestAsk_StrategyQuestion(t *testing.T) {
	f := newFixture(t, groupedResponse)

	f.pipeline.Ask(context.Background(), AskRequest{Question: "Where should I invest more budget?"})

	assert.True(t, f.renderer.got.Strategy)
	assert.Equal(t, models.GoalConversion, f.renderer.got.Goal)
}

func TestAsk_ValidationFailure(t *testing.T) {
	f := newFixture(t, "GOAL: CONVERSION\nSQL: WITH t AS (SELECT * FROM video_ad_performance) SELECT * FROM t")

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Remove everything"})

	assert.False(t, res.Success)
	assert.Equal(t, string(StateFailed), res.State)
	assert.Equal(t, MessageValidation, res.Answer)
	assert.Nil(t, res.SQL)
	assert.Nil(t, res.Visualization)
	assert.Zero(t, f.source.calls, "invalid queries never reach the record source")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ValidationRejections.WithLabelValues(RuleReadOnly)))
}

func TestAsk_ExecutionFailure(t *testing.T) {
	f := newFixture(t, groupedResponse)
	f.source.err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Which platform has the best ROAS?"})

	assert.False(t, res.Success)
	assert.Equal(t, MessageExecution, res.Answer)
	assert.NotContains(t, res.Answer, "10.0.0.5")
	assert.NotNil(t, res.SQL)
	assert.Zero(t, f.renderer.calls)
}

func TestAsk_GeneratorFailure(t *testing.T) {
	f := newFixture(t, "")
	f.gen.err = errors.New("upstream 529 overloaded")

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Show impressions by region"})

	assert.False(t, res.Success)
	assert.Equal(t, MessageUnhandled, res.Answer)
	assert.Equal(t, models.GoalAwareness, res.Goal)
	assert.Zero(t, f.source.calls)
}

func TestAsk_RenderFailureFallsBack(t *testing.T) {
	f := newFixture(t, groupedResponse)
	f.renderer.err = errors.New("timeout")

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Which platform has the best ROAS?"})

	require.True(t, res.Success)
	assert.Contains(t, res.Answer, "Here is the performance by platform:")
	assert.Contains(t, res.Answer, "- Meta: ROAS 8x")
	assert.NotNil(t, res.Visualization)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RenderFallbacks))
}

func TestAsk_EmptyRenderFallsBack(t *testing.T) {
	f := newFixture(t, groupedResponse)
	f.renderer.answer = "   "

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "Which platform has the best ROAS?"})

	require.True(t, res.Success)
	assert.Contains(t, res.Answer, "Here is the performance by platform:")
}

func TestAsk_NilRendererUsesFallback(t *testing.T) {
	source := &fakeSource{records: sampleRecords()}
	p, err := New(Config{
		Generator: &fakeGenerator{response: "SELECT SUM(spend) FROM video_ad_performance"},
		Source:    source,
		Period:    "2025-10-01",
	})
	require.NoError(t, err)

	res := p.Ask(context.Background(), AskRequest{Question: "Total spend?"})

	require.True(t, res.Success)
	assert.Contains(t, res.Answer, "Here is the overall performance:")
}

func TestAsk_NonQuery(t *testing.T) {
	reply := "I can only help with questions about video ad performance."
	f := newFixture(t, reply)

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "What's the weather?"})

	assert.True(t, res.Success)
	assert.Equal(t, string(StateNonQuery), res.State)
	assert.Equal(t, reply, res.Answer)
	assert.Nil(t, res.SQL)
	assert.Nil(t, res.Visualization)
	assert.Zero(t, f.source.calls)
	assert.Zero(t, f.renderer.calls)
}

func TestAsk_NonQueryWithMarkers(t *testing.T) {
	f := newFixture(t, "GOAL: CONVERSION\nSQL: Could you tell me which platform you mean?")

	res := f.pipeline.Ask(context.Background(), AskRequest{Question: "How did it do?"})

	assert.True(t, res.Success)
	assert.Equal(t, string(StateNonQuery), res.State)
	assert.Equal(t, "Could you tell me which platform you mean?", res.Answer)
	assert.NotContains(t, res.Answer, "GOAL:")
	assert.Zero(t, f.source.calls)
}

func TestAsk_RecoversPanic(t *testing.T) {
	f := newFixture(t, groupedResponse)
	f.source.panic = true

	var res *models.Result
	assert.NotPanics(t, func() {
		res = f.pipeline.Ask(context.Background(), AskRequest{Question: "Which platform has the best ROAS?"})
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, string(StateFailed), res.State)
	assert.Equal(t, MessageUnhandled, res.Answer)
}
