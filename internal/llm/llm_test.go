package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/models"
)

type fakeClient struct {
	resp string
	err  error
	got  CompletionRequest
}

func (f *fakeClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.got = req
	return f.resp, f.err
}

func loadPrompts(t *testing.T) *Prompts {
	t.Helper()
	p, err := LoadPrompts()
	require.NoError(t, err)
	return p
}

func sampleResult() *insight.AggregationResult {
	records := []models.Record{
		{Platform: "TikTok", Spend: 50, Revenue: 100, Impressions: 5000, Clicks: 50},
		{Platform: "Meta", Spend: 100, Revenue: 800, Impressions: 10000, Clicks: 200, Conversions: 10},
	}
	return insight.Aggregate(records, models.Shape{Kind: models.ShapeComparison, Dimension: models.DimensionPlatform})
}

func TestPrompts_GenerateSystem(t *testing.T) {
	system, err := loadPrompts(t).GenerateSystem("2025-10-01")
	require.NoError(t, err)

	assert.Contains(t, system, "video_ad_performance")
	assert.Contains(t, system, "Meta, TikTok, YouTube, Snapchat")
	assert.Contains(t, system, "North America, Europe, Asia Pacific, Latin America")
	assert.Contains(t, system, "2025-10-01")
	assert.Contains(t, system, "GOAL: <AWARENESS|ENGAGEMENT|CONVERSION>")
}

func TestPrompts_RenderSystem(t *testing.T) {
	p := loadPrompts(t)

	describe, err := p.RenderSystem(false, models.GoalEngagement, []models.Metric{models.MetricCompletionRate, models.MetricCTR})
	require.NoError(t, err)
	assert.Contains(t, describe, "analyst")
	assert.Contains(t, describe, "ENGAGEMENT")
	assert.Contains(t, describe, "completion rate, ctr")

	strategy, err := p.RenderSystem(true, models.GoalConversion, []models.Metric{models.MetricFinancial})
	require.NoError(t, err)
	assert.Contains(t, strategy, "strategist")
	assert.Contains(t, strategy, "CONVERSION")
}

func TestGeneratePrompt(t *testing.T) {
	prior := models.GoalAwareness
	assert.Equal(t,
		"Previous query goal: AWARENESS\n\nQuestion: How much for the best one?",
		GeneratePrompt(" How much for the best one? ", &prior))
	assert.Equal(t, "Question: Show spend", GeneratePrompt("Show spend", nil))
}

func TestQueryGenerator_Generate(t *testing.T) {
	client := &fakeClient{resp: "GOAL: CONVERSION\nSQL: SELECT 1 FROM video_ad_performance"}
	gen, err := NewQueryGenerator(client, loadPrompts(t), "2025-10-01", 512)
	require.NoError(t, err)

	history := []models.HistoryMessage{{Role: "user", Content: "Hi"}, {Role: "assistant", Content: "Hello"}}
	resp, err := gen.Generate(context.Background(), insight.GenerateRequest{Question: "Best ROAS?", History: history})

	require.NoError(t, err)
	assert.Equal(t, client.resp, resp)
	assert.Equal(t, int64(512), client.got.MaxTokens)
	assert.Equal(t, "Question: Best ROAS?", client.got.Prompt)
	assert.Equal(t, history, client.got.History)
	assert.Contains(t, client.got.System, "video_ad_performance")
}

func TestQueryGenerator_Error(t *testing.T) {
	client := &fakeClient{err: errors.New("overloaded")}
	gen, err := NewQueryGenerator(client, loadPrompts(t), "2025-10-01", 512)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), insight.GenerateRequest{Question: "x"})
	assert.ErrorContains(t, err, "overloaded")
}

func TestAnswerRenderer_Render(t *testing.T) {
	client := &fakeClient{resp: "Meta wins."}
	r := NewAnswerRenderer(client, loadPrompts(t), 1024)

	answer, err := r.Render(context.Background(), insight.RenderRequest{
		Question: "Which platform has the best ROAS?",
		SQL:      "SELECT platform FROM video_ad_performance GROUP BY platform",
		Result:   sampleResult(),
		Goal:     models.GoalConversion,
		Metrics:  []models.Metric{models.MetricFinancial},
		Strategy: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "Meta wins.", answer)
	assert.Contains(t, client.got.System, "strategist")
	assert.Contains(t, client.got.Prompt, "Question: Which platform has the best ROAS?")
	assert.Contains(t, client.got.Prompt, "GROUP BY platform")

	meta := strings.Index(client.got.Prompt, `"name": "Meta"`)
	tiktok := strings.Index(client.got.Prompt, `"name": "TikTok"`)
	assert.True(t, meta > 0 && tiktok > meta, "best ROAS first")
}

func TestFormatData(t *testing.T) {
	data, err := FormatData(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, data, `"shape": "comparison"`)
	assert.Contains(t, data, `"dimension": "platform"`)
	assert.Contains(t, data, `"roas": 8`)
	assert.NotContains(t, data, `"total"`)

	single := insight.Aggregate([]models.Record{{Spend: 10, Revenue: 60}}, models.Shape{Kind: models.ShapeSingle})
	data, err = FormatData(single)
	require.NoError(t, err)
	assert.Contains(t, data, `"total"`)
	assert.Contains(t, data, `"roas": 6`)

	data, err = FormatData(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", data)
}

func TestConversation(t *testing.T) {
	history := []models.HistoryMessage{
		{Role: "assistant", Content: "Welcome!"},
		{Role: "user", Content: "Show spend"},
		{Role: "user", Content: "by platform"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "Meta spent most."},
	}

	turns := conversation(history, "And revenue?")

	require.Len(t, turns, 3)
	assert.Equal(t, turn{user: true, text: "Show spend\n\nby platform"}, turns[0])
	assert.Equal(t, turn{user: false, text: "Meta spent most."}, turns[1])
	assert.Equal(t, turn{user: true, text: "And revenue?"}, turns[2])
}
