package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/models"
)

// AnswerRenderer asks the model to explain aggregation results.
type AnswerRenderer struct {
	client    Client
	prompts   *Prompts
	maxTokens int64
}

// NewAnswerRenderer creates a renderer.
func NewAnswerRenderer(client Client, prompts *Prompts, maxTokens int) *AnswerRenderer {
	return &AnswerRenderer{client: client, prompts: prompts, maxTokens: int64(maxTokens)}
}

// Render returns the model's answer for req.
func (r *AnswerRenderer) Render(ctx context.Context, req insight.RenderRequest) (string, error) {
	system, err := r.prompts.RenderSystem(req.Strategy, req.Goal, req.Metrics)
	if err != nil {
		return "", err
	}
	data, err := FormatData(req.Result)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("Question: %s\n\nQuery:\n%s\n\nData:\n%s", req.Question, req.SQL, data)
	resp, err := r.client.Complete(ctx, CompletionRequest{
		System:    system,
		History:   req.History,
		Prompt:    prompt,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("answer rendering failed: %w", err)
	}
	return resp, nil
}

type dataPayload struct {
	Shape     models.ShapeKind  `json:"shape"`
	Dimension string            `json:"dimension,omitempty"`
	Total     *models.Aggregate `json:"total,omitempty"`
	Groups    []groupPayload    `json:"groups,omitempty"`
}

type groupPayload struct {
	Name string `json:"name"`
	*models.Aggregate
}

// FormatData renders aggregation results as indented JSON. Groups are listed
// best ROAS first.
func FormatData(res *insight.AggregationResult) (string, error) {
	if res == nil {
		return "{}", nil
	}

	payload := dataPayload{Shape: res.Shape.Kind, Dimension: res.Shape.Dimension, Total: res.Total}
	for _, k := range insight.SortedGroupKeys(res.Groups) {
		name := k
		if name == "" {
			name = "Unknown"
		}
		payload.Groups = append(payload.Groups, groupPayload{Name: name, Aggregate: res.Groups[k]})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode aggregation data: %w", err)
	}
	return string(data), nil
}
