package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/models"
)

// QueryGenerator asks the model for a GOAL/SQL block answering a question.
type QueryGenerator struct {
	client    Client
	system    string
	maxTokens int64
}

// NewQueryGenerator renders the system prompt for period once and returns a
// generator that reuses it.
func NewQueryGenerator(client Client, prompts *Prompts, period string, maxTokens int) (*QueryGenerator, error) {
	system, err := prompts.GenerateSystem(period)
	if err != nil {
		return nil, err
	}
	return &QueryGenerator{client: client, system: system, maxTokens: int64(maxTokens)}, nil
}

// Generate returns the raw model response for req.
func (g *QueryGenerator) Generate(ctx context.Context, req insight.GenerateRequest) (string, error) {
	resp, err := g.client.Complete(ctx, CompletionRequest{
		System:    g.system,
		History:   req.History,
		Prompt:    GeneratePrompt(req.Question, req.PriorGoal),
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}
	return resp, nil
}

// GeneratePrompt builds the user turn. A known prior goal is passed as a
// "Previous query goal: <GOAL>" line ahead of the question.
func GeneratePrompt(question string, prior *models.Goal) string {
	var sb strings.Builder
	if prior != nil {
		fmt.Fprintf(&sb, "Previous query goal: %s\n\n", *prior)
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	return sb.String()
}
