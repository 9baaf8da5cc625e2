package llm

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/radiusdt/adsight/internal/models"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompts holds the parsed system prompt templates.
type Prompts struct {
	generate *template.Template
	describe *template.Template
	strategy *template.Template
}

type generateData struct {
	Table     string
	Period    string
	Platforms []string
	Regions   []string
	AgeGroups []string
	Genders   []string
}

type renderData struct {
	Goal    models.Goal
	Metrics []models.Metric
}

// LoadPrompts parses the embedded prompt templates.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.generate, err = loadPrompt("generate.tmpl"); err != nil {
		return nil, err
	}
	if p.describe, err = loadPrompt("describe.tmpl"); err != nil {
		return nil, err
	}
	if p.strategy, err = loadPrompt("strategy.tmpl"); err != nil {
		return nil, err
	}
	return p, nil
}

func loadPrompt(name string) (*template.Template, error) {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	t, err := template.New(name).Funcs(template.FuncMap{"join": join}).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return t, nil
}

// GenerateSystem renders the query generator's system prompt for period.
func (p *Prompts) GenerateSystem(period string) (string, error) {
	return execute(p.generate, generateData{
		Table:     models.TableName,
		Period:    period,
		Platforms: models.Platforms,
		Regions:   models.Regions,
		AgeGroups: models.AgeGroups,
		Genders:   models.Genders,
	})
}

// RenderSystem renders the answer renderer's system prompt. Strategy
// questions get the prescriptive template.
func (p *Prompts) RenderSystem(strategy bool, goal models.Goal, metrics []models.Metric) (string, error) {
	t := p.describe
	if strategy {
		t = p.strategy
	}
	return execute(t, renderData{Goal: goal, Metrics: metrics})
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func join(v any) string {
	switch items := v.(type) {
	case []string:
		return strings.Join(items, ", ")
	case []models.Metric:
		parts := make([]string, len(items))
		for i, m := range items {
			parts[i] = strings.ReplaceAll(string(m), "_", " ")
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
