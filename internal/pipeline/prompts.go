package pipeline

import (
	"encoding/json"
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

// Prompts holds the prompt templates the analysis call is assembled from.
// They live in a YAML file next to the reference data so prompt changes do
// not require a rebuild.
type Prompts struct {
	System   string `yaml:"system"`
	Analysis string `yaml:"analysis"`

	analysisTmpl *template.Template
}

// analysisInput is the template context for the analysis prompt.
type analysisInput struct {
	Query   string
	Data    string
	Notices []string
}

// DefaultPrompts returns the built-in templates used when no prompts file
// is configured or the configured one cannot be read.
func DefaultPrompts() *Prompts {
	p := &Prompts{
		System: strings.TrimSpace(`
You are a workforce research analyst. Answer questions using only the survey
statistics provided in the message. Every percentage you cite must appear in
the data verbatim. If the data cannot support an answer, say so.`),
		Analysis: strings.TrimSpace(`
Question: {{.Query}}

{{if .Notices}}Data notices:
{{range .Notices}}- {{.}}
{{end}}
{{end}}Survey statistics (JSON):
{{.Data}}`),
	}
	if err := p.compile(); err != nil {
		// The built-in templates are static; a parse failure here is a bug.
		panic(err)
	}
	return p
}

// LoadPrompts reads templates from a YAML file. A missing or malformed file
// degrades to the defaults with a warning so the pipeline stays usable.
func LoadPrompts(path string) *Prompts {
	raw, err := os.ReadFile(path)
	if err != nil {
		zap.L().Warn("pipeline: prompts file unavailable, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return DefaultPrompts()
	}

	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		zap.L().Warn("pipeline: prompts file malformed, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return DefaultPrompts()
	}

	def := DefaultPrompts()
	if strings.TrimSpace(p.System) == "" {
		p.System = def.System
	}
	if strings.TrimSpace(p.Analysis) == "" {
		p.Analysis = def.Analysis
	}
	if err := p.compile(); err != nil {
		zap.L().Warn("pipeline: prompts file failed to compile, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return def
	}
	return &p
}

func (p *Prompts) compile() error {
	tmpl, err := template.New("analysis").Parse(p.Analysis)
	if err != nil {
		return eris.Wrap(err, "pipeline: parse analysis template")
	}
	p.analysisTmpl = tmpl
	return nil
}

// RenderAnalysis assembles the user message for the analysis call: the
// query, any comparability notices, and the filtered statistics as JSON.
func (p *Prompts) RenderAnalysis(query string, stats []model.Statistic, notices []string) (string, error) {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "pipeline: marshal statistics")
	}

	var b strings.Builder
	in := analysisInput{Query: query, Data: string(data), Notices: notices}
	if err := p.analysisTmpl.Execute(&b, in); err != nil {
		return "", eris.Wrap(err, "pipeline: render analysis prompt")
	}
	return b.String(), nil
}
