package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

func TestDefaultPrompts_Renders(t *testing.T) {
	p := DefaultPrompts()

	stats := []model.Statistic{
		model.NewStatistic("2025_1", "Remote work?", "Weekly", "overall", "overall", 0.67),
	}
	out, err := p.RenderAnalysis("How common is remote work?", stats, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "How common is remote work?")
	assert.Contains(t, out, `"percentage": 67`)
	assert.NotContains(t, out, "Data notices")
}

func TestRenderAnalysis_IncludesNotices(t *testing.T) {
	p := DefaultPrompts()

	out, err := p.RenderAnalysis("compare years", nil,
		[]string{"AI attitudes cannot be compared across years."})
	require.NoError(t, err)

	assert.Contains(t, out, "Data notices:")
	assert.Contains(t, out, "- AI attitudes cannot be compared across years.")
}

func TestLoadPrompts_MissingFileUsesDefaults(t *testing.T) {
	p := LoadPrompts(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, DefaultPrompts().System, p.System)
}

func TestLoadPrompts_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
system: "Custom system prompt."
analysis: "Q: {{.Query}} D: {{.Data}}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := LoadPrompts(path)
	assert.Equal(t, "Custom system prompt.", p.System)

	out, err := p.RenderAnalysis("hello", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Q: hello")
}

func TestLoadPrompts_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`system: "Only system."`), 0o644))

	p := LoadPrompts(path)
	assert.Equal(t, "Only system.", p.System)
	assert.Equal(t, DefaultPrompts().Analysis, p.Analysis)
}

func TestLoadPrompts_BadTemplateUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`analysis: "{{.Broken"`), 0o644))

	p := LoadPrompts(path)
	assert.Equal(t, DefaultPrompts().Analysis, p.Analysis)
}
