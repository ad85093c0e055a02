package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-pulse/insights-cli/internal/compat"
	"github.com/workforce-pulse/insights-cli/internal/config"
	"github.com/workforce-pulse/insights-cli/internal/model"
	"github.com/workforce-pulse/insights-cli/internal/questionmap"
	"github.com/workforce-pulse/insights-cli/internal/threadcache"
	"github.com/workforce-pulse/insights-cli/pkg/anthropic"
)

// mockLLM returns a canned analysis and counts invocations.
type mockLLM struct {
	calls    int
	response string
	err      error
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.response}},
	}, nil
}

// mockRepo serves a fixed set of files keyed by ID.
type mockRepo struct {
	files map[string]*model.DataFile
}

func (m *mockRepo) GetFilesByIDs(ctx context.Context, ids []string) ([]*model.DataFile, error) {
	out := []*model.DataFile{}
	for _, id := range ids {
		if f, ok := m.files[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockRepo) GetFilesByQuery(ctx context.Context, query string) ([]*model.DataFile, error) {
	out := []*model.DataFile{}
	for _, f := range m.files {
		out = append(out, f)
	}
	return out, nil
}

func f64(v float64) *float64 { return &v }

func remoteWorkFile(id string) *model.DataFile {
	return &model.DataFile{
		ID:       id,
		Question: "How often do you work remotely?",
		Responses: []model.Response{
			{
				Response: "At least weekly",
				Data: map[string]model.SegmentValue{
					"overall": {Direct: f64(0.67)},
					"region":  {Nested: map[string]float64{"united_states": 0.72}},
				},
			},
		},
	}
}

const testCompatMapping = `{
  "files": {
    "2024_1": {"topicId": "Remote_Work", "year": 2024, "comparable": true},
    "2025_1": {"topicId": "Remote_Work", "year": 2025, "comparable": true},
    "2024_2": {"topicId": "AI_Attitudes", "year": 2024, "comparable": false},
    "2025_2": {"topicId": "AI_Attitudes", "year": 2025, "comparable": false},
    "2024_3": {"topicId": "Wellbeing", "year": 2024, "comparable": false,
               "userMessage": "2024 wellbeing data used a different scale."},
    "2025_3": {"topicId": "Wellbeing", "year": 2025, "comparable": true}
  },
  "topics": {
    "Remote_Work": {"comparable": true},
    "Wellbeing": {"comparable": true},
    "AI_Attitudes": {"comparable": false,
                     "userMessage": "AI attitudes cannot be compared across years."}
  }
}`

const testTopicMapping = `{
  "themes": [
    {
      "name": "Ways of Working",
      "topics": [
        {
          "id": "remote_work",
          "canonicalQuestion": "How often do you work remotely?",
          "mapping": {
            "2024": [{"file": "2024_1.json"}],
            "2025": [{"file": "2025_1.json"}]
          }
        },
        {
          "id": "ai_impact",
          "canonicalQuestion": "How do you feel about AI at work?",
          "mapping": {
            "2024": [{"file": "2024_2.json"}],
            "2025": [{"file": "2025_2.json"}]
          }
        },
        {
          "id": "wellbeing",
          "canonicalQuestion": "How is your wellbeing at work?",
          "mapping": {
            "2024": [{"file": "2024_3.json"}],
            "2025": [{"file": "2025_3.json"}]
          }
        }
      ]
    }
  ]
}`

type testEnv struct {
	pipeline *Pipeline
	llm      *mockLLM
	cache    *threadcache.Manager
}

func newTestPipeline(t *testing.T, llm *mockLLM) *testEnv {
	t.Helper()
	dir := t.TempDir()

	compatPath := filepath.Join(dir, "compat.json")
	require.NoError(t, os.WriteFile(compatPath, []byte(testCompatMapping), 0o644))
	topicPath := filepath.Join(dir, "topics.json")
	require.NoError(t, os.WriteFile(topicPath, []byte(testTopicMapping), 0o644))

	cfg := &config.Config{
		Data: config.DataConfig{
			CompatibilityMap: compatPath,
			TopicMap:         topicPath,
			StartersDir:      filepath.Join(dir, "starters"),
		},
		Anthropic: config.AnthropicConfig{
			Model:     "test-model",
			MaxTokens: 1024,
			RPS:       1000,
		},
	}

	repo := &mockRepo{files: map[string]*model.DataFile{
		"2024_1": remoteWorkFile("2024_1"),
		"2025_1": remoteWorkFile("2025_1"),
		"2024_2": remoteWorkFile("2024_2"),
		"2025_2": remoteWorkFile("2025_2"),
		"2024_3": remoteWorkFile("2024_3"),
		"2025_3": remoteWorkFile("2025_3"),
	}}

	cache := threadcache.NewManager(threadcache.NewMemory())
	p := New(
		cfg,
		repo,
		compat.NewRegistry(compatPath),
		questionmap.NewIndex(topicPath),
		cache,
		llm,
		NewStarterStore(cfg.Data.StartersDir),
	)
	return &testEnv{pipeline: p, llm: llm, cache: cache}
}

func TestRun_EmptyQuery(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{})

	_, err := env.pipeline.Run(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
	assert.Zero(t, env.llm.calls)
}

func TestRun_EndToEnd(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "67% work remotely at least weekly."})

	ans, err := env.pipeline.Run(context.Background(), Request{
		Query:    "How is remote work going in 2025?",
		ThreadID: "t1",
	})
	require.NoError(t, err)

	assert.Equal(t, "67% work remotely at least weekly.", ans.Text)
	assert.Equal(t, []string{"2025_1"}, ans.FileIDs)
	assert.Contains(t, ans.Intent.Topics, "remote_work")
	assert.Equal(t, threadcache.StatusMiss, ans.CacheStatus)
	assert.NotEmpty(t, ans.Stats)
	require.NotNil(t, ans.Validation)
	assert.True(t, ans.Validation.Valid)
	assert.Equal(t, 1, env.llm.calls)

	// The thread cache recorded the loaded scope.
	assert.Equal(t, []string{"2025_1"}, env.cache.CachedFilesForThread(context.Background(), "t1"))
}

func TestRun_SecondQuerySameScopeHitsCache(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "67% work remotely."})
	ctx := context.Background()

	_, err := env.pipeline.Run(ctx, Request{Query: "remote work in 2025", ThreadID: "t1"})
	require.NoError(t, err)

	ans, err := env.pipeline.Run(ctx, Request{Query: "remote work in 2025", ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, threadcache.StatusHit, ans.CacheStatus)
}

func TestRun_ComparisonRemovesIncomparableTopic(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "67% in both years."})

	ans, err := env.pipeline.Run(context.Background(), Request{
		Query: "Compare remote work and AI attitudes between 2024 and 2025",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"2024_1", "2025_1"}, ans.FileIDs)
	require.Len(t, ans.IncomparableTopics, 1)
	assert.Contains(t, ans.IncomparableTopics, "AI attitudes cannot be compared across years.")
}

func TestRun_ComparisonSalvagesComparableFilesWithinTopic(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "67% report good wellbeing."})

	// The topic itself is comparable, so it survives the topic-level gate;
	// the per-file pass then drops the one year flagged non-comparable.
	ans, err := env.pipeline.Run(context.Background(), Request{
		Query: "Compare wellbeing between 2024 and 2025",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2025_3"}, ans.FileIDs)
	assert.Contains(t, ans.IncomparableTopics, "2024 wellbeing data used a different scale.")
}

func TestRun_NonComparisonKeepsAllTopics(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "67% overall."})

	ans, err := env.pipeline.Run(context.Background(), Request{
		Query: "How do people feel about remote work and AI in 2025?",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"2025_1", "2025_2"}, ans.FileIDs)
	assert.Empty(t, ans.IncomparableTopics)
}

func TestRun_FailedValidationStillAnswers(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "99% of everyone agrees."})

	ans, err := env.pipeline.Run(context.Background(), Request{Query: "remote work in 2025"})
	require.NoError(t, err)

	assert.Equal(t, "99% of everyone agrees.", ans.Text)
	require.NotNil(t, ans.Validation)
	assert.False(t, ans.Validation.Valid)
	assert.Equal(t, []int{99}, ans.Validation.FabricatedPercentages)
}

func TestRun_LLMErrorSurfaces(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{err: errors.New("api unreachable")})

	_, err := env.pipeline.Run(context.Background(), Request{Query: "remote work in 2025"})
	assert.Error(t, err)
}

func TestRun_SpecificQueryRestrictsSegments(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "72% in the US."})

	ans, err := env.pipeline.Run(context.Background(), Request{
		Query: "How common is remote work in the US in 2025?",
	})
	require.NoError(t, err)

	assert.Equal(t, model.SpecificitySpecific, ans.Intent.Specificity)
	assert.Contains(t, ans.Intent.Demographics, "united_states")

	// Country demographics select the region segment, so the answer
	// carries the country breakdowns alongside the topline.
	segs := make([]string, 0, len(ans.Stats))
	for _, s := range ans.Stats {
		segs = append(segs, s.Segment)
	}
	assert.Contains(t, segs, "region:united_states")
	assert.Contains(t, ans.FoundSegments, "region")
}

func TestRun_StarterFastPath(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "should not be called"})

	startersDir := env.pipeline.starters.dir
	require.NoError(t, os.MkdirAll(startersDir, 0o755))
	starter := `{
  "segments": ["region"],
  "files": [{
    "id": "2025_1",
    "question": "How often do you work remotely?",
    "responses": [{
      "response": "At least weekly",
      "data": {"overall": 0.67, "region": {"united_states": 0.72}, "age": {"18_24": 0.51}}
    }]
  }]
}`
	require.NoError(t, os.WriteFile(filepath.Join(startersDir, "SQ1.json"), []byte(starter), 0o644))

	ans, err := env.pipeline.Run(context.Background(), Request{Query: "sq1", ThreadID: "t1"})
	require.NoError(t, err)

	assert.True(t, ans.StarterQuestion)
	assert.Equal(t, threadcache.StatusStarter, ans.CacheStatus)
	assert.Equal(t, []string{"2025_1"}, ans.FileIDs)
	assert.Empty(t, ans.Text)
	assert.Zero(t, env.llm.calls)

	// The bundle's segment list restricts the extraction: region and the
	// topline survive, the age breakdown does not.
	require.NotEmpty(t, ans.Stats)
	for _, s := range ans.Stats {
		assert.NotEqual(t, "age", s.Category)
	}
	assert.ElementsMatch(t, []string{"overall", "region"}, ans.FoundSegments)
}

func TestRun_StarterCodeWithoutBundleFallsThrough(t *testing.T) {
	env := newTestPipeline(t, &mockLLM{response: "No starter here."})

	ans, err := env.pipeline.Run(context.Background(), Request{Query: "SQ7"})
	require.NoError(t, err)

	assert.False(t, ans.StarterQuestion)
	assert.Equal(t, 1, env.llm.calls)
}

func TestIsStarterQuestion(t *testing.T) {
	assert.True(t, IsStarterQuestion("SQ1"))
	assert.True(t, IsStarterQuestion("sq12"))
	assert.True(t, IsStarterQuestion("  SQ3  "))
	assert.False(t, IsStarterQuestion("SQ"))
	assert.False(t, IsStarterQuestion("What is SQ1?"))
	assert.False(t, IsStarterQuestion(""))
}
