// Package pipeline wires the full answer path: intent parsing, scope
// mapping, thread cache deltas, file retrieval, the comparability gate,
// statistic filtering, prompt assembly, the LLM call, and post-hoc
// validation of the generated answer.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/workforce-pulse/insights-cli/internal/compat"
	"github.com/workforce-pulse/insights-cli/internal/config"
	"github.com/workforce-pulse/insights-cli/internal/filtering"
	"github.com/workforce-pulse/insights-cli/internal/intent"
	"github.com/workforce-pulse/insights-cli/internal/model"
	"github.com/workforce-pulse/insights-cli/internal/questionmap"
	"github.com/workforce-pulse/insights-cli/internal/resilience"
	"github.com/workforce-pulse/insights-cli/internal/segments"
	"github.com/workforce-pulse/insights-cli/internal/threadcache"
	"github.com/workforce-pulse/insights-cli/internal/validation"
	"github.com/workforce-pulse/insights-cli/pkg/anthropic"
)

// Repository is the data access the pipeline needs. Satisfied by
// repository.FileSystemRepository.
type Repository interface {
	GetFilesByIDs(ctx context.Context, ids []string) ([]*model.DataFile, error)
	GetFilesByQuery(ctx context.Context, query string) ([]*model.DataFile, error)
}

// Request is one question against one conversation thread.
type Request struct {
	Query    string
	ThreadID string
	History  []model.PriorTurn
}

// Answer is the full result of one pipeline run.
type Answer struct {
	Query    string `json:"query"`
	ThreadID string `json:"threadId"`

	// Text is the generated analysis. Empty for the starter fast path,
	// which returns filtered data without an LLM call.
	Text string `json:"text"`

	Intent      model.QueryIntent       `json:"intent"`
	Scope       model.DataScope         `json:"scope"`
	CacheStatus threadcache.CacheStatus `json:"cacheStatus"`

	FileIDs            []string          `json:"fileIds"`
	Stats              []model.Statistic `json:"stats"`
	FoundSegments      []string          `json:"foundSegments,omitempty"`
	MissingSegments    []string          `json:"missingSegments,omitempty"`
	IncomparableTopics []string          `json:"incomparableTopics,omitempty"`

	Validation      *validation.Report `json:"validation,omitempty"`
	StarterQuestion bool               `json:"starterQuestion,omitempty"`
	Elapsed         time.Duration      `json:"-"`
}

// Pipeline holds the wired dependencies for answering queries.
type Pipeline struct {
	cfg      *config.Config
	repo     Repository
	registry *compat.Registry
	topics   *questionmap.Index
	cache    *threadcache.Manager
	llm      anthropic.Client
	limiter  *rate.Limiter
	prompts  *Prompts
	starters *StarterStore
	retry    resilience.RetryConfig
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	repo Repository,
	registry *compat.Registry,
	topics *questionmap.Index,
	cache *threadcache.Manager,
	llm anthropic.Client,
	starters *StarterStore,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		repo:     repo,
		registry: registry,
		topics:   topics,
		cache:    cache,
		llm:      llm,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Anthropic.RPS), 1),
		prompts:  LoadPrompts(cfg.Data.PromptsFile),
		starters: starters,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// Run answers one query end to end.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, eris.New("pipeline: empty query")
	}

	log := zap.L().With(
		zap.String("thread_id", req.ThreadID),
		zap.String("query", query),
	)

	history := req.History
	if len(history) == 0 && req.ThreadID != "" {
		history = priorTurns(p.cache.Meta(ctx, req.ThreadID))
	}
	it := intent.ParseQueryIntent(query, history)

	if IsStarterQuestion(query) {
		ans, err := p.runStarter(query, it)
		if err == nil {
			ans.ThreadID = req.ThreadID
			ans.Elapsed = time.Since(start)
			return ans, nil
		}
		log.Warn("pipeline: starter fast path unavailable, falling through", zap.Error(err))
	}

	// Map intent to the wanted scope and resolve its file IDs.
	wanted := intent.MapIntentToDataScope(it)
	wanted.FileIDs = p.topics.FilesForTopics(wanted.Topics, wanted.Years)

	// Thread cache delta: only what the thread has not seen is new.
	cached := p.cache.CachedScope(ctx, req.ThreadID)
	missing := threadcache.MissingScope(wanted, cached)
	status := threadcache.Status(cached, missing)
	log.Info("pipeline: scope resolved",
		zap.Strings("file_ids", wanted.FileIDs),
		zap.String("cache_status", string(status)),
	)

	// Comparability gate, first level: for comparison queries, remove
	// whole topics that cannot be compared across years.
	isComparison := intent.IsComparisonQuery(query, it.Years)
	gate := p.registry.FilterIncomparable(wanted.FileIDs, isComparison)
	fileIDs := gate.FilteredFileIDs

	topics := make([]string, 0, len(gate.IncomparableTopicMessages))
	for topic := range gate.IncomparableTopicMessages {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	notices := make([]string, 0, len(topics))
	for _, topic := range topics {
		notices = appendUnique(notices, gate.IncomparableTopicMessages[topic])
	}

	// Second level: per-file salvage within mixed-year topics.
	if isComparison && len(fileIDs) > 1 {
		pairs := compat.ComparablePairs(p.registry.LookupFiles(fileIDs))
		if len(pairs.Invalid) > 0 {
			fileIDs = pairs.Valid
			if pairs.Message != "" {
				notices = appendUnique(notices, pairs.Message)
			}
		}
	}

	// Fetch. File IDs resolved from topics when available, otherwise fall
	// back to query-driven retrieval.
	var files []*model.DataFile
	var err error
	if len(fileIDs) > 0 {
		files, err = p.repo.GetFilesByIDs(ctx, fileIDs)
	} else {
		files, err = p.repo.GetFilesByQuery(ctx, query)
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch data files")
	}

	ans := &Answer{
		Query:              query,
		ThreadID:           req.ThreadID,
		Intent:             it,
		Scope:              wanted,
		CacheStatus:        status,
		FileIDs:            fileIDsOf(files),
		IncomparableTopics: notices,
	}

	// Statistic filtering: broad for general queries, segment-restricted
	// for specific ones.
	if it.Specificity == model.SpecificitySpecific {
		res := filtering.SpecificData(files, segmentTargets(it.Demographics))
		ans.Stats = res.FilteredData
		ans.FoundSegments = res.FoundSegments
		ans.MissingSegments = res.MissingSegments
	} else {
		ans.Stats = filtering.BaseData(files).Stats
	}

	text, err := p.generate(ctx, query, ans.Stats, notices)
	if err != nil {
		return nil, err
	}
	ans.Text = text

	report := validation.ValidateAnalysis(text, files)
	ans.Validation = &report
	if !report.Valid {
		log.Warn("pipeline: answer failed validation",
			zap.Ints("fabricated", report.FabricatedPercentages),
		)
	}

	// Record what this thread has now seen. Cache failures never fail the
	// answer.
	if req.ThreadID != "" {
		loaded := wanted
		loaded.FileIDs = ans.FileIDs
		if _, err := p.cache.UpdateThreadCache(ctx, req.ThreadID, loaded); err != nil {
			log.Warn("pipeline: thread cache update failed", zap.Error(err))
		}
		if err := p.cache.RecordQuery(ctx, req.ThreadID, query); err != nil {
			log.Warn("pipeline: thread meta update failed", zap.Error(err))
		}
	}

	ans.Elapsed = time.Since(start)
	log.Info("pipeline: answer complete",
		zap.Int("stats", len(ans.Stats)),
		zap.Bool("valid", report.Valid),
		zap.Duration("elapsed", ans.Elapsed),
	)
	return ans, nil
}

// runStarter serves a precompiled starter question bundle through the
// statistic filter, skipping retrieval and the LLM entirely.
func (p *Pipeline) runStarter(code string, it model.QueryIntent) (*Answer, error) {
	doc, err := p.starters.Load(code)
	if err != nil {
		return nil, err
	}
	if len(doc.Segments) > 0 {
		// The bundle's segment list overrides the parsed intent, which
		// sees only the bare code and would read as general.
		it.Demographics = doc.Segments
		it.Specificity = model.SpecificitySpecific
	}

	ans := &Answer{
		Query:           code,
		Intent:          it,
		CacheStatus:     threadcache.StatusStarter,
		FileIDs:         fileIDsOf(doc.Files),
		StarterQuestion: true,
	}
	if it.Specificity == model.SpecificitySpecific {
		res := filtering.SpecificData(doc.Files, segmentTargets(it.Demographics))
		ans.Stats = res.FilteredData
		ans.FoundSegments = res.FoundSegments
		ans.MissingSegments = res.MissingSegments
	} else {
		ans.Stats = filtering.BaseData(doc.Files).Stats
	}
	return ans, nil
}

// generate assembles the prompt and calls the LLM with rate limiting and
// retry on transient failures.
func (p *Pipeline) generate(ctx context.Context, query string, stats []model.Statistic, notices []string) (string, error) {
	prompt, err := p.prompts.RenderAnalysis(query, stats, notices)
	if err != nil {
		return "", err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "pipeline: rate limiter")
	}

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.Model,
			MaxTokens: p.cfg.Anthropic.MaxTokens,
			System:    p.prompts.System,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: analysis call")
	}
	resp.Usage.LogUsage(p.cfg.Anthropic.Model, "analysis")

	return resp.Text(), nil
}

func priorTurns(meta threadcache.ThreadMeta) []model.PriorTurn {
	turns := make([]model.PriorTurn, 0, len(meta.PreviousQueries))
	for _, q := range meta.PreviousQueries {
		turns = append(turns, model.PriorTurn{Query: q})
	}
	return turns
}

func fileIDsOf(files []*model.DataFile) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		if f != nil {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// segmentTargets translates parsed demographic values into segment keys
// for the statistic filter. The parser emits region values (country keys),
// which select the region segment; canonical segment keys pass through.
func segmentTargets(demographics []string) []string {
	out := make([]string, 0, len(demographics))
	for _, d := range demographics {
		norm := segments.Normalize(d)
		if !segments.IsCanonical(norm) {
			norm = "region"
		}
		out = append(out, norm)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
