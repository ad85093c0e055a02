package threadcache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

// CacheStatus reports how much of a query's scope the thread cache covered.
type CacheStatus string

const (
	// StatusHit means the cached scope fully covers the query; nothing to fetch.
	StatusHit CacheStatus = "HIT"
	// StatusPartialMiss means a non-empty delta must be fetched and merged.
	StatusPartialMiss CacheStatus = "PARTIAL_MISS"
	// StatusMiss means the thread had no cached scope at all.
	StatusMiss CacheStatus = "MISS"
	// StatusStarter marks precompiled starter question answers, which
	// bypass the cache entirely.
	StatusStarter CacheStatus = "STARTER_QUESTION"
)

// threadScope is the persisted per-thread record of what has been loaded.
// It only ever grows; it is removed by explicit clear or TTL expiry.
type threadScope struct {
	FileIDs      []string  `json:"fileIds"`
	Topics       []string  `json:"topics"`
	Demographics []string  `json:"demographics"`
	Years        []int     `json:"years"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ThreadMeta is the persisted query history for follow-up handling.
type ThreadMeta struct {
	PreviousQueries []string  `json:"previousQueries"`
	LastQueryTime   time.Time `json:"lastQueryTime"`
}

// Manager is the thread scope cache over an injectable KV store.
type Manager struct {
	kv KV
}

// NewManager creates a Manager backed by kv.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// CachedFilesForThread returns the file IDs already loaded for a thread.
// A KV failure is treated as a cold cache, never surfaced: a down store and
// an empty one are indistinguishable at this layer.
func (m *Manager) CachedFilesForThread(ctx context.Context, threadID string) []string {
	scope := m.cachedScope(ctx, threadID)
	return scope.FileIDs
}

// CachedScope returns the full cached scope for a thread (empty when cold).
func (m *Manager) CachedScope(ctx context.Context, threadID string) model.DataScope {
	s := m.cachedScope(ctx, threadID)
	return model.DataScope{
		Topics:       s.Topics,
		Demographics: s.Demographics,
		Years:        s.Years,
		FileIDs:      s.FileIDs,
	}
}

func (m *Manager) cachedScope(ctx context.Context, threadID string) threadScope {
	empty := threadScope{
		FileIDs:      []string{},
		Topics:       []string{},
		Demographics: []string{},
		Years:        []int{},
	}

	raw, err := m.kv.Get(ctx, threadScopeKey(threadID))
	if err != nil {
		zap.L().Warn("threadcache: get failed, treating as cold cache",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return empty
	}
	if raw == nil {
		return empty
	}

	var scope threadScope
	if err := json.Unmarshal(raw, &scope); err != nil {
		zap.L().Warn("threadcache: corrupt scope entry, treating as cold cache",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return empty
	}
	if scope.FileIDs == nil {
		scope.FileIDs = []string{}
	}
	return scope
}

// UpdateThreadCache merges newly loaded scope into the thread's record and
// returns the resulting file ID set: a de-duplicated union preserving
// insertion order of first occurrence. The merge is a read-modify-write
// done under the KV's per-key atomicity guarantee.
func (m *Manager) UpdateThreadCache(ctx context.Context, threadID string, loaded model.DataScope) ([]string, error) {
	var merged []string

	err := m.kv.Update(ctx, threadScopeKey(threadID), ThreadDataTTL, func(old []byte) ([]byte, error) {
		scope := threadScope{}
		if old != nil {
			if err := json.Unmarshal(old, &scope); err != nil {
				// Corrupt entry: start over rather than fail the query.
				scope = threadScope{}
			}
		}

		scope.FileIDs = unionStrings(scope.FileIDs, loaded.FileIDs)
		scope.Topics = unionStrings(scope.Topics, loaded.Topics)
		scope.Demographics = unionStrings(scope.Demographics, loaded.Demographics)
		scope.Years = unionInts(scope.Years, loaded.Years)
		scope.UpdatedAt = time.Now().UTC()

		merged = scope.FileIDs
		return json.Marshal(scope)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// ClearThreadCache removes a thread's cached scope and metadata.
func (m *Manager) ClearThreadCache(ctx context.Context, threadID string) error {
	if err := m.kv.Del(ctx, threadScopeKey(threadID)); err != nil {
		return err
	}
	return m.kv.Del(ctx, threadMetaKey(threadID))
}

// RecordQuery appends the query to the thread's history.
func (m *Manager) RecordQuery(ctx context.Context, threadID, query string) error {
	return m.kv.Update(ctx, threadMetaKey(threadID), ThreadDataTTL, func(old []byte) ([]byte, error) {
		meta := ThreadMeta{}
		if old != nil {
			_ = json.Unmarshal(old, &meta)
		}
		meta.PreviousQueries = append(meta.PreviousQueries, query)
		meta.LastQueryTime = time.Now().UTC()
		return json.Marshal(meta)
	})
}

// Meta returns the thread's query history (zero value when cold).
func (m *Manager) Meta(ctx context.Context, threadID string) ThreadMeta {
	raw, err := m.kv.Get(ctx, threadMetaKey(threadID))
	if err != nil || raw == nil {
		return ThreadMeta{}
	}
	var meta ThreadMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ThreadMeta{}
	}
	return meta
}

// MissingScope computes the delta between what a query wants and what a
// thread has already loaded. Pure function; an empty delta means the fetch
// can be skipped entirely.
func MissingScope(wanted model.DataScope, cached model.DataScope) model.DataScope {
	return model.DataScope{
		Topics:       differenceStrings(wanted.Topics, cached.Topics),
		Demographics: differenceStrings(wanted.Demographics, cached.Demographics),
		Years:        differenceInts(wanted.Years, cached.Years),
		FileIDs:      differenceStrings(wanted.FileIDs, cached.FileIDs),
	}
}

// Status classifies a delta against the cached scope.
func Status(cached model.DataScope, missing model.DataScope) CacheStatus {
	if missing.IsEmpty() {
		if cached.IsEmpty() {
			return StatusMiss
		}
		return StatusHit
	}
	if cached.IsEmpty() {
		return StatusMiss
	}
	return StatusPartialMiss
}

func unionStrings(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, lists := range [][]string{base, extra} {
		for _, v := range lists {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func unionInts(base, extra []int) []int {
	out := make([]int, 0, len(base)+len(extra))
	seen := make(map[int]struct{}, len(base)+len(extra))
	for _, lists := range [][]int{base, extra} {
		for _, v := range lists {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func differenceStrings(wanted, cached []string) []string {
	have := make(map[string]struct{}, len(cached))
	for _, v := range cached {
		have[v] = struct{}{}
	}
	out := []string{}
	for _, v := range wanted {
		if _, ok := have[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func differenceInts(wanted, cached []int) []int {
	have := make(map[int]struct{}, len(cached))
	for _, v := range cached {
		have[v] = struct{}{}
	}
	out := []int{}
	for _, v := range wanted {
		if _, ok := have[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
