package threadcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

// failingKV simulates a down store.
type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (failingKV) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingKV) Del(context.Context, string) error { return errors.New("store down") }
func (failingKV) Expire(context.Context, string, time.Duration) error {
	return errors.New("store down")
}
func (failingKV) Update(context.Context, string, time.Duration, func([]byte) ([]byte, error)) error {
	return errors.New("store down")
}
func (failingKV) Close() error { return nil }

func modelScope(ids []string) model.DataScope {
	return model.DataScope{FileIDs: ids}
}

func TestUpdateThreadCache_MergesUnion(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())

	merged, err := m.UpdateThreadCache(ctx, "t1", model.DataScope{FileIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, merged)

	merged, err = m.UpdateThreadCache(ctx, "t1", model.DataScope{FileIDs: []string{"b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, merged)

	assert.Equal(t, []string{"a", "b", "c"}, m.CachedFilesForThread(ctx, "t1"))
}

func TestUpdateThreadCache_MergesFullScope(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())

	_, err := m.UpdateThreadCache(ctx, "t1", model.DataScope{
		Topics: []string{"remote_work"},
		Years:  []int{2024},
	})
	require.NoError(t, err)

	_, err = m.UpdateThreadCache(ctx, "t1", model.DataScope{
		Topics:       []string{"remote_work", "wellbeing"},
		Demographics: []string{"united_states"},
		Years:        []int{2025},
	})
	require.NoError(t, err)

	scope := m.CachedScope(ctx, "t1")
	assert.Equal(t, []string{"remote_work", "wellbeing"}, scope.Topics)
	assert.Equal(t, []string{"united_states"}, scope.Demographics)
	assert.Equal(t, []int{2024, 2025}, scope.Years)
}

func TestUpdateThreadCache_CorruptEntryRestarts(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	m := NewManager(kv)

	require.NoError(t, kv.Set(ctx, threadScopeKey("t1"), []byte("{corrupt"), ThreadDataTTL))

	merged, err := m.UpdateThreadCache(ctx, "t1", model.DataScope{FileIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, merged)
}

func TestCachedScope_ColdCache(t *testing.T) {
	m := NewManager(NewMemory())

	scope := m.CachedScope(context.Background(), "unseen")
	assert.True(t, scope.IsEmpty())
	assert.NotNil(t, scope.FileIDs)
}

func TestCachedScope_StoreFailureIsColdCache(t *testing.T) {
	m := NewManager(failingKV{})

	// Never surfaces the error; a down store reads as empty.
	scope := m.CachedScope(context.Background(), "t1")
	assert.True(t, scope.IsEmpty())
	assert.Empty(t, m.CachedFilesForThread(context.Background(), "t1"))
}

func TestCachedScope_CorruptEntryIsColdCache(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	m := NewManager(kv)

	require.NoError(t, kv.Set(ctx, threadScopeKey("t1"), []byte("not json"), ThreadDataTTL))
	assert.True(t, m.CachedScope(ctx, "t1").IsEmpty())
}

func TestClearThreadCache(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())

	_, err := m.UpdateThreadCache(ctx, "t1", model.DataScope{FileIDs: []string{"a"}})
	require.NoError(t, err)
	require.NoError(t, m.RecordQuery(ctx, "t1", "first question"))

	require.NoError(t, m.ClearThreadCache(ctx, "t1"))

	assert.Empty(t, m.CachedFilesForThread(ctx, "t1"))
	assert.Empty(t, m.Meta(ctx, "t1").PreviousQueries)
}

func TestRecordQueryAndMeta(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())

	require.NoError(t, m.RecordQuery(ctx, "t1", "first"))
	require.NoError(t, m.RecordQuery(ctx, "t1", "second"))

	meta := m.Meta(ctx, "t1")
	assert.Equal(t, []string{"first", "second"}, meta.PreviousQueries)
	assert.False(t, meta.LastQueryTime.IsZero())
}

func TestMissingScope(t *testing.T) {
	wanted := model.DataScope{
		Topics:       []string{"remote_work", "wellbeing"},
		Demographics: []string{"united_states"},
		Years:        []int{2024, 2025},
		FileIDs:      []string{"a", "b", "c"},
	}
	cached := model.DataScope{
		Topics:  []string{"remote_work"},
		Years:   []int{2024},
		FileIDs: []string{"a", "c"},
	}

	missing := MissingScope(wanted, cached)
	assert.Equal(t, []string{"wellbeing"}, missing.Topics)
	assert.Equal(t, []string{"united_states"}, missing.Demographics)
	assert.Equal(t, []int{2025}, missing.Years)
	assert.Equal(t, []string{"b"}, missing.FileIDs)
}

func TestMissingScope_FullyCovered(t *testing.T) {
	scope := model.DataScope{Topics: []string{"remote_work"}, FileIDs: []string{"a"}}

	missing := MissingScope(scope, scope)
	assert.True(t, missing.IsEmpty())
}

func TestStatus(t *testing.T) {
	full := model.DataScope{FileIDs: []string{"a"}}
	empty := model.DataScope{}

	assert.Equal(t, StatusMiss, Status(empty, full))
	assert.Equal(t, StatusMiss, Status(empty, empty))
	assert.Equal(t, StatusHit, Status(full, empty))
	assert.Equal(t, StatusPartialMiss, Status(full, model.DataScope{FileIDs: []string{"b"}}))
}
