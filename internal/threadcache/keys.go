package threadcache

import "time"

// TTLs for the KV namespace. Thread state is long-lived; derived cache data
// is not.
const (
	ThreadDataTTL = 90 * 24 * time.Hour
	CacheDataTTL  = time.Hour
)

// threadScopeKey names the per-thread loaded-scope record.
func threadScopeKey(threadID string) string {
	return "thread:" + threadID + ":scope"
}

// threadMetaKey names the per-thread query-history record.
func threadMetaKey(threadID string) string {
	return "thread:" + threadID + ":meta"
}
