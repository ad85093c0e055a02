// Package compat answers year-over-year comparability questions about survey
// data files and topics, backed by a versioned mapping document.
package compat

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cacheTTL bounds how long a loaded mapping is served before re-reading
// from disk.
const cacheTTL = time.Hour

// FileEntry describes one file's comparability in the mapping document.
type FileEntry struct {
	FileID      string `json:"fileId"`
	TopicID     string `json:"topicId"`
	Year        int    `json:"year"`
	Comparable  bool   `json:"comparable"`
	Reason      string `json:"reason,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
}

// TopicEntry describes one topic's comparability across years.
type TopicEntry struct {
	TopicID     string `json:"topicId"`
	ParentTheme string `json:"parentTheme,omitempty"`
	Comparable  bool   `json:"comparable"`
	UserMessage string `json:"userMessage,omitempty"`
	Years       []int  `json:"years,omitempty"`
}

// GlobalFile describes a year-independent file (methodology notes and the
// like) referenced outside the topic structure.
type GlobalFile struct {
	Comparable  bool   `json:"comparable"`
	Description string `json:"description,omitempty"`
}

// Mapping is the in-memory form of the compatibility mapping document.
type Mapping struct {
	Version             string                `json:"version"`
	LastUpdated         string                `json:"lastUpdated"`
	Files               map[string]FileEntry  `json:"files"`
	Topics              map[string]TopicEntry `json:"topics"`
	GlobalFiles         map[string]GlobalFile `json:"globalFiles,omitempty"`
	CompatibleTopics    []string              `json:"compatibleTopics"`
	NonComparableTopics []string              `json:"nonComparableTopics"`
}

// rawMapping tolerates the two historical layouts of the mapping document:
// file entries under "files" or under "fileCompatibility", with version
// info either top-level or nested in "metadata".
type rawMapping struct {
	Version           string                `json:"version"`
	LastUpdated       string                `json:"lastUpdated"`
	Metadata          *rawMappingMeta       `json:"metadata"`
	Files             map[string]FileEntry  `json:"files"`
	FileCompatibility map[string]FileEntry  `json:"fileCompatibility"`
	Topics            map[string]TopicEntry `json:"topics"`
	GlobalFiles       map[string]GlobalFile `json:"globalFiles"`
	CompatibleTopics  []string              `json:"compatibleTopics"`
	NonComparable     []string              `json:"nonComparableTopics"`
}

type rawMappingMeta struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
}

// Registry loads and caches the compatibility mapping and answers file and
// topic comparability lookups. Construct once at process start and inject
// wherever comparability decisions are made.
type Registry struct {
	path string
	now  func() time.Time

	mu       sync.Mutex
	cached   *Mapping
	loadedAt time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry reading the mapping document at path.
func NewRegistry(path string, opts ...Option) *Registry {
	r := &Registry{path: path, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mapping returns the compatibility mapping, serving the in-memory copy
// while it is within TTL. Load failures degrade to an empty-but-valid
// mapping so read paths stay available; the failure is logged and the next
// call retries the disk read.
func (r *Registry) Mapping() *Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.loadedAt) < cacheTTL {
		return r.cached
	}

	m, err := loadMappingFile(r.path)
	if err != nil {
		zap.L().Error("compat: failed to load compatibility mapping",
			zap.String("path", r.path),
			zap.Error(err),
		)
		return emptyMapping()
	}

	r.cached = m
	r.loadedAt = r.now()
	return m
}

// Refresh discards the cached mapping and re-reads from disk.
func (r *Registry) Refresh() *Mapping {
	r.mu.Lock()
	r.cached = nil
	r.loadedAt = time.Time{}
	r.mu.Unlock()
	return r.Mapping()
}

func emptyMapping() *Mapping {
	return &Mapping{
		Files:  map[string]FileEntry{},
		Topics: map[string]TopicEntry{},
	}
}

func loadMappingFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "compat: read mapping file")
	}

	var raw rawMapping
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "compat: parse mapping file")
	}

	m := &Mapping{
		Version:             raw.Version,
		LastUpdated:         raw.LastUpdated,
		Files:               raw.Files,
		Topics:              raw.Topics,
		GlobalFiles:         raw.GlobalFiles,
		CompatibleTopics:    raw.CompatibleTopics,
		NonComparableTopics: raw.NonComparable,
	}
	if m.Files == nil {
		m.Files = raw.FileCompatibility
	}
	if raw.Metadata != nil {
		if m.Version == "" {
			m.Version = raw.Metadata.Version
		}
		if m.LastUpdated == "" {
			m.LastUpdated = raw.Metadata.LastUpdated
		}
	}
	if m.Files == nil {
		m.Files = map[string]FileEntry{}
	}
	if m.Topics == nil {
		m.Topics = map[string]TopicEntry{}
	}

	if len(m.Files) == 0 {
		return nil, eris.New("compat: mapping has no file entries")
	}

	zap.L().Info("compat: loaded compatibility mapping",
		zap.String("version", m.Version),
		zap.Int("files", len(m.Files)),
		zap.Int("topics", len(m.Topics)),
	)
	return m, nil
}

var yearPrefixPattern = regexp.MustCompile(`^(\d{4})_`)

// yearFromFileID recovers the survey year from a file ID when the mapping
// entry lacks one. Falls back to the current survey year.
func yearFromFileID(fileID string) int {
	if m := yearPrefixPattern.FindStringSubmatch(fileID); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	return 2025
}

// cleanFileID strips a trailing .json extension if present.
func cleanFileID(fileID string) string {
	return strings.TrimSuffix(fileID, ".json")
}
