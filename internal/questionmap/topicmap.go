package questionmap

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TopicMapping is the canonical topic mapping document: themes group
// topics, and each topic maps survey years to the data files carrying its
// question. Assumed static per deployment; loaded once, no TTL.
type TopicMapping struct {
	Themes []Theme `json:"themes"`
}

// Theme is a named group of related topics.
type Theme struct {
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Topic is the unit of year-over-year comparability.
type Topic struct {
	ID                string                   `json:"id"`
	CanonicalQuestion string                   `json:"canonicalQuestion,omitempty"`
	Mapping           map[string][]FileMapping `json:"mapping"`
}

// FileMapping points a topic-year at one data file.
type FileMapping struct {
	File string `json:"file"`
}

// Index answers topic/file resolution queries over the canonical mapping.
// The document is read on first use and cached for the process lifetime.
type Index struct {
	path string

	once    sync.Once
	mapping *TopicMapping
	loadErr error
}

// NewIndex creates an index over the mapping document at path.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

func (ix *Index) load() *TopicMapping {
	ix.once.Do(func() {
		data, err := os.ReadFile(ix.path)
		if err != nil {
			ix.loadErr = eris.Wrap(err, "questionmap: read topic mapping")
			return
		}
		var m TopicMapping
		if err := json.Unmarshal(data, &m); err != nil {
			ix.loadErr = eris.Wrap(err, "questionmap: parse topic mapping")
			return
		}
		ix.mapping = &m
		zap.L().Info("questionmap: loaded canonical topic mapping",
			zap.String("path", ix.path),
			zap.Int("themes", len(m.Themes)),
		)
	})
	if ix.loadErr != nil {
		zap.L().Error("questionmap: topic mapping unavailable", zap.Error(ix.loadErr))
		return &TopicMapping{}
	}
	return ix.mapping
}

// TopicForFile returns the topic ID owning a data file, or "Unknown".
func (ix *Index) TopicForFile(fileID string) string {
	normalized := fileID
	if !strings.HasSuffix(normalized, ".json") {
		normalized += ".json"
	}

	for _, theme := range ix.load().Themes {
		for _, topic := range theme.Topics {
			for _, entries := range topic.Mapping {
				for _, entry := range entries {
					if entry.File == normalized {
						return topic.ID
					}
				}
			}
		}
	}
	return "Unknown"
}

// FilesForTopics resolves intent topics to candidate file IDs. A topic
// matches when its ID equals the requested topic (case-insensitive) or its
// canonical question contains the requested term. When years are given only
// those survey years contribute files; otherwise all mapped years do.
// Returned IDs carry no .json extension, are de-duplicated, and come out in
// year-ascending mapping order so the resolution is deterministic.
func (ix *Index) FilesForTopics(topics []string, years []int) []string {
	if len(topics) == 0 {
		return []string{}
	}

	yearSet := map[string]struct{}{}
	for _, y := range years {
		yearSet[strconv.Itoa(y)] = struct{}{}
	}

	var out []string
	seen := map[string]struct{}{}

	for _, theme := range ix.load().Themes {
		for _, topic := range theme.Topics {
			if !topicMatches(topic, topics) {
				continue
			}
			mappedYears := make([]string, 0, len(topic.Mapping))
			for year := range topic.Mapping {
				mappedYears = append(mappedYears, year)
			}
			sort.Strings(mappedYears)

			for _, year := range mappedYears {
				if len(yearSet) > 0 {
					if _, ok := yearSet[year]; !ok {
						continue
					}
				}
				for _, entry := range topic.Mapping[year] {
					id := strings.TrimSuffix(entry.File, ".json")
					if id == "" {
						continue
					}
					if _, dup := seen[id]; dup {
						continue
					}
					seen[id] = struct{}{}
					out = append(out, id)
				}
			}
		}
	}
	return out
}

func topicMatches(topic Topic, requested []string) bool {
	for _, want := range requested {
		if strings.EqualFold(topic.ID, want) {
			return true
		}
		if topic.CanonicalQuestion != "" &&
			strings.Contains(strings.ToLower(topic.CanonicalQuestion), strings.ToLower(want)) {
			return true
		}
	}
	return false
}
