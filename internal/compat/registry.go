package compat

import (
	"go.uber.org/zap"
)

// Policy controls the comparability default applied when a file or topic
// has no entry in the mapping. The two call-site conventions:
//
//   - PolicyPermissive: silence about an unknown file should not block a
//     user; treat it as comparable.
//   - PolicyRestrictive: an error or gap encountered while actively
//     computing a comparison should block it; treat it as non-comparable.
type Policy int

const (
	PolicyPermissive Policy = iota
	PolicyRestrictive
)

func (p Policy) comparableDefault() bool { return p == PolicyPermissive }

// FileCompatibilityInfo is the lookup result for a single file.
type FileCompatibilityInfo struct {
	Comparable  bool
	Topic       string
	UserMessage string
}

// TopicCompatibilityInfo is the lookup result for a topic.
type TopicCompatibilityInfo struct {
	Comparable  bool
	UserMessage string
	Years       []int
}

// FileMeta is file metadata enriched with compatibility information, the
// input shape for ComparablePairs.
type FileMeta struct {
	FileID      string `json:"fileId"`
	TopicID     string `json:"topicId"`
	Year        int    `json:"year"`
	Comparable  bool   `json:"comparable"`
	UserMessage string `json:"userMessage,omitempty"`
}

// FileCompatibility looks up a file's comparability. Unknown files fall
// back to the policy default; global files answer from their own entry.
func (r *Registry) FileCompatibility(fileID string, policy Policy) FileCompatibilityInfo {
	m := r.Mapping()
	clean := cleanFileID(fileID)

	if entry, ok := m.Files[clean]; ok {
		return FileCompatibilityInfo{
			Comparable:  entry.Comparable,
			Topic:       entry.TopicID,
			UserMessage: entry.UserMessage,
		}
	}

	if gf, ok := m.GlobalFiles[clean]; ok {
		return FileCompatibilityInfo{
			Comparable:  gf.Comparable,
			Topic:       "Global",
			UserMessage: gf.Description,
		}
	}

	zap.L().Warn("compat: unknown file id", zap.String("file_id", clean))
	return FileCompatibilityInfo{
		Comparable:  policy.comparableDefault(),
		Topic:       "Unknown",
		UserMessage: "File not found in compatibility mapping.",
	}
}

// TopicCompatibility looks up a topic's comparability, falling back to the
// static compatible/non-comparable lists before the policy default.
func (r *Registry) TopicCompatibility(topicID string, policy Policy) TopicCompatibilityInfo {
	m := r.Mapping()

	if entry, ok := m.Topics[topicID]; ok {
		return TopicCompatibilityInfo{
			Comparable:  entry.Comparable,
			UserMessage: entry.UserMessage,
			Years:       entry.Years,
		}
	}

	for _, t := range m.CompatibleTopics {
		if t == topicID {
			return TopicCompatibilityInfo{Comparable: true, UserMessage: "Topic is marked as comparable."}
		}
	}
	for _, t := range m.NonComparableTopics {
		if t == topicID {
			return TopicCompatibilityInfo{Comparable: false, UserMessage: "Topic is marked as non-comparable."}
		}
	}

	zap.L().Warn("compat: unknown topic id", zap.String("topic_id", topicID))
	return TopicCompatibilityInfo{
		Comparable:  policy.comparableDefault(),
		UserMessage: "Topic not found in compatibility mapping.",
	}
}

// FilterResult is the outcome of FilterIncomparable.
type FilterResult struct {
	FilteredFileIDs           []string
	IncomparableTopicMessages map[string]string
}

// FilterIncomparable removes files belonging to non-comparable topics when
// a comparison is requested. A no-op unless isComparisonQuery is true and
// more than one file is given. When a topic contributes two or more files
// and is marked non-comparable, every file under that topic is removed and
// a user-facing message is recorded per topic; topics with exactly one
// contributing file are never filtered.
func (r *Registry) FilterIncomparable(fileIDs []string, isComparisonQuery bool) FilterResult {
	if !isComparisonQuery || len(fileIDs) <= 1 {
		return FilterResult{
			FilteredFileIDs:           fileIDs,
			IncomparableTopicMessages: map[string]string{},
		}
	}

	m := r.Mapping()
	fileToTopic := make(map[string]string, len(fileIDs))
	topicToFiles := make(map[string][]string)

	for _, fileID := range fileIDs {
		entry, ok := m.Files[cleanFileID(fileID)]
		if !ok {
			continue
		}
		fileToTopic[fileID] = entry.TopicID
		topicToFiles[entry.TopicID] = append(topicToFiles[entry.TopicID], fileID)
	}

	messages := map[string]string{}
	removed := map[string]bool{}

	for topic, topicFiles := range topicToFiles {
		if len(topicFiles) <= 1 {
			continue
		}
		// During active comparison computation the restrictive default applies.
		info := r.TopicCompatibility(topic, PolicyRestrictive)
		if info.Comparable {
			continue
		}
		removed[topic] = true
		if info.UserMessage != "" {
			messages[topic] = info.UserMessage
		} else {
			messages[topic] = "This topic cannot be compared across years."
		}
		zap.L().Info("compat: filtered incomparable topic",
			zap.String("topic", topic),
			zap.Int("files_removed", len(topicFiles)),
		)
	}

	filtered := make([]string, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		if removed[fileToTopic[fileID]] {
			continue
		}
		filtered = append(filtered, fileID)
	}

	return FilterResult{
		FilteredFileIDs:           filtered,
		IncomparableTopicMessages: messages,
	}
}

// LookupFiles enriches file IDs with topic, year and comparability
// metadata. Unknown files get a restrictive default with the year
// recovered from the ID itself.
func (r *Registry) LookupFiles(fileIDs []string) []FileMeta {
	m := r.Mapping()

	out := make([]FileMeta, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		clean := cleanFileID(fileID)
		entry, ok := m.Files[clean]
		if !ok {
			out = append(out, FileMeta{
				FileID:      clean,
				TopicID:     "Unknown",
				Year:        yearFromFileID(clean),
				Comparable:  false,
				UserMessage: "No compatibility information available for this file.",
			})
			continue
		}

		year := entry.Year
		if year == 0 {
			year = yearFromFileID(clean)
		}
		out = append(out, FileMeta{
			FileID:      clean,
			TopicID:     entry.TopicID,
			Year:        year,
			Comparable:  entry.Comparable,
			UserMessage: entry.UserMessage,
		})
	}
	return out
}

// FileIDsForTopic returns all file IDs mapped to a topic.
func (r *Registry) FileIDsForTopic(topicID string) []string {
	m := r.Mapping()
	var out []string
	for fileID, entry := range m.Files {
		if entry.TopicID == topicID {
			out = append(out, fileID)
		}
	}
	return out
}

// CompatibleTopics returns the statically declared comparable topic IDs.
func (r *Registry) CompatibleTopics() []string {
	return r.Mapping().CompatibleTopics
}

// NonComparableTopics returns the statically declared non-comparable topic IDs.
func (r *Registry) NonComparableTopics() []string {
	return r.Mapping().NonComparableTopics
}

// IncomparableTopicMessage returns the user-facing message for a
// non-comparable topic, or "" when the topic is comparable.
func (r *Registry) IncomparableTopicMessage(topicID string) string {
	info := r.TopicCompatibility(topicID, PolicyRestrictive)
	if info.Comparable {
		return ""
	}
	return info.UserMessage
}

// FileIncomparabilityReason returns the recorded reason a file is not
// comparable, or "" when it is comparable or unknown.
func (r *Registry) FileIncomparabilityReason(fileID string) string {
	m := r.Mapping()
	entry, ok := m.Files[cleanFileID(fileID)]
	if !ok || entry.Comparable {
		return ""
	}
	return entry.Reason
}

// AreFilesComparable reports whether a set of files can be presented
// together as a comparison: within every topic that contributes more than
// one file, all files must be marked comparable.
func (r *Registry) AreFilesComparable(fileIDs []string) bool {
	if len(fileIDs) <= 1 {
		return true
	}

	byTopic := map[string][]bool{}
	for _, fileID := range fileIDs {
		info := r.FileCompatibility(fileID, PolicyRestrictive)
		byTopic[info.Topic] = append(byTopic[info.Topic], info.Comparable)
	}

	for _, flags := range byTopic {
		if len(flags) <= 1 {
			continue
		}
		for _, comparable := range flags {
			if !comparable {
				return false
			}
		}
	}
	return true
}
