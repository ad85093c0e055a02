package compat

// ComparablePairsResult partitions candidate files into those usable for a
// year-over-year presentation and those that are not, with a user-facing
// explanation for the latter.
type ComparablePairsResult struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
	Message string   `json:"message"`
}

// ComparablePairs evaluates file metadata grouped by topic. Topics spanning
// fewer than two distinct years are valid wholesale (nothing to compare
// against). Within a multi-year topic each entry is judged on its own
// comparable flag, so a mixed topic keeps its comparable members. The
// message is the first non-empty user message found among invalid entries.
//
// This is the lenient of the two strictness levels; FilterIncomparable is
// the strict comparison-query gate that removes whole topics.
func ComparablePairs(files []FileMeta) ComparablePairsResult {
	result := ComparablePairsResult{
		Valid:   []string{},
		Invalid: []string{},
	}

	byTopic := map[string][]FileMeta{}
	var topicOrder []string
	for _, f := range files {
		if _, seen := byTopic[f.TopicID]; !seen {
			topicOrder = append(topicOrder, f.TopicID)
		}
		byTopic[f.TopicID] = append(byTopic[f.TopicID], f)
	}

	for _, topicID := range topicOrder {
		group := byTopic[topicID]

		years := map[int]struct{}{}
		for _, f := range group {
			years[f.Year] = struct{}{}
		}

		if len(years) < 2 {
			for _, f := range group {
				result.Valid = append(result.Valid, f.FileID)
			}
			continue
		}

		for _, f := range group {
			if f.Comparable {
				result.Valid = append(result.Valid, f.FileID)
				continue
			}
			result.Invalid = append(result.Invalid, f.FileID)
			if result.Message == "" && f.UserMessage != "" {
				result.Message = f.UserMessage
			}
		}
	}

	return result
}

// TopicSummary condenses the files of one topic into its year coverage and
// an all-files-comparable flag.
type TopicSummary struct {
	Years       []int  `json:"years"`
	Comparable  bool   `json:"comparable"`
	UserMessage string `json:"userMessage,omitempty"`
}

// SummarizeTopics aggregates file metadata per topic: the distinct years
// seen, whether every file is comparable, and the first user message
// encountered.
func SummarizeTopics(files []FileMeta) map[string]TopicSummary {
	summary := map[string]TopicSummary{}

	for _, f := range files {
		s, ok := summary[f.TopicID]
		if !ok {
			s = TopicSummary{Comparable: true, UserMessage: f.UserMessage}
		}

		seen := false
		for _, y := range s.Years {
			if y == f.Year {
				seen = true
				break
			}
		}
		if !seen {
			s.Years = append(s.Years, f.Year)
		}

		if !f.Comparable {
			s.Comparable = false
		}
		if s.UserMessage == "" && f.UserMessage != "" {
			s.UserMessage = f.UserMessage
		}

		summary[f.TopicID] = s
	}

	return summary
}
