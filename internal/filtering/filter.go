// Package filtering extracts flat, normalized statistics from retrieved
// survey data files. No statistic is ever fabricated or interpolated: a
// field absent from the source is simply not emitted.
package filtering

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/workforce-pulse/insights-cli/internal/model"
	"github.com/workforce-pulse/insights-cli/internal/segments"
)

// BaseResult is the broad extraction used for general queries.
type BaseResult struct {
	Summary string            `json:"summary"`
	Stats   []model.Statistic `json:"stats"`
}

// SpecificResult is the narrow, segment-restricted extraction.
type SpecificResult struct {
	FilteredData    []model.Statistic `json:"filteredData"`
	FoundSegments   []string          `json:"foundSegments"`
	MissingSegments []string          `json:"missingSegments"`
}

// BaseData walks every response row in every file and emits all segment
// statistics. Malformed files are skipped per-file; the call degrades to
// fewer statistics rather than failing.
func BaseData(files []*model.DataFile) BaseResult {
	if len(files) == 0 {
		return BaseResult{Summary: "No data available", Stats: []model.Statistic{}}
	}

	stats := extract(files, nil)
	return BaseResult{
		Summary: fmt.Sprintf("Extracted %d statistics from %d files.", len(stats), len(files)),
		Stats:   stats,
	}
}

// SpecificData restricts extraction to the requested demographics. The
// caller's list is normalized against the canonical vocabulary; an empty
// list means all canonical segments, and "overall" is always force-included
// so every query keeps at least the topline number.
func SpecificData(files []*model.DataFile, demographics []string) SpecificResult {
	target := segments.NormalizeAll(demographics)

	targetSet := make(map[string]struct{}, len(target))
	for _, s := range target {
		targetSet[s] = struct{}{}
	}

	stats := extract(files, targetSet)

	found := map[string]struct{}{}
	for _, s := range stats {
		found[s.Category] = struct{}{}
	}

	var foundList, missing []string
	for _, s := range target {
		if _, ok := found[s]; ok {
			foundList = append(foundList, s)
		} else {
			missing = append(missing, s)
		}
	}
	sort.Strings(foundList)
	sort.Strings(missing)

	return SpecificResult{
		FilteredData:    stats,
		FoundSegments:   foundList,
		MissingSegments: missing,
	}
}

// extract emits one Statistic per numeric field, tagged by segment. A nil
// target set means no segment restriction.
func extract(files []*model.DataFile, target map[string]struct{}) []model.Statistic {
	stats := []model.Statistic{}

	for _, file := range files {
		if file == nil || file.ID == "" {
			zap.L().Warn("filtering: skipping file with no id")
			continue
		}
		if len(file.Responses) == 0 {
			zap.L().Warn("filtering: file has no responses", zap.String("file_id", file.ID))
			continue
		}

		question := file.QuestionText()

		for _, row := range file.Responses {
			for _, category := range sortedKeys(row.Data) {
				if target != nil {
					if _, ok := target[category]; !ok {
						continue
					}
				}

				value := row.Data[category]
				switch {
				case value.IsDirect():
					stats = append(stats, model.NewStatistic(
						file.ID, question, row.Response, category, "overall", *value.Direct,
					))
				case value.IsNested():
					for _, subKey := range sortedNestedKeys(value.Nested) {
						stats = append(stats, model.NewStatistic(
							file.ID, question, row.Response, category, subKey, value.Nested[subKey],
						))
					}
				}
			}
		}
	}

	return stats
}

func sortedKeys(m map[string]model.SegmentValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNestedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
