// Package model holds the shared domain types for the survey insights
// pipeline: raw data files, extracted statistics, query intents and scopes.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Specificity classifies how narrowly a query targets the data.
type Specificity string

const (
	// SpecificityGeneral pulls a broad default scope.
	SpecificityGeneral Specificity = "general"
	// SpecificitySpecific pulls exactly the matched scope.
	SpecificitySpecific Specificity = "specific"
)

// QueryIntent is the structured reading of a free-text query. Ephemeral:
// created per query and consumed immediately by the scope mapper.
type QueryIntent struct {
	Topics       []string    `json:"topics"`
	Demographics []string    `json:"demographics"`
	Years        []int       `json:"years"`
	Specificity  Specificity `json:"specificity"`
	IsFollowUp   bool        `json:"isFollowUp"`
}

// DataScope describes what must be fetched to answer a query. It may be a
// delta (missing-only) scope when a cached scope already exists for the
// conversation thread.
type DataScope struct {
	Topics       []string `json:"topics"`
	Demographics []string `json:"demographics"`
	Years        []int    `json:"years"`
	FileIDs      []string `json:"fileIds"`
}

// IsEmpty reports whether the scope requires no fetching at all.
func (s DataScope) IsEmpty() bool {
	return len(s.Topics) == 0 && len(s.Demographics) == 0 &&
		len(s.Years) == 0 && len(s.FileIDs) == 0
}

// SegmentValue is a tagged union over the two shapes a segment can take in
// the split data files: a bare fraction ("overall": 0.67) or a map of
// sub-key fractions ("region": {"united_states": 0.72}). The shape is
// decided once, at parse time.
type SegmentValue struct {
	Direct *float64
	Nested map[string]float64
}

// IsDirect reports whether the value is a bare fraction.
func (v SegmentValue) IsDirect() bool { return v.Direct != nil }

// IsNested reports whether the value is a sub-key map.
func (v SegmentValue) IsNested() bool { return v.Nested != nil }

// UnmarshalJSON decides the variant from the JSON shape. Values that are
// neither a number nor an object of numbers (stray strings, nulls) leave
// both variants unset; the statistic filter skips them.
func (v *SegmentValue) UnmarshalJSON(b []byte) error {
	v.Direct = nil
	v.Nested = nil

	// JSON null unmarshals into a float64 as a no-op, which would read as
	// a real 0.0 and surface downstream as a 0% statistic absent from the
	// source. Nulls carry no value.
	if isJSONNull(b) {
		return nil
	}

	var direct float64
	if err := json.Unmarshal(b, &direct); err == nil {
		v.Direct = &direct
		return nil
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(b, &nested); err != nil {
		// Not a shape we extract statistics from.
		return nil
	}

	out := make(map[string]float64, len(nested))
	for k, raw := range nested {
		if isJSONNull(raw) {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			out[k] = f
		}
	}
	v.Nested = out
	return nil
}

func isJSONNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

// MarshalJSON renders the variant back to its source shape.
func (v SegmentValue) MarshalJSON() ([]byte, error) {
	if v.Direct != nil {
		return json.Marshal(*v.Direct)
	}
	if v.Nested != nil {
		return json.Marshal(v.Nested)
	}
	return []byte("null"), nil
}

// Response is one answer row in a survey question file, with its per-segment
// statistics.
type Response struct {
	Response string                  `json:"response"`
	Data     map[string]SegmentValue `json:"data"`
}

// FileMetadata carries the descriptive fields of a survey question file.
type FileMetadata struct {
	CanonicalQuestion string   `json:"canonicalQuestion,omitempty"`
	TopicID           string   `json:"topicId,omitempty"`
	Year              int      `json:"year,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
}

// DataFile is one on-disk survey question document. Immutable once loaded;
// owned by the file repository. May be partially loaded (only requested
// segments populated) and later completed via LoadSegments.
type DataFile struct {
	ID        string       `json:"id"`
	Filepath  string       `json:"filepath,omitempty"`
	Question  string       `json:"question,omitempty"`
	Metadata  FileMetadata `json:"metadata,omitempty"`
	Responses []Response   `json:"responses"`

	// LoadedSegments tracks which segment keys have been populated when the
	// file was fetched with a partial segment list. Nil means fully loaded.
	LoadedSegments map[string]struct{} `json:"-"`
}

// QuestionText resolves the question wording from its possible locations.
func (f *DataFile) QuestionText() string {
	if f.Question != "" {
		return f.Question
	}
	return f.Metadata.CanonicalQuestion
}

// Statistic is the flat extraction record the LLM and the validator operate
// on. Percentage is always round(Stat*100); Stat is the raw 0..1 fraction
// found in the source file.
type Statistic struct {
	FileID     string  `json:"fileId"`
	Question   string  `json:"question"`
	Response   string  `json:"response"`
	Segment    string  `json:"segment"`
	Category   string  `json:"category"`
	Value      string  `json:"value"`
	Stat       float64 `json:"stat"`
	Percentage int     `json:"percentage"`
	Formatted  string  `json:"formatted"`
}

// NewStatistic builds a Statistic from a raw fraction, deriving the rounded
// percentage and display form.
func NewStatistic(fileID, question, response, category, value string, stat float64) Statistic {
	segment := category
	if value != "overall" {
		segment = category + ":" + value
	}
	pct := int(math.Round(stat * 100))
	return Statistic{
		FileID:     fileID,
		Question:   question,
		Response:   response,
		Segment:    segment,
		Category:   category,
		Value:      value,
		Stat:       stat,
		Percentage: pct,
		Formatted:  fmt.Sprintf("%d%%", pct),
	}
}

// PriorTurn is one earlier exchange in a conversation thread, used for
// follow-up detection and topic carry-over.
type PriorTurn struct {
	Query  string `json:"query"`
	Answer string `json:"answer,omitempty"`
}
