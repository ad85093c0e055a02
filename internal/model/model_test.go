package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentValue_UnmarshalDirect(t *testing.T) {
	var v SegmentValue
	require.NoError(t, json.Unmarshal([]byte(`0.67`), &v))

	assert.True(t, v.IsDirect())
	assert.False(t, v.IsNested())
	assert.InDelta(t, 0.67, *v.Direct, 1e-9)
}

func TestSegmentValue_UnmarshalNested(t *testing.T) {
	var v SegmentValue
	require.NoError(t, json.Unmarshal([]byte(`{"united_states":0.72,"germany":0.55}`), &v))

	assert.True(t, v.IsNested())
	assert.False(t, v.IsDirect())
	assert.InDelta(t, 0.72, v.Nested["united_states"], 1e-9)
	assert.InDelta(t, 0.55, v.Nested["germany"], 1e-9)
}

func TestSegmentValue_UnmarshalSkipsNonNumericShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"string", `"n/a"`},
		{"null", `null`},
		{"array", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v SegmentValue
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.False(t, v.IsDirect())
			assert.False(t, v.IsNested())
		})
	}
}

func TestSegmentValue_UnmarshalNestedDropsNonNumericSubkeys(t *testing.T) {
	var v SegmentValue
	require.NoError(t, json.Unmarshal([]byte(`{"uk":0.4,"note":"low sample"}`), &v))

	assert.True(t, v.IsNested())
	assert.Len(t, v.Nested, 1)
	assert.InDelta(t, 0.4, v.Nested["uk"], 1e-9)
}

func TestSegmentValue_UnmarshalNestedDropsNullSubkeys(t *testing.T) {
	var v SegmentValue
	require.NoError(t, json.Unmarshal([]byte(`{"uk":0.4,"germany":null}`), &v))

	assert.True(t, v.IsNested())
	assert.Len(t, v.Nested, 1)
	assert.NotContains(t, v.Nested, "germany")
}

func TestSegmentValue_MarshalRoundTrip(t *testing.T) {
	direct := 0.5
	b, err := json.Marshal(SegmentValue{Direct: &direct})
	require.NoError(t, err)
	assert.JSONEq(t, `0.5`, string(b))

	b, err = json.Marshal(SegmentValue{Nested: map[string]float64{"uk": 0.4}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uk":0.4}`, string(b))

	b, err = json.Marshal(SegmentValue{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestNewStatistic_PercentageIsRoundedStat(t *testing.T) {
	tests := []struct {
		stat float64
		pct  int
	}{
		{0.67, 67},
		{0.675, 68},
		{0.674, 67},
		{0, 0},
		{1, 100},
	}
	for _, tt := range tests {
		s := NewStatistic("f", "q", "r", "overall", "overall", tt.stat)
		assert.Equal(t, tt.pct, s.Percentage)
		assert.Equal(t, tt.stat, s.Stat)
	}
}

func TestNewStatistic_SegmentNaming(t *testing.T) {
	s := NewStatistic("f", "q", "r", "overall", "overall", 0.5)
	assert.Equal(t, "overall", s.Segment)

	s = NewStatistic("f", "q", "r", "region", "united_states", 0.72)
	assert.Equal(t, "region:united_states", s.Segment)
	assert.Equal(t, "72%", s.Formatted)
}

func TestDataScope_IsEmpty(t *testing.T) {
	assert.True(t, DataScope{}.IsEmpty())
	assert.True(t, DataScope{Topics: []string{}, FileIDs: []string{}}.IsEmpty())
	assert.False(t, DataScope{Topics: []string{"remote_work"}}.IsEmpty())
	assert.False(t, DataScope{Years: []int{2025}}.IsEmpty())
	assert.False(t, DataScope{FileIDs: []string{"2025_1"}}.IsEmpty())
}

func TestDataFile_QuestionText(t *testing.T) {
	f := &DataFile{Question: "How often do you work remotely?"}
	assert.Equal(t, "How often do you work remotely?", f.QuestionText())

	f = &DataFile{Metadata: FileMetadata{CanonicalQuestion: "Remote work frequency"}}
	assert.Equal(t, "Remote work frequency", f.QuestionText())

	f = &DataFile{Question: "A", Metadata: FileMetadata{CanonicalQuestion: "B"}}
	assert.Equal(t, "A", f.QuestionText())
}
