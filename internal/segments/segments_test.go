package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("overall"))
	assert.True(t, IsCanonical("region"))
	assert.True(t, IsCanonical("employment_status"))
	assert.False(t, IsCanonical("country"))
	assert.False(t, IsCanonical("shoe_size"))
	assert.False(t, IsCanonical(""))
}

func TestNormalize_Aliases(t *testing.T) {
	assert.Equal(t, "region", Normalize("country"))
	assert.Equal(t, "region", Normalize("Country"))
	assert.Equal(t, "region", Normalize("market"))
	assert.Equal(t, "age", Normalize("age"))
	assert.Equal(t, "shoe_size", Normalize("shoe_size"))
}

func TestNormalizeAll_EmptyYieldsFullCanonicalSet(t *testing.T) {
	out := NormalizeAll(nil)
	assert.Equal(t, CanonicalSegments, out)

	out = NormalizeAll([]string{})
	assert.Equal(t, CanonicalSegments, out)
}

func TestNormalizeAll_AlwaysIncludesOverall(t *testing.T) {
	out := NormalizeAll([]string{"age", "gender"})
	assert.Equal(t, []string{"overall", "age", "gender"}, out)
}

func TestNormalizeAll_DropsUnknownAndMapsAliases(t *testing.T) {
	out := NormalizeAll([]string{"country", "star_sign", "sector"})
	assert.Equal(t, []string{"overall", "region", "sector"}, out)
}

func TestNormalizeAll_Deduplicates(t *testing.T) {
	out := NormalizeAll([]string{"region", "country", "market", "overall"})
	assert.Equal(t, []string{"overall", "region"}, out)
}
