package questionmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMatchingQuestions_NoCandidates(t *testing.T) {
	out := FindMatchingQuestions("anything", map[string][]string{}, "Q4_1")
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestFindMatchingQuestions_SingleCandidateUnconditional(t *testing.T) {
	base := map[string][]string{
		"Q4": {"Completely unrelated wording"},
	}

	// With only one candidate there is nothing to rank; it is returned even
	// with zero lexical overlap.
	out := FindMatchingQuestions("remote work frequency", base, "Q4_1")
	assert.Equal(t, []string{"Completely unrelated wording"}, out)
}

func TestFindMatchingQuestions_ScoresAndRanks(t *testing.T) {
	base := map[string][]string{
		"Q4": {
			"How satisfied are you with your compensation package?",
			"How often do you work remotely from home?",
			"What is your sector?",
		},
	}

	out := FindMatchingQuestions("work remotely from home", base, "Q4_2")
	assert.Equal(t, []string{"How often do you work remotely from home?"}, out)
}

func TestFindMatchingQuestions_BelowCutoffExcluded(t *testing.T) {
	base := map[string][]string{
		"Q7": {
			"Question about compensation levels",
			"Question about remote work",
		},
	}

	// Only one meaningful word overlaps with each candidate; score 1 is
	// below the confidence cutoff.
	out := FindMatchingQuestions("compensation", base, "Q7_1")
	assert.Empty(t, out)
}

func TestFindMatchingQuestions_EnumerationBonus(t *testing.T) {
	base := map[string][]string{
		"Q9": {
			"Please rate the following statements about remote work flexibility",
			"Statements about remote work flexibility - 3 Commute time",
		},
	}

	// Both candidates share the same lexical overlap; the explicit "- 3"
	// enumeration outranks it.
	out := FindMatchingQuestions("remote work flexibility statements", base, "Q9_3")
	assert.Equal(t, "Statements about remote work flexibility - 3 Commute time", out[0])
}

func TestFindMatchingQuestions_Deterministic(t *testing.T) {
	base := map[string][]string{
		"Q2": {
			"Alpha question about workplace wellbeing support",
			"Beta question about workplace wellbeing support",
		},
	}

	first := FindMatchingQuestions("workplace wellbeing support", base, "Q2_1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FindMatchingQuestions("workplace wellbeing support", base, "Q2_1"))
	}
	// Equal scores keep candidate order.
	assert.Equal(t, "Alpha question about workplace wellbeing support", first[0])
}

func TestMeaningfulWords(t *testing.T) {
	words := meaningfulWords("How often do you work remotely, and why?")
	assert.Equal(t, []string{"often", "work", "remotely"}, words)
}

func TestHasEnumeration(t *testing.T) {
	assert.True(t, hasEnumeration("Statement 3. Commute", "3"))
	assert.True(t, hasEnumeration("Statement (3) Commute", "3"))
	assert.True(t, hasEnumeration("Statement - 3 Commute", "3"))
	assert.True(t, hasEnumeration("Statement: 3 Commute", "3"))
	assert.False(t, hasEnumeration("Statement 30 Commute", "3"))
}
