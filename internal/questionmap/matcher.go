// Package questionmap links survey questions across years: a canonical
// topic mapping document resolves topics to data files, and a deterministic
// fuzzy matcher ties sub-question IDs to prior-year question texts.
package questionmap

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// minMatchScore is the confidence cutoff: candidates scoring below it are
// treated as non-matches.
const minMatchScore = 2

// enumerationBonus is added when a candidate text carries the sub-question
// number as an explicit enumeration; an explicit number outranks lexical
// overlap.
const enumerationBonus = 3

// FindMatchingQuestions scores prior-year question texts against a
// reference text for a given sub-question ID (e.g. "Q4_1") and returns the
// confident matches, best first. An empty result is a valid outcome
// signaling "no confident match". The scoring is deterministic: identical
// inputs always yield the same ranked output, which the cross-year identity
// linkage depends on.
func FindMatchingQuestions(referenceText string, baseQuestions map[string][]string, subQuestionID string) []string {
	baseID, subNumber, _ := strings.Cut(subQuestionID, "_")

	candidates := baseQuestions[baseID]
	if len(candidates) == 0 {
		return []string{}
	}

	// A lone candidate is returned unconditionally; there is nothing to rank.
	if len(candidates) == 1 {
		return candidates
	}

	refWords := meaningfulWords(referenceText)

	type scored struct {
		question string
		score    int
		index    int
	}
	var ranked []scored

	for i, candidate := range candidates {
		lower := strings.ToLower(candidate)

		score := 0
		for _, w := range refWords {
			if strings.Contains(lower, w) {
				score++
			}
		}

		if subNumber != "" && hasEnumeration(candidate, subNumber) {
			score += enumerationBonus
		}

		if score >= minMatchScore {
			ranked = append(ranked, scored{question: candidate, score: score, index: i})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	out := make([]string, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.question)
	}
	return out
}

// meaningfulWords lowercases, strips punctuation and drops short tokens.
func meaningfulWords(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	var words []string
	for _, w := range strings.Fields(b.String()) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// hasEnumeration reports whether the candidate text names the sub-question
// number in one of the recognized enumeration forms.
func hasEnumeration(candidate, subNumber string) bool {
	for _, form := range []string{
		fmt.Sprintf(" %s.", subNumber),
		fmt.Sprintf("(%s)", subNumber),
		fmt.Sprintf("- %s", subNumber),
		fmt.Sprintf(": %s", subNumber),
	} {
		if strings.Contains(candidate, form) {
			return true
		}
	}
	return false
}
