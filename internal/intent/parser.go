// Package intent extracts a structured query intent from free text and maps
// it onto a concrete data scope.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// topicTriggers maps keyword patterns to topic IDs. Multiple triggers may
// fire for one query; all matches are unioned.
var topicTriggers = []struct {
	pattern *regexp.Regexp
	topic   string
}{
	{regexp.MustCompile(`(?i)\b(remote|flexibility|flexible|hybrid)\b`), "remote_work"},
	{regexp.MustCompile(`(?i)\b(ai|artificial intelligence|automation)\b`), "ai_impact"},
	{regexp.MustCompile(`(?i)\b(leave|leaving|attrition|quit|retention)\b`), "attrition"},
	{regexp.MustCompile(`(?i)\b(pay|salary|compensation|reward)\b`), "compensation"},
	{regexp.MustCompile(`(?i)\b(wellbeing|well-being|burnout|stress)\b`), "wellbeing"},
	{regexp.MustCompile(`(?i)\b(leader|leadership|manager|management)\b`), "leadership_confidence"},
}

// demographicTriggers maps keyword patterns to region keys used in the
// split data files, plus the "global" pseudo-demographic.
var demographicTriggers = []struct {
	pattern *regexp.Regexp
	key     string
}{
	{regexp.MustCompile(`(?i)\b(us|usa|united states|america)\b`), "united_states"},
	{regexp.MustCompile(`(?i)\b(uk|united kingdom|britain)\b`), "united_kingdom"},
	{regexp.MustCompile(`(?i)\bgermany\b`), "germany"},
	{regexp.MustCompile(`(?i)\bfrance\b`), "france"},
	{regexp.MustCompile(`(?i)\bjapan\b`), "japan"},
	{regexp.MustCompile(`(?i)\bindia\b`), "india"},
	{regexp.MustCompile(`(?i)\bbrazil\b`), "brazil"},
	{regexp.MustCompile(`(?i)\baustralia\b`), "australia"},
	{regexp.MustCompile(`(?i)\bglobal\b`), "global"},
}

// ParseQueryIntent derives topics, demographics, years, specificity and
// follow-up status from the raw query text and conversation history. It has
// no failure modes: a query with no recognizable signal yields empty sets.
func ParseQueryIntent(query string, history []model.PriorTurn) model.QueryIntent {
	it := model.QueryIntent{
		Topics:       []string{},
		Demographics: []string{},
		Years:        []int{},
		IsFollowUp:   len(history) > 0,
	}

	for _, m := range yearPattern.FindAllStringSubmatch(query, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		it.Years = appendUniqueInt(it.Years, y)
	}

	for _, t := range topicTriggers {
		if t.pattern.MatchString(query) {
			it.Topics = appendUnique(it.Topics, t.topic)
		}
	}

	for _, d := range demographicTriggers {
		if d.pattern.MatchString(query) {
			it.Demographics = appendUnique(it.Demographics, d.key)
		}
	}

	if len(it.Demographics) > 0 || len(it.Years) > 0 {
		it.Specificity = model.SpecificitySpecific
	} else {
		it.Specificity = model.SpecificityGeneral
	}

	return it
}

// IsComparisonQuery reports whether the query asks for a year-over-year or
// cross-group comparison. Used to select the stricter compatibility gate.
func IsComparisonQuery(query string, years []int) bool {
	if len(years) >= 2 {
		return true
	}
	lower := strings.ToLower(query)
	for _, kw := range []string{"compare", "comparison", "versus", " vs ", "change since", "year over year", "trend"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func appendUniqueInt(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
