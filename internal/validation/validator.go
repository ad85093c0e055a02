// Package validation checks generated answers against the raw survey data,
// guarding against fabricated statistics. The check is advisory: an answer
// that fails validation is still returned to the caller, annotated.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

var percentagePattern = regexp.MustCompile(`(\d{1,3})%`)

// strategicIndicators mark answers that should draw on broad, multi-market
// evidence.
var strategicIndicators = []string{"strategic", "comprehensive", "future", "trends"}

// countryNames is the literal list scanned for market coverage.
var countryNames = []string{
	"United Kingdom", "UK",
	"United States", "US", "USA",
	"Germany", "France", "China", "Japan", "India",
	"Brazil", "Australia", "Canada", "Singapore",
}

// minCountryCoverage is the number of listed country names a strategic
// answer must mention.
const minCountryCoverage = 8

// lowDensityMinPercentages and lowDensityAnswerLength define the
// low-data-density advisory: a long answer citing few numbers.
const (
	lowDensityMinPercentages = 5
	lowDensityAnswerLength   = 1000
)

// Report is the outcome of validating one generated answer.
type Report struct {
	Valid                     bool     `json:"valid"`
	FabricatedPercentages     []int    `json:"fabricatedPercentages"`
	PercentagesUsed           int      `json:"percentagesUsed"`
	TotalAvailablePercentages int      `json:"totalAvailablePercentages"`
	IsStrategicQuery          bool     `json:"isStrategicQuery"`
	CountryCount              int      `json:"countryCount"`
	SufficientCountryCoverage bool     `json:"sufficientCountryCoverage"`
	PotentialIssues           []string `json:"potentialIssues"`
}

// ValidateAnalysis verifies every numeric claim in the answer text is
// traceable to a source data value and that strategic answers carry enough
// country coverage. It never fails hard; problems surface as advisories.
func ValidateAnalysis(analysis string, files []*model.DataFile) Report {
	mentioned := mentionedPercentages(analysis)
	actual := actualPercentages(files)

	fabricated := []int{}
	for p := range mentioned {
		if _, ok := actual[p]; !ok {
			fabricated = append(fabricated, p)
		}
	}
	sort.Ints(fabricated)

	lower := strings.ToLower(analysis)
	strategic := false
	for _, indicator := range strategicIndicators {
		if strings.Contains(lower, indicator) {
			strategic = true
			break
		}
	}

	countryCount := 0
	for _, country := range countryNames {
		if strings.Contains(analysis, country) {
			countryCount++
		}
	}

	report := Report{
		Valid:                     len(fabricated) == 0,
		FabricatedPercentages:     fabricated,
		PercentagesUsed:           len(mentioned),
		TotalAvailablePercentages: len(actual),
		IsStrategicQuery:          strategic,
		CountryCount:              countryCount,
		SufficientCountryCoverage: !strategic || countryCount >= minCountryCoverage,
		PotentialIssues:           []string{},
	}

	if len(mentioned) < lowDensityMinPercentages && len(analysis) > lowDensityAnswerLength {
		report.PotentialIssues = append(report.PotentialIssues,
			"Low data density: long response with few data points")
	}
	if strategic && countryCount < minCountryCoverage {
		report.PotentialIssues = append(report.PotentialIssues,
			"Insufficient country coverage for strategic query")
	}
	if len(fabricated) > 0 {
		parts := make([]string, len(fabricated))
		for i, p := range fabricated {
			parts[i] = strconv.Itoa(p)
		}
		report.PotentialIssues = append(report.PotentialIssues,
			fmt.Sprintf("Fabricated percentages detected: %s", strings.Join(parts, ", ")))
	}

	return report
}

// Summary renders a one-line human-readable verdict.
func (r Report) Summary() string {
	if r.Valid {
		return fmt.Sprintf("Valid analysis using %d percentage values from the data.", r.PercentagesUsed)
	}
	return fmt.Sprintf("Invalid analysis: %d fabricated percentages detected.", len(r.FabricatedPercentages))
}

// mentionedPercentages collects every NN%-shaped token as an integer.
func mentionedPercentages(analysis string) map[int]struct{} {
	out := map[int]struct{}{}
	for _, m := range percentagePattern.FindAllStringSubmatch(analysis, -1) {
		if p, err := strconv.Atoi(m[1]); err == nil {
			out[p] = struct{}{}
		}
	}
	return out
}

// actualPercentages walks every file's data recursively and collects every
// numeric field in [0,100], rounded to the nearest integer. Raw fractions
// contribute their percentage form only (0.45 contributes 45, not 0), since
// answers cite percentages; whitelisting the rounded fraction would make
// every file vouch for "0%".
func actualPercentages(files []*model.DataFile) map[int]struct{} {
	out := map[int]struct{}{}
	for _, file := range files {
		if file == nil {
			continue
		}
		for _, row := range file.Responses {
			for _, value := range row.Data {
				switch {
				case value.IsDirect():
					addPercentage(out, *value.Direct)
				case value.IsNested():
					for _, v := range value.Nested {
						addPercentage(out, v)
					}
				}
			}
		}
	}
	return out
}

func addPercentage(set map[int]struct{}, v float64) {
	switch {
	case v >= 0 && v <= 1:
		set[int(math.Round(v*100))] = struct{}{}
	case v > 1 && v <= 100:
		set[int(math.Round(v))] = struct{}{}
	}
}

// CheckDataCoverage reports whether the retrieved data is broad enough for
// the query type: strategic queries need at least minCountryCoverage
// markets represented in the region segments.
func CheckDataCoverage(files []*model.DataFile, query string) bool {
	lower := strings.ToLower(query)
	strategic := false
	for _, kw := range []string{"strategic", "future", "trend", "global", "worldwide"} {
		if strings.Contains(lower, kw) {
			strategic = true
			break
		}
	}
	if !strategic {
		return true
	}

	markets := map[string]struct{}{}
	for _, file := range files {
		for _, row := range file.Responses {
			region, ok := row.Data["region"]
			if !ok || !region.IsNested() {
				continue
			}
			for market := range region.Nested {
				markets[market] = struct{}{}
			}
		}
	}
	return len(markets) >= minCountryCoverage
}

// MarshalJSON keeps FabricatedPercentages as an array even when empty.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	a := alias(r)
	if a.FabricatedPercentages == nil {
		a.FabricatedPercentages = []int{}
	}
	if a.PotentialIssues == nil {
		a.PotentialIssues = []string{}
	}
	return json.Marshal(a)
}
