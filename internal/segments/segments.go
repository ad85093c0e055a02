// Package segments defines the canonical demographic segment vocabulary
// used for filtering and retrieval across the survey data pipeline.
package segments

import "strings"

// DefaultSegments is the fallback subset used when a query names no
// demographic dimension at all.
var DefaultSegments = []string{"region", "age", "gender"}

// CanonicalSegments is the full set of valid segment keys present in the
// split survey data files. Immutable for the process lifetime.
var CanonicalSegments = []string{
	"overall",
	"region",
	"age",
	"gender",
	"org_size",
	"sector",
	"job_level",
	"relationship_status",
	"education",
	"generation",
	"employment_status",
}

var canonicalSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(CanonicalSegments))
	for _, s := range CanonicalSegments {
		m[s] = struct{}{}
	}
	return m
}()

// IsCanonical reports whether name is a valid segment key.
func IsCanonical(name string) bool {
	_, ok := canonicalSet[name]
	return ok
}

// Normalize maps common aliases onto canonical segment keys. Unknown names
// are returned unchanged; callers filter with IsCanonical afterwards.
func Normalize(name string) string {
	switch strings.ToLower(name) {
	case "country", "market":
		return "region"
	default:
		return name
	}
}

// NormalizeAll normalizes a demographic list and drops anything that does
// not map to the canonical vocabulary. An empty input yields the full
// canonical set. "overall" is always present in the result so every query
// keeps its topline numbers.
func NormalizeAll(names []string) []string {
	if len(names) == 0 {
		out := make([]string, len(CanonicalSegments))
		copy(out, CanonicalSegments)
		return out
	}

	out := make([]string, 0, len(names)+1)
	seen := make(map[string]struct{}, len(names)+1)
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add("overall")
	for _, n := range names {
		norm := Normalize(n)
		if IsCanonical(norm) {
			add(norm)
		}
	}
	return out
}
