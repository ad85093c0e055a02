package intent

import "github.com/workforce-pulse/insights-cli/internal/model"

// MapIntentToDataScope lifts a parsed intent into the scope to fetch.
// Topics, demographics and years pass through unchanged; file IDs start
// empty and are resolved downstream by the question index. Pure and
// idempotent.
func MapIntentToDataScope(it model.QueryIntent) model.DataScope {
	return model.DataScope{
		Topics:       append([]string{}, it.Topics...),
		Demographics: append([]string{}, it.Demographics...),
		Years:        append([]int{}, it.Years...),
		FileIDs:      []string{},
	}
}
