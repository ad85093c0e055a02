package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

// starterPattern matches starter question codes like "SQ1" or "sq12".
var starterPattern = regexp.MustCompile(`^(?i)SQ\d+$`)

// IsStarterQuestion reports whether the query is a starter question code
// rather than free text.
func IsStarterQuestion(query string) bool {
	return starterPattern.MatchString(strings.TrimSpace(query))
}

// starterDoc is the on-disk shape of a precompiled starter question bundle:
// the data files already resolved for the question, plus the segments the
// precompilation decided are relevant.
type starterDoc struct {
	Segments []string          `json:"segments"`
	Files    []*model.DataFile `json:"files"`
}

// StarterStore serves precompiled starter question bundles from a directory
// of SQ<N>.json documents.
type StarterStore struct {
	dir string
}

// NewStarterStore creates a store over dir. An empty dir disables the
// starter fast path.
func NewStarterStore(dir string) *StarterStore {
	return &StarterStore{dir: dir}
}

// Load reads the precompiled bundle for a starter code.
func (s *StarterStore) Load(code string) (*starterDoc, error) {
	if s == nil || s.dir == "" {
		return nil, eris.New("pipeline: starter store not configured")
	}

	name := strings.ToUpper(strings.TrimSpace(code)) + ".json"
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read starter bundle %s", name)
	}

	var doc starterDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse starter bundle %s", name)
	}
	return &doc, nil
}
