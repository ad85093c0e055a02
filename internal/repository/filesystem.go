package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/workforce-pulse/insights-cli/internal/intent"
	"github.com/workforce-pulse/insights-cli/internal/model"
	"github.com/workforce-pulse/insights-cli/internal/questionmap"
)

// maxConcurrentReads bounds the parallel fan-out of a multi-file fetch.
// Files are independent and read-only, so reads are safely parallelizable.
const maxConcurrentReads = 8

// FileSystemRepository serves split survey data files from a directory of
// JSON documents, one per question.
type FileSystemRepository struct {
	dataDir string
	index   *questionmap.Index
}

// NewFileSystem creates a repository over dataDir, using the canonical
// topic index to resolve query-driven lookups.
func NewFileSystem(dataDir string, index *questionmap.Index) *FileSystemRepository {
	return &FileSystemRepository{dataDir: dataDir, index: index}
}

// rawFile matches the on-disk document layout: question and metadata at the
// top, response rows beneath.
type rawFile struct {
	Question  string             `json:"question"`
	Metadata  model.FileMetadata `json:"metadata"`
	Responses []model.Response   `json:"responses"`
}

// GetFileByID loads a single file, fully populated.
func (r *FileSystemRepository) GetFileByID(ctx context.Context, id string) (*model.DataFile, error) {
	return r.readFile(ctx, id, nil)
}

// GetFilesByIDs loads many files concurrently. Unreadable or malformed
// files are skipped with a log line rather than failing the batch; the
// caller receives fewer files, never an error for partial data.
func (r *FileSystemRepository) GetFilesByIDs(ctx context.Context, ids []string) ([]*model.DataFile, error) {
	return r.readFiles(ctx, ids, nil)
}

// GetFilesByQuery parses the query's intent, resolves its topics to file
// IDs through the canonical topic index, and loads those files.
func (r *FileSystemRepository) GetFilesByQuery(ctx context.Context, query string) ([]*model.DataFile, error) {
	it := intent.ParseQueryIntent(query, nil)
	ids := r.index.FilesForTopics(it.Topics, it.Years)
	if len(ids) == 0 {
		// Generic query with no topic signal: serve everything available.
		var err error
		ids, err = r.listFileIDs()
		if err != nil {
			return nil, err
		}
	}
	return r.readFiles(ctx, ids, nil)
}

// LoadSegments returns a copy of the file with the additional requested
// segments populated from disk, supporting progressive partial loading.
func (r *FileSystemRepository) LoadSegments(ctx context.Context, file *model.DataFile, segmentNames []string) (*model.DataFile, error) {
	if file.LoadedSegments == nil {
		// Already fully loaded.
		return file, nil
	}

	want := make(map[string]struct{}, len(file.LoadedSegments)+len(segmentNames))
	for s := range file.LoadedSegments {
		want[s] = struct{}{}
	}
	for _, s := range segmentNames {
		want[s] = struct{}{}
	}

	names := make([]string, 0, len(want))
	for s := range want {
		names = append(names, s)
	}
	sort.Strings(names)

	return r.readFile(ctx, file.ID, names)
}

// GetFilesByScope loads the files named by a scope, restricted to its
// demographics when the scope is segment-specific.
func (r *FileSystemRepository) GetFilesByScope(ctx context.Context, scope model.DataScope) ([]*model.DataFile, error) {
	var segmentNames []string
	if len(scope.Demographics) > 0 {
		segmentNames = scope.Demographics
	}
	return r.readFiles(ctx, scope.FileIDs, segmentNames)
}

func (r *FileSystemRepository) readFiles(ctx context.Context, ids []string, segmentNames []string) ([]*model.DataFile, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	var mu sync.Mutex
	loaded := make(map[string]*model.DataFile, len(ids))

	for _, id := range ids {
		g.Go(func() error {
			f, err := r.readFile(gCtx, id, segmentNames)
			if err != nil {
				zap.L().Warn("repository: skipping unreadable file",
					zap.String("file_id", id),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			loaded[id] = f
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Preserve the caller's ordering.
	out := make([]*model.DataFile, 0, len(loaded))
	for _, id := range ids {
		if f, ok := loaded[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *FileSystemRepository) readFile(ctx context.Context, id string, segmentNames []string) (*model.DataFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := id
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	path := filepath.Join(r.dataDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "repository: read %s", name)
	}

	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "repository: parse %s", name)
	}

	file := &model.DataFile{
		ID:        strings.TrimSuffix(id, ".json"),
		Filepath:  path,
		Question:  raw.Question,
		Metadata:  raw.Metadata,
		Responses: raw.Responses,
	}

	if len(segmentNames) > 0 {
		restrictSegments(file, segmentNames)
	}
	return file, nil
}

// restrictSegments drops segment keys outside the requested set and records
// which segments are populated. "overall" always survives so the topline
// number is never lost to partial loading.
func restrictSegments(file *model.DataFile, segmentNames []string) {
	keep := map[string]struct{}{"overall": {}}
	for _, s := range segmentNames {
		keep[s] = struct{}{}
	}

	for i := range file.Responses {
		trimmed := make(map[string]model.SegmentValue, len(keep))
		for key, val := range file.Responses[i].Data {
			if _, ok := keep[key]; ok {
				trimmed[key] = val
			}
		}
		file.Responses[i].Data = trimmed
	}
	file.LoadedSegments = keep
}

func (r *FileSystemRepository) listFileIDs() ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list data dir")
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
