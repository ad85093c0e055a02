// Package repository resolves data scopes into loaded survey data files.
package repository

import (
	"context"

	"github.com/workforce-pulse/insights-cli/internal/model"
)

// FileRepository is the storage boundary for survey question documents.
// Implementations may load files partially (only requested segments
// populated) and complete them later via LoadSegments.
type FileRepository interface {
	GetFileByID(ctx context.Context, id string) (*model.DataFile, error)
	GetFilesByIDs(ctx context.Context, ids []string) ([]*model.DataFile, error)
	GetFilesByQuery(ctx context.Context, query string) ([]*model.DataFile, error)
	LoadSegments(ctx context.Context, file *model.DataFile, segmentNames []string) (*model.DataFile, error)
}
