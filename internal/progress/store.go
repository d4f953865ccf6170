package progress

import (
	"context"
	"fmt"
	"path/filepath"

	"questflow/internal/config"
	"questflow/internal/models"
	"questflow/internal/storage"
)

// Store persists one run's progress document. Apply must be called once per
// window in window order; readers may call Read at any time.
type Store interface {
	Initialize(ctx context.Context, p InitParams) (*models.ProgressDocument, error)
	Apply(ctx context.Context, r models.WindowResult) (*models.ProgressDocument, error)
	Read(ctx context.Context) (*models.ProgressDocument, error)
}

// RunFilePath is where the file backend keeps the document of runID.
func RunFilePath(dataOutRoot, runID string) string {
	return filepath.Join(dataOutRoot, "runs", runID+".json")
}

// Open returns the configured backend for runID. db is only used by the
// postgres backend.
func Open(cfg config.Config, runID string, db *storage.DB) (Store, error) {
	switch cfg.ProgressBackend {
	case config.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres progress backend needs a database connection")
		}
		return NewPostgresStore(storage.NewProgressRepo(db), runID), nil
	default:
		return NewFileStore(RunFilePath(cfg.DataOutRoot, runID)), nil
	}
}
