package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questflow/internal/models"
	"questflow/internal/storage"
	"questflow/internal/util"
)

// DocumentRepo is the slice of storage.ProgressRepo the postgres backend uses.
type DocumentRepo interface {
	Put(ctx context.Context, doc *models.ProgressDocument) error
	Get(ctx context.Context, runID string) (*models.ProgressDocument, error)
	Update(ctx context.Context, runID string, fn func(doc *models.ProgressDocument) error) (*models.ProgressDocument, error)
}

// PostgresStore keeps each run as one JSONB row. Apply locks the row, merges
// in Go and writes the whole document back in a single transaction.
type PostgresStore struct {
	repo  DocumentRepo
	runID string
	now   func() time.Time
}

func NewPostgresStore(repo DocumentRepo, runID string) *PostgresStore {
	return &PostgresStore{repo: repo, runID: runID, now: time.Now}
}

func (s *PostgresStore) Initialize(ctx context.Context, p InitParams) (*models.ProgressDocument, error) {
	p.RunID = s.runID
	doc, err := NewDocument(p, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrStoreInit, err)
	}
	return doc, nil
}

func (s *PostgresStore) Apply(ctx context.Context, r models.WindowResult) (*models.ProgressDocument, error) {
	doc, err := s.repo.Update(ctx, s.runID, func(doc *models.ProgressDocument) error {
		return Merge(doc, r, s.now())
	})
	if err != nil {
		if errors.Is(err, ErrOutOfOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", util.ErrPersistence, err)
	}
	return doc, nil
}

func (s *PostgresStore) Read(ctx context.Context) (*models.ProgressDocument, error) {
	doc, err := s.repo.Get(ctx, s.runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return doc, err
}
