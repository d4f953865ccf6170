package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"questflow/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

type ProgressRepo struct {
	db *DB
}

func NewProgressRepo(db *DB) *ProgressRepo {
	return &ProgressRepo{db: db}
}

// Put writes doc as the current state of its run, replacing any previous row.
func (r *ProgressRepo) Put(ctx context.Context, doc *models.ProgressDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal progress document: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO progress_documents (run_id, source_descriptor, status, windows_completed, total_windows, document)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id)
DO UPDATE SET
  source_descriptor = EXCLUDED.source_descriptor,
  status = EXCLUDED.status,
  windows_completed = EXCLUDED.windows_completed,
  total_windows = EXCLUDED.total_windows,
  document = EXCLUDED.document,
  updated_at = NOW()`,
		doc.RunID, doc.SourceDescriptor, doc.ProcessingStatus, doc.WindowsCompleted, doc.TotalWindows, b)
	if err != nil {
		return fmt.Errorf("put progress document: %w", err)
	}
	return nil
}

func (r *ProgressRepo) Get(ctx context.Context, runID string) (*models.ProgressDocument, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT document FROM progress_documents WHERE run_id=$1`, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress document: %w", err)
	}
	return decodeDocument(raw)
}

// Update locks the run's row, hands the current document to fn and stores
// what fn left in it, all in one transaction. When fn fails nothing is
// written.
func (r *ProgressRepo) Update(ctx context.Context, runID string, fn func(doc *models.ProgressDocument) error) (*models.ProgressDocument, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin progress tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT document FROM progress_documents WHERE run_id=$1 FOR UPDATE`, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock progress document: %w", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal progress document: %w", err)
	}
	_, err = tx.Exec(ctx, `
UPDATE progress_documents
SET status=$2, windows_completed=$3, document=$4, updated_at=NOW()
WHERE run_id=$1`, runID, doc.ProcessingStatus, doc.WindowsCompleted, b)
	if err != nil {
		return nil, fmt.Errorf("update progress document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit progress tx: %w", err)
	}
	return doc, nil
}

type RunSummary struct {
	RunID            string `json:"run_id"`
	SourceDescriptor string `json:"source_descriptor"`
	Status           string `json:"processing_status"`
	WindowsCompleted int    `json:"windows_completed"`
	TotalWindows     int    `json:"total_windows"`
}

func (r *ProgressRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id, source_descriptor, status, windows_completed, total_windows
FROM progress_documents
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []RunSummary{}
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.SourceDescriptor, &s.Status, &s.WindowsCompleted, &s.TotalWindows); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func decodeDocument(raw []byte) (*models.ProgressDocument, error) {
	var doc models.ProgressDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode progress document: %w", err)
	}
	return &doc, nil
}
