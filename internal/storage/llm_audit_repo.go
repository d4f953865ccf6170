package storage

import (
	"context"
	"fmt"
)

type LLMCallRecord struct {
	CallID       string
	Operation    string
	RunID        string
	WindowID     int
	Attempt      int
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	LatencyMS    int64
	PromptSHA256 string
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, run_id, window_id, attempt, provider_name, model, status, error_type, latency_ms, prompt_sha256)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,''), $4, $5, $6, $7, $8, NULLIF($9,''), $10, NULLIF($11,''))`,
		rec.CallID, rec.Operation, rec.RunID, rec.WindowID, rec.Attempt, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.LatencyMS, rec.PromptSHA256)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

type LLMCallStat struct {
	ProviderName string `json:"provider_name"`
	Status       string `json:"status"`
	Calls        int    `json:"calls"`
}

// StatsForRun counts recorded calls for a run by provider and outcome.
func (r *LLMAuditRepo) StatsForRun(ctx context.Context, runID string) ([]LLMCallStat, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT provider_name, status, COUNT(*)
FROM llm_calls
WHERE run_id=$1
GROUP BY provider_name, status
ORDER BY provider_name, status`, runID)
	if err != nil {
		return nil, fmt.Errorf("llm call stats: %w", err)
	}
	defer rows.Close()
	out := []LLMCallStat{}
	for rows.Next() {
		var s LLMCallStat
		if err := rows.Scan(&s.ProviderName, &s.Status, &s.Calls); err != nil {
			return nil, fmt.Errorf("scan llm call stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
