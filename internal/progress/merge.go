// Package progress keeps the durable progress document of an extraction run.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"questflow/internal/models"
	"questflow/internal/util"
)

// UnknownLabel buckets questions without a type or difficulty.
const UnknownLabel = "unknown"

var (
	// ErrOutOfOrder rejects a result that is not the next window of the run.
	ErrOutOfOrder = errors.New("window result out of order")
	ErrNotFound   = errors.New("progress document not found")
)

type InitParams struct {
	RunID            string
	SourceDescriptor string
	TotalPages       int
	WindowSize       int
	TotalWindows     int
}

// NewDocument returns the zero state of a run.
func NewDocument(p InitParams, now time.Time) (*models.ProgressDocument, error) {
	if p.TotalWindows < 1 {
		return nil, fmt.Errorf("total windows %d: %w", p.TotalWindows, util.ErrInvalidConfiguration)
	}
	return &models.ProgressDocument{
		RunID:            p.RunID,
		SourceDescriptor: p.SourceDescriptor,
		TotalPages:       p.TotalPages,
		WindowSize:       p.WindowSize,
		TotalWindows:     p.TotalWindows,
		ProcessingStatus: models.StatusInProgress,
		WindowsResults:   []models.WindowResult{},
		SummaryStats: models.SummaryStats{
			QuestionsByType:       map[string]int{},
			QuestionsByDifficulty: map[string]int{},
		},
		ProcessingStarted: now.UTC(),
	}, nil
}

// Merge appends r to doc and updates the running counters. r must be the
// next window in order. The run is marked completed, and stamped with now,
// when its last window is merged. On error doc is left unchanged.
func Merge(doc *models.ProgressDocument, r models.WindowResult, now time.Time) error {
	if doc.Completed() {
		return fmt.Errorf("window %d: run already completed: %w", r.WindowID, ErrOutOfOrder)
	}
	want := doc.WindowsCompleted + 1
	if r.WindowID != want {
		return fmt.Errorf("got window %d, want %d: %w", r.WindowID, want, ErrOutOfOrder)
	}
	if doc.WindowsCompleted >= doc.TotalWindows {
		return fmt.Errorf("window %d beyond total %d: %w", r.WindowID, doc.TotalWindows, ErrOutOfOrder)
	}
	if r.Questions == nil {
		r.Questions = []models.ExtractedQuestion{}
	}
	if doc.SummaryStats.QuestionsByType == nil {
		doc.SummaryStats.QuestionsByType = map[string]int{}
	}
	if doc.SummaryStats.QuestionsByDifficulty == nil {
		doc.SummaryStats.QuestionsByDifficulty = map[string]int{}
	}

	doc.WindowsResults = append(doc.WindowsResults, r)
	doc.WindowsCompleted++
	doc.SummaryStats.TotalQuestionsFound += r.TotalQuestionsFound
	for _, q := range r.Questions {
		doc.SummaryStats.QuestionsByType[labelOrUnknown(q.QuestionType)]++
		doc.SummaryStats.QuestionsByDifficulty[labelOrUnknown(q.DifficultyLevel)]++
	}
	if doc.WindowsCompleted == doc.TotalWindows {
		done := now.UTC()
		doc.ProcessingStatus = models.StatusCompleted
		doc.ProcessingCompleted = &done
	}
	return nil
}

func labelOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownLabel
	}
	return s
}
