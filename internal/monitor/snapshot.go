// Package monitor observes a run's progress document from outside the
// writing process.
package monitor

import (
	"sort"
	"strings"
	"time"

	"questflow/internal/models"
)

// Progress is the observer view of one document snapshot.
type Progress struct {
	Source                string     `json:"source_descriptor"`
	Status                string     `json:"processing_status"`
	TotalPages            int        `json:"total_pages"`
	WindowSize            int        `json:"window_size"`
	WindowsCompleted      int        `json:"windows_completed"`
	TotalWindows          int        `json:"total_windows"`
	Percent               float64    `json:"percent"`
	TotalQuestions        int        `json:"total_questions_found"`
	LatestWindowQuestions int        `json:"latest_window_questions"`
	Terminal              bool       `json:"terminal"`
	Started               time.Time  `json:"processing_started"`
	Completed             *time.Time `json:"processing_completed,omitempty"`
}

// Snapshot derives the observer view of doc. Percent is completed/total*100
// and zero while the total is unknown.
func Snapshot(doc *models.ProgressDocument) Progress {
	p := Progress{
		Source:           doc.SourceDescriptor,
		Status:           doc.ProcessingStatus,
		TotalPages:       doc.TotalPages,
		WindowSize:       doc.WindowSize,
		WindowsCompleted: doc.WindowsCompleted,
		TotalWindows:     doc.TotalWindows,
		TotalQuestions:   doc.SummaryStats.TotalQuestionsFound,
		Terminal:         doc.Completed(),
		Started:          doc.ProcessingStarted,
		Completed:        doc.ProcessingCompleted,
	}
	if doc.TotalWindows > 0 {
		p.Percent = float64(doc.WindowsCompleted) / float64(doc.TotalWindows) * 100
	}
	if n := len(doc.WindowsResults); n > 0 {
		p.LatestWindowQuestions = doc.WindowsResults[n-1].TotalQuestionsFound
	}
	return p
}

// ProgressBar draws a 20 cell bar, one filled cell per 5 percent.
func ProgressBar(percent float64) string {
	filled := int(percent) / 5
	if filled < 0 {
		filled = 0
	}
	if filled > 20 {
		filled = 20
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
}

// Share is one histogram bucket with its percentage of the total.
type Share struct {
	Label   string
	Count   int
	Percent float64
}

// Shares orders a histogram by count, then label, and attaches each
// bucket's share of total.
func Shares(hist map[string]int, total int) []Share {
	out := make([]Share, 0, len(hist))
	for label, count := range hist {
		s := Share{Label: label, Count: count}
		if total > 0 {
			s.Percent = float64(count) / float64(total) * 100
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
