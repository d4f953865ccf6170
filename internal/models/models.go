package models

import "time"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Page is one unit of source content. Number is 1-based.
type Page struct {
	Number int      `json:"number"`
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

// Window is a contiguous span of pages around a focus page. Start and end
// pages are 1-based and inclusive.
type Window struct {
	WindowID        int      `json:"window_id"`
	FocusPage       int      `json:"focus_page"`
	StartPage       int      `json:"start_page"`
	EndPage         int      `json:"end_page"`
	PageRange       string   `json:"page_range"`
	PagesIncluded   int      `json:"pages_included"`
	CombinedContent string   `json:"combined_content"`
	Images          []string `json:"images,omitempty"`
}

type ExtractedQuestion struct {
	QuestionText    string `json:"question_text"`
	QuestionType    string `json:"question_type"`
	SubjectTopic    string `json:"subject_topic"`
	DifficultyLevel string `json:"difficulty_level"`
	Context         string `json:"context"`
	ImageID         string `json:"image_id,omitempty"`
}

type WindowResult struct {
	WindowID            int                 `json:"window_id"`
	FocusPage           int                 `json:"focus_page"`
	PageRange           string              `json:"page_range"`
	PagesIncluded       int                 `json:"total_pages_in_window"`
	Questions           []ExtractedQuestion `json:"questions"`
	Summary             string              `json:"summary"`
	TotalQuestionsFound int                 `json:"total_questions_found"`
	Error               string              `json:"error,omitempty"`
	ErrorType           string              `json:"error_type,omitempty"`
}

// Failed reports whether the window degraded into an error result.
func (r WindowResult) Failed() bool {
	return r.Error != ""
}

type SummaryStats struct {
	TotalQuestionsFound   int            `json:"total_questions_found"`
	QuestionsByType       map[string]int `json:"questions_by_type"`
	QuestionsByDifficulty map[string]int `json:"questions_by_difficulty"`
}

// ProgressDocument is the durable record of one extraction run.
type ProgressDocument struct {
	RunID               string         `json:"run_id,omitempty"`
	SourceDescriptor    string         `json:"source_descriptor"`
	TotalPages          int            `json:"total_pages"`
	WindowSize          int            `json:"window_size"`
	TotalWindows        int            `json:"total_windows"`
	ProcessingStatus    string         `json:"processing_status"`
	WindowsCompleted    int            `json:"windows_completed"`
	WindowsResults      []WindowResult `json:"windows_results"`
	SummaryStats        SummaryStats   `json:"summary_stats"`
	ProcessingStarted   time.Time      `json:"processing_started"`
	ProcessingCompleted *time.Time     `json:"processing_completed,omitempty"`
}

// Completed reports whether the run reached its terminal status.
func (d *ProgressDocument) Completed() bool {
	return d.ProcessingStatus == StatusCompleted
}

// AllQuestions flattens the questions of every applied window, in window order.
func (d *ProgressDocument) AllQuestions() []ExtractedQuestion {
	n := 0
	for _, r := range d.WindowsResults {
		n += len(r.Questions)
	}
	out := make([]ExtractedQuestion, 0, n)
	for _, r := range d.WindowsResults {
		out = append(out, r.Questions...)
	}
	return out
}
