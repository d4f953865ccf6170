package activities

import "questflow/internal/models"

type LoadPagesInput struct {
	SourcePath string `json:"source_path"`
	WindowSize int    `json:"window_size"`
}

type LoadPagesOutput struct {
	TotalPages   int `json:"total_pages"`
	TotalWindows int `json:"total_windows"`
}

type InitializeRunInput struct {
	RunID        string `json:"run_id"`
	SourcePath   string `json:"source_path"`
	TotalPages   int    `json:"total_pages"`
	WindowSize   int    `json:"window_size"`
	TotalWindows int    `json:"total_windows"`
	Resume       bool   `json:"resume"`
}

type InitializeRunOutput struct {
	WindowsCompleted int  `json:"windows_completed"`
	TotalQuestions   int  `json:"total_questions"`
	Completed        bool `json:"completed"`
}

type ExtractWindowInput struct {
	RunID      string `json:"run_id"`
	SourcePath string `json:"source_path"`
	WindowSize int    `json:"window_size"`
	WindowID   int    `json:"window_id"`
}

type ExtractWindowOutput struct {
	Result models.WindowResult `json:"result"`
}

type ApplyResultInput struct {
	RunID  string              `json:"run_id"`
	Result models.WindowResult `json:"result"`
	Dedupe bool                `json:"dedupe"`
}

type ApplyResultOutput struct {
	WindowsCompleted int  `json:"windows_completed"`
	TotalQuestions   int  `json:"total_questions"`
	Completed        bool `json:"completed"`
	AlreadyApplied   bool `json:"already_applied"`
}

type WriteQuestionsExportInput struct {
	RunID      string `json:"run_id"`
	SourcePath string `json:"source_path,omitempty"`
}

type WriteQuestionsExportOutput struct {
	Path      string `json:"path"`
	Questions int    `json:"questions"`
}
