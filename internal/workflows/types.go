package workflows

type ExtractionInput struct {
	RunID      string `json:"run_id"`
	SourcePath string `json:"source_path"`
	WindowSize int    `json:"window_size"`
	Resume     bool   `json:"resume,omitempty"`
	Dedupe     bool   `json:"dedupe,omitempty"`
	// ExtractTimeoutSeconds bounds one window extraction, retries included.
	ExtractTimeoutSeconds int `json:"extract_timeout_seconds,omitempty"`
}

// RunStatus is the live state returned by the GetProgress query.
type RunStatus struct {
	RunID            string `json:"run_id"`
	SourcePath       string `json:"source_path"`
	Status           string `json:"status"`
	CurrentStep      string `json:"current_step"`
	TotalPages       int    `json:"total_pages"`
	TotalWindows     int    `json:"total_windows"`
	WindowsCompleted int    `json:"windows_completed"`
	CurrentWindow    int    `json:"current_window,omitempty"`
	TotalQuestions   int    `json:"total_questions"`
	FailedWindows    []int  `json:"failed_windows"`
	ExportPath       string `json:"export_path,omitempty"`
	FailReason       string `json:"fail_reason,omitempty"`
}
