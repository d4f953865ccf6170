package progress

import (
	"path/filepath"

	"questflow/internal/models"
	"questflow/internal/util"
)

// ExportRow is one line of a questions export.
type ExportRow struct {
	WindowID  int    `json:"window_id"`
	FocusPage int    `json:"focus_page"`
	PageRange string `json:"page_range"`
	models.ExtractedQuestion
}

// ExportFilePath is the default export location next to a run's document.
func ExportFilePath(dataOutRoot, runID string) string {
	return filepath.Join(dataOutRoot, "runs", runID+".questions.jsonl")
}

// ExportQuestions writes every question of doc as JSON lines, tagged with the
// window it came from, and returns the number of rows written.
func ExportQuestions(path string, doc *models.ProgressDocument) (int, error) {
	rows := make([]any, 0, doc.SummaryStats.TotalQuestionsFound)
	for _, r := range doc.WindowsResults {
		for _, q := range r.Questions {
			rows = append(rows, ExportRow{WindowID: r.WindowID, FocusPage: r.FocusPage, PageRange: r.PageRange, ExtractedQuestion: q})
		}
	}
	if err := util.WriteJSONLinesAtomic(path, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
