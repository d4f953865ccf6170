package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"questflow/internal/models"
	"questflow/internal/util"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newDoc(t *testing.T, total int) *models.ProgressDocument {
	t.Helper()
	doc, err := NewDocument(InitParams{RunID: "r1", SourceDescriptor: "book.pdf", TotalPages: total, WindowSize: 3, TotalWindows: total}, t0)
	require.NoError(t, err)
	return doc
}

func result(id int, qs ...models.ExtractedQuestion) models.WindowResult {
	if qs == nil {
		qs = []models.ExtractedQuestion{}
	}
	return models.WindowResult{WindowID: id, FocusPage: id, Questions: qs, TotalQuestionsFound: len(qs)}
}

func TestNewDocumentZeroState(t *testing.T) {
	doc := newDoc(t, 4)
	require.Equal(t, models.StatusInProgress, doc.ProcessingStatus)
	require.Equal(t, 0, doc.WindowsCompleted)
	require.Empty(t, doc.WindowsResults)
	require.NotNil(t, doc.SummaryStats.QuestionsByType)
	require.Nil(t, doc.ProcessingCompleted)
	require.Equal(t, t0, doc.ProcessingStarted)

	_, err := NewDocument(InitParams{TotalWindows: 0}, t0)
	require.ErrorIs(t, err, util.ErrInvalidConfiguration)
}

func TestMergeHistogramCountsUnknownLabels(t *testing.T) {
	doc := newDoc(t, 2)
	require.NoError(t, Merge(doc, result(1,
		models.ExtractedQuestion{QuestionText: "a", QuestionType: "mcq", DifficultyLevel: "easy"},
		models.ExtractedQuestion{QuestionText: "b", QuestionType: "", DifficultyLevel: "easy"},
	), t0))

	require.Equal(t, map[string]int{"mcq": 1, "unknown": 1}, doc.SummaryStats.QuestionsByType)
	require.Equal(t, map[string]int{"easy": 2}, doc.SummaryStats.QuestionsByDifficulty)
	require.Equal(t, 2, doc.SummaryStats.TotalQuestionsFound)
}

func TestMergeAccumulatesAndCompletesOnLastWindow(t *testing.T) {
	const n = 4
	doc := newDoc(t, n)
	want := 0
	for i := 1; i <= n; i++ {
		qs := make([]models.ExtractedQuestion, i)
		for j := range qs {
			qs[j] = models.ExtractedQuestion{QuestionText: "q"}
		}
		done := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, Merge(doc, result(i, qs...), done))
		want += i

		require.Equal(t, i, doc.WindowsCompleted)
		require.Len(t, doc.WindowsResults, i)
		require.Equal(t, want, doc.SummaryStats.TotalQuestionsFound)
		if i < n {
			require.Equal(t, models.StatusInProgress, doc.ProcessingStatus)
			require.Nil(t, doc.ProcessingCompleted)
		} else {
			require.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
			require.NotNil(t, doc.ProcessingCompleted)
			require.Equal(t, done, *doc.ProcessingCompleted)
		}
	}
	require.Equal(t, 10, doc.SummaryStats.QuestionsByType[UnknownLabel])
}

func TestMergeErrorResultLeavesTotalsUnchanged(t *testing.T) {
	doc := newDoc(t, 3)
	require.NoError(t, Merge(doc, result(1, models.ExtractedQuestion{QuestionText: "a", QuestionType: "essay"}), t0))

	failed := models.WindowResult{WindowID: 2, FocusPage: 2, Summary: "Error processing window: boom", Error: "boom", ErrorType: "transport"}
	require.NoError(t, Merge(doc, failed, t0))

	require.Equal(t, 2, doc.WindowsCompleted)
	require.Equal(t, 1, doc.SummaryStats.TotalQuestionsFound)
	require.Equal(t, map[string]int{"essay": 1}, doc.SummaryStats.QuestionsByType)
	require.NotNil(t, doc.WindowsResults[1].Questions)
	require.Equal(t, "boom", doc.WindowsResults[1].Error)
}

func TestMergeRejectsOutOfOrderAndDuplicates(t *testing.T) {
	doc := newDoc(t, 2)
	require.ErrorIs(t, Merge(doc, result(2), t0), ErrOutOfOrder)
	require.NoError(t, Merge(doc, result(1), t0))
	require.ErrorIs(t, Merge(doc, result(1), t0), ErrOutOfOrder)
	require.Equal(t, 1, doc.WindowsCompleted)

	require.NoError(t, Merge(doc, result(2), t0))
	require.True(t, doc.Completed())
	require.ErrorIs(t, Merge(doc, result(3), t0), ErrOutOfOrder)
	require.Equal(t, 2, doc.WindowsCompleted)
}
