package workflows

import (
	"context"
	"testing"

	"questflow/internal/activities"
	"questflow/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(QuestionExtractionWorkflow)
	registerActivityName(env, "LoadPagesActivity", func(context.Context, activities.LoadPagesInput) (activities.LoadPagesOutput, error) {
		return activities.LoadPagesOutput{}, nil
	})
	registerActivityName(env, "InitializeRunActivity", func(context.Context, activities.InitializeRunInput) (activities.InitializeRunOutput, error) {
		return activities.InitializeRunOutput{}, nil
	})
	registerActivityName(env, "ExtractWindowActivity", func(context.Context, activities.ExtractWindowInput) (activities.ExtractWindowOutput, error) {
		return activities.ExtractWindowOutput{}, nil
	})
	registerActivityName(env, "ApplyResultActivity", func(context.Context, activities.ApplyResultInput) (activities.ApplyResultOutput, error) {
		return activities.ApplyResultOutput{}, nil
	})
	registerActivityName(env, "WriteQuestionsExportActivity", func(context.Context, activities.WriteQuestionsExportInput) (activities.WriteQuestionsExportOutput, error) {
		return activities.WriteQuestionsExportOutput{}, nil
	})
	return env
}

// mockWindows answers extraction with one question per window, failing the
// windows listed in degraded, and counts applied windows.
func mockWindows(env *testsuite.TestWorkflowEnvironment, degraded map[int]bool) *[]int {
	applied := []int{}
	env.OnActivity("ExtractWindowActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.ExtractWindowInput) (activities.ExtractWindowOutput, error) {
			r := models.WindowResult{WindowID: in.WindowID, Questions: []models.ExtractedQuestion{{QuestionText: "Q?"}}, TotalQuestionsFound: 1}
			if degraded[in.WindowID] {
				r = models.WindowResult{WindowID: in.WindowID, Questions: []models.ExtractedQuestion{}, Error: "timeout", ErrorType: "transport"}
			}
			return activities.ExtractWindowOutput{Result: r}, nil
		})
	total := 0
	env.OnActivity("ApplyResultActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.ApplyResultInput) (activities.ApplyResultOutput, error) {
			applied = append(applied, in.Result.WindowID)
			total += in.Result.TotalQuestionsFound
			return activities.ApplyResultOutput{WindowsCompleted: in.Result.WindowID, TotalQuestions: total}, nil
		})
	return &applied
}

func TestQuestionExtractionWorkflowSuccess(t *testing.T) {
	env := newEnv()
	env.OnActivity("LoadPagesActivity", mock.Anything, activities.LoadPagesInput{SourcePath: "/tmp/bio.pdf", WindowSize: 3}).Return(activities.LoadPagesOutput{TotalPages: 5, TotalWindows: 5}, nil)
	env.OnActivity("InitializeRunActivity", mock.Anything, mock.Anything).Return(activities.InitializeRunOutput{}, nil)
	env.OnActivity("WriteQuestionsExportActivity", mock.Anything, activities.WriteQuestionsExportInput{RunID: "r1", SourcePath: "/tmp/bio.pdf"}).Return(activities.WriteQuestionsExportOutput{Path: "/tmp/out/r1.questions.jsonl", Questions: 4}, nil)
	applied := mockWindows(env, map[int]bool{2: true})

	env.ExecuteWorkflow(QuestionExtractionWorkflow, ExtractionInput{RunID: "r1", SourcePath: "/tmp/bio.pdf", WindowSize: 3})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusCompleted, out)
	require.Equal(t, []int{1, 2, 3, 4, 5}, *applied)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var status RunStatus
	require.NoError(t, val.Get(&status))
	require.Equal(t, 5, status.WindowsCompleted)
	require.Equal(t, 4, status.TotalQuestions)
	require.Equal(t, []int{2}, status.FailedWindows)
	require.Equal(t, "/tmp/out/r1.questions.jsonl", status.ExportPath)
}

func TestQuestionExtractionWorkflowResumesAfterCompletedWindows(t *testing.T) {
	env := newEnv()
	env.OnActivity("LoadPagesActivity", mock.Anything, mock.Anything).Return(activities.LoadPagesOutput{TotalPages: 4, TotalWindows: 4}, nil)
	env.OnActivity("InitializeRunActivity", mock.Anything, mock.MatchedBy(func(in activities.InitializeRunInput) bool {
		return in.Resume && in.TotalWindows == 4
	})).Return(activities.InitializeRunOutput{WindowsCompleted: 2, TotalQuestions: 2}, nil)
	env.OnActivity("WriteQuestionsExportActivity", mock.Anything, mock.Anything).Return(activities.WriteQuestionsExportOutput{}, nil)
	applied := mockWindows(env, nil)

	env.ExecuteWorkflow(QuestionExtractionWorkflow, ExtractionInput{RunID: "r2", SourcePath: "/tmp/bio.pdf", WindowSize: 3, Resume: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, []int{3, 4}, *applied)
}

func TestQuestionExtractionWorkflowSourceFailure(t *testing.T) {
	env := newEnv()
	env.OnActivity("LoadPagesActivity", mock.Anything, mock.Anything).Return(activities.LoadPagesOutput{},
		temporal.NewNonRetryableApplicationError("source read failed: open pdf", activities.ErrTypeSourceRead, nil))

	env.ExecuteWorkflow(QuestionExtractionWorkflow, ExtractionInput{RunID: "r3", SourcePath: "/tmp/missing.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "InitializeRunActivity", mock.Anything, mock.Anything)
}

func TestQuestionExtractionWorkflowStopsOnPersistenceFailure(t *testing.T) {
	env := newEnv()
	env.OnActivity("LoadPagesActivity", mock.Anything, mock.Anything).Return(activities.LoadPagesOutput{TotalPages: 3, TotalWindows: 3}, nil)
	env.OnActivity("InitializeRunActivity", mock.Anything, mock.Anything).Return(activities.InitializeRunOutput{}, nil)
	env.OnActivity("ExtractWindowActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.ExtractWindowInput) (activities.ExtractWindowOutput, error) {
			return activities.ExtractWindowOutput{Result: models.WindowResult{WindowID: in.WindowID}}, nil
		})
	env.OnActivity("ApplyResultActivity", mock.Anything, mock.Anything).Return(activities.ApplyResultOutput{},
		temporal.NewNonRetryableApplicationError("progress persistence failed", "PersistenceError", nil))

	env.ExecuteWorkflow(QuestionExtractionWorkflow, ExtractionInput{RunID: "r4", SourcePath: "/tmp/bio.pdf", WindowSize: 3})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var status RunStatus
	require.NoError(t, val.Get(&status))
	require.Equal(t, StatusFailed, status.Status)
	require.Equal(t, 1, status.CurrentWindow)
	env.AssertNotCalled(t, "WriteQuestionsExportActivity", mock.Anything, mock.Anything)
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "questions-run-1-a", WorkflowID("Run_1.A"))
}
