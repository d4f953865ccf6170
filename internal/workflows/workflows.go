package workflows

import (
	"fmt"
	"strings"
	"time"

	"questflow/internal/activities"
	"questflow/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

const (
	StatusProcessing = "processing"
	StatusCompleted  = models.StatusCompleted
	StatusFailed     = "failed"
)

// QuestionExtractionWorkflow walks the windows of one source document in
// order. Each window is extracted and then merged into the run's progress
// document by separate activities, so a worker crash resumes at the first
// window that was not yet merged.
func QuestionExtractionWorkflow(ctx workflow.Context, input ExtractionInput) (string, error) {
	logger := workflow.GetLogger(ctx)
	status := RunStatus{
		RunID:         input.RunID,
		SourcePath:    input.SourcePath,
		Status:        StatusProcessing,
		CurrentStep:   "init",
		FailedWindows: []int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (RunStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}
	fail := func(err error) (string, error) {
		status.Status = StatusFailed
		status.FailReason = err.Error()
		return StatusFailed, err
	}

	if input.WindowSize <= 0 {
		input.WindowSize = 3
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.CurrentStep = "load_pages"
	var pagesOut activities.LoadPagesOutput
	if err := workflow.ExecuteActivity(ctx, "LoadPagesActivity", activities.LoadPagesInput{
		SourcePath: input.SourcePath,
		WindowSize: input.WindowSize,
	}).Get(ctx, &pagesOut); err != nil {
		return fail(err)
	}
	status.TotalPages = pagesOut.TotalPages
	status.TotalWindows = pagesOut.TotalWindows

	status.CurrentStep = "initialize"
	var initOut activities.InitializeRunOutput
	if err := workflow.ExecuteActivity(ctx, "InitializeRunActivity", activities.InitializeRunInput{
		RunID:        input.RunID,
		SourcePath:   input.SourcePath,
		TotalPages:   pagesOut.TotalPages,
		WindowSize:   input.WindowSize,
		TotalWindows: pagesOut.TotalWindows,
		Resume:       input.Resume,
	}).Get(ctx, &initOut); err != nil {
		return fail(err)
	}
	status.WindowsCompleted = initOut.WindowsCompleted
	status.TotalQuestions = initOut.TotalQuestions

	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.ExtractTimeoutSeconds, 600),
		RetryPolicy:         ao.RetryPolicy,
	})

	status.CurrentStep = "extract_windows"
	for id := initOut.WindowsCompleted + 1; id <= pagesOut.TotalWindows; id++ {
		status.CurrentWindow = id

		var exOut activities.ExtractWindowOutput
		if err := workflow.ExecuteActivity(extractCtx, "ExtractWindowActivity", activities.ExtractWindowInput{
			RunID:      input.RunID,
			SourcePath: input.SourcePath,
			WindowSize: input.WindowSize,
			WindowID:   id,
		}).Get(ctx, &exOut); err != nil {
			return fail(err)
		}
		if exOut.Result.Failed() {
			status.FailedWindows = append(status.FailedWindows, id)
			logger.Warn("window degraded", "window_id", id, "error_type", exOut.Result.ErrorType)
		}

		var applyOut activities.ApplyResultOutput
		if err := workflow.ExecuteActivity(ctx, "ApplyResultActivity", activities.ApplyResultInput{
			RunID:  input.RunID,
			Result: exOut.Result,
			Dedupe: input.Dedupe,
		}).Get(ctx, &applyOut); err != nil {
			return fail(fmt.Errorf("apply window %d: %w", id, err))
		}
		status.WindowsCompleted = applyOut.WindowsCompleted
		status.TotalQuestions = applyOut.TotalQuestions
	}
	status.CurrentWindow = 0

	status.CurrentStep = "export"
	var exportOut activities.WriteQuestionsExportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteQuestionsExportActivity", activities.WriteQuestionsExportInput{RunID: input.RunID, SourcePath: input.SourcePath}).Get(ctx, &exportOut); err != nil {
		logger.Warn("questions export failed", "run_id", input.RunID, "error", err)
	} else {
		status.ExportPath = exportOut.Path
	}

	status.CurrentStep = "done"
	status.Status = StatusCompleted
	return StatusCompleted, nil
}

// WorkflowID is the Temporal workflow id used for a run.
func WorkflowID(runID string) string {
	return "questions-" + sanitizeID(runID)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
