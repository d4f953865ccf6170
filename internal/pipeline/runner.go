// Package pipeline drives one in-process extraction run: it builds the page
// windows, extracts each one in order and folds the results into the
// progress store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"questflow/internal/models"
	"questflow/internal/progress"
	"questflow/internal/util"
	"questflow/internal/window"
)

// PageSource loads the ordered pages of a document.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]models.Page, error)
}

// WindowExtractor turns one window into a result. Implementations never fail;
// errors are carried inside the result.
type WindowExtractor interface {
	Extract(ctx context.Context, w models.Window, prior []models.ExtractedQuestion) models.WindowResult
}

type Runner struct {
	Extractor WindowExtractor
	Store     progress.Store
	Source    PageSource
	RunID     string

	// Dedupe drops questions whose normalized text was already recorded.
	Dedupe bool
	// Resume continues a matching in-progress document instead of starting over.
	Resume bool
	// OnStart, when set, receives the document the run starts from, after the
	// store has been initialized or a resumable document was found.
	OnStart func(doc *models.ProgressDocument)

	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunFile loads path through the page source and runs it.
func (r *Runner) RunFile(ctx context.Context, path string, windowSize int) (*models.ProgressDocument, error) {
	if r.Source == nil {
		return nil, fmt.Errorf("%w: no page source configured", util.ErrInvalidConfiguration)
	}
	pages, err := r.Source.Pages(ctx, path)
	if err != nil {
		if errors.Is(err, util.ErrSourceRead) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", util.ErrSourceRead, err)
	}
	return r.Run(ctx, pages, windowSize, path)
}

// Run processes every window of pages in order. Extraction failures are
// recorded as error results and never stop the run; a persistence failure
// does, leaving the last good snapshot in the store.
func (r *Runner) Run(ctx context.Context, pages []models.Page, windowSize int, source string) (*models.ProgressDocument, error) {
	log := r.logger().With("run_id", r.RunID)

	windows, err := window.Build(pages, windowSize)
	if err != nil {
		return nil, err
	}

	doc, err := r.start(ctx, progress.InitParams{
		RunID:            r.RunID,
		SourceDescriptor: source,
		TotalPages:       len(pages),
		WindowSize:       windowSize,
		TotalWindows:     len(windows),
	})
	if err != nil {
		return nil, err
	}
	if r.OnStart != nil {
		r.OnStart(doc)
	}
	if doc.Completed() {
		log.Info("run already completed", "windows", doc.TotalWindows)
		return doc, nil
	}
	log.Info("extraction started", "source", source, "pages", len(pages), "windows", len(windows), "resume_from", doc.WindowsCompleted)

	for _, w := range windows[doc.WindowsCompleted:] {
		if err := ctx.Err(); err != nil {
			log.Warn("extraction canceled", "windows_completed", doc.WindowsCompleted)
			return doc, err
		}

		prior := doc.AllQuestions()
		result := r.Extractor.Extract(ctx, w, prior)
		if err := ctx.Err(); err != nil {
			log.Warn("extraction canceled", "windows_completed", doc.WindowsCompleted)
			return doc, err
		}
		if r.Dedupe {
			result = DropKnown(result, prior)
		}

		next, err := r.Store.Apply(ctx, result)
		if err != nil {
			log.Error("progress update failed", "window_id", w.WindowID, "error", err)
			return doc, err
		}
		doc = next
		log.Info("window applied",
			"window_id", w.WindowID,
			"page_range", w.PageRange,
			"questions", result.TotalQuestionsFound,
			"total_questions", doc.SummaryStats.TotalQuestionsFound,
		)
	}

	log.Info("extraction completed", "windows", doc.WindowsCompleted, "questions", doc.SummaryStats.TotalQuestionsFound)
	return doc, nil
}

func (r *Runner) start(ctx context.Context, p progress.InitParams) (*models.ProgressDocument, error) {
	if r.Resume {
		doc, err := r.Store.Read(ctx)
		switch {
		case err == nil && resumable(doc, p):
			return doc, nil
		case err == nil:
			r.logger().Warn("stored progress does not match this run, starting over", "run_id", p.RunID)
		case !errors.Is(err, progress.ErrNotFound):
			r.logger().Warn("stored progress unreadable, starting over", "run_id", p.RunID, "error", err)
		}
	}
	return r.Store.Initialize(ctx, p)
}

func resumable(doc *models.ProgressDocument, p progress.InitParams) bool {
	return doc.SourceDescriptor == p.SourceDescriptor &&
		doc.TotalWindows == p.TotalWindows &&
		doc.WindowSize == p.WindowSize &&
		doc.WindowsCompleted <= doc.TotalWindows
}

// DropKnown removes questions of r whose normalized text matches a prior
// question or an earlier question of r itself.
func DropKnown(r models.WindowResult, prior []models.ExtractedQuestion) models.WindowResult {
	if len(r.Questions) == 0 {
		return r
	}
	seen := make(map[string]struct{}, len(prior)+len(r.Questions))
	for _, q := range prior {
		seen[util.NormalizeKey(q.QuestionText)] = struct{}{}
	}
	kept := make([]models.ExtractedQuestion, 0, len(r.Questions))
	for _, q := range r.Questions {
		key := util.NormalizeKey(q.QuestionText)
		if _, dup := seen[key]; dup && key != "" {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, q)
	}
	r.Questions = kept
	r.TotalQuestionsFound = len(kept)
	return r
}
