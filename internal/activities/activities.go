package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"questflow/internal/config"
	"questflow/internal/extraction"
	"questflow/internal/models"
	"questflow/internal/pdfsource"
	"questflow/internal/pipeline"
	"questflow/internal/progress"
	"questflow/internal/providers"
	"questflow/internal/storage"
	"questflow/internal/util"
	"questflow/internal/window"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Error types reported on non-retryable application errors.
const (
	ErrTypeSourceRead    = "SourceReadError"
	ErrTypeStoreInit     = "StoreInitError"
	ErrTypeInvalidConfig = "InvalidConfiguration"
)

// maxCachedSources bounds the documents a worker keeps in memory between
// window activities.
const maxCachedSources = 8

// cachedSource is the page list of one document, valid while the file keeps
// the size and modification time it had when it was read.
type cachedSource struct {
	pages    []models.Page
	size     int64
	modTime  time.Time
	lastUsed uint64
}

type Activities struct {
	cfg       config.Config
	source    pipeline.PageSource
	extractor *extraction.Extractor
	openStore func(runID string) (progress.Store, error)

	mu    sync.Mutex
	pages map[string]*cachedSource
	clock uint64
}

// New wires the worker's activities. db may be nil when the file backend is
// used; LLM calls are then not audited.
func New(cfg config.Config, db *storage.DB, pm *providers.Manager) *Activities {
	ex := extraction.New(pm.Failover(cfg.ProviderCooldown()), extraction.Options{
		MaxAttempts:       cfg.MaxAttempts,
		RetryDelay:        cfg.RetryDelay(),
		MaxPriorQuestions: cfg.MaxPriorQuestions,
	})
	if db != nil {
		ex.Recorder = storage.NewLLMAuditRepo(db)
	}
	return &Activities{
		cfg:       cfg,
		source:    pdfsource.Auto{},
		extractor: ex,
		openStore: func(runID string) (progress.Store, error) {
			return progress.Open(cfg, runID, db)
		},
		pages: map[string]*cachedSource{},
	}
}

func (a *Activities) LoadPagesActivity(ctx context.Context, in LoadPagesInput) (LoadPagesOutput, error) {
	pages, err := a.loadPages(ctx, in.SourcePath)
	if err != nil {
		return LoadPagesOutput{}, err
	}
	windows, err := window.Build(pages, in.WindowSize)
	if err != nil {
		return LoadPagesOutput{}, nonRetryable(err)
	}
	return LoadPagesOutput{TotalPages: len(pages), TotalWindows: len(windows)}, nil
}

func (a *Activities) InitializeRunActivity(ctx context.Context, in InitializeRunInput) (InitializeRunOutput, error) {
	store, err := a.openStore(in.RunID)
	if err != nil {
		return InitializeRunOutput{}, nonRetryable(fmt.Errorf("%w: %w", util.ErrStoreInit, err))
	}
	params := progress.InitParams{
		RunID:            in.RunID,
		SourceDescriptor: in.SourcePath,
		TotalPages:       in.TotalPages,
		WindowSize:       in.WindowSize,
		TotalWindows:     in.TotalWindows,
	}
	if in.Resume {
		doc, err := store.Read(ctx)
		if err == nil && doc.SourceDescriptor == in.SourcePath && doc.TotalWindows == in.TotalWindows && doc.WindowSize == in.WindowSize {
			activity.GetLogger(ctx).Info("resuming run", "run_id", in.RunID, "windows_completed", doc.WindowsCompleted)
			return initOutput(doc), nil
		}
	}
	doc, err := store.Initialize(ctx, params)
	if err != nil {
		return InitializeRunOutput{}, nonRetryable(err)
	}
	return initOutput(doc), nil
}

// ExtractWindowActivity rebuilds window in.WindowID from the cached pages and
// extracts it against the questions already persisted for the run. It only
// fails when the source or the store is unreadable; model failures come back
// inside the result.
func (a *Activities) ExtractWindowActivity(ctx context.Context, in ExtractWindowInput) (ExtractWindowOutput, error) {
	pages, err := a.loadPages(ctx, in.SourcePath)
	if err != nil {
		return ExtractWindowOutput{}, err
	}
	windows, err := window.Build(pages, in.WindowSize)
	if err != nil {
		return ExtractWindowOutput{}, nonRetryable(err)
	}
	if in.WindowID < 1 || in.WindowID > len(windows) {
		return ExtractWindowOutput{}, nonRetryable(fmt.Errorf("window %d of %d: %w", in.WindowID, len(windows), util.ErrInvalidConfiguration))
	}

	store, err := a.openStore(in.RunID)
	if err != nil {
		return ExtractWindowOutput{}, err
	}
	doc, err := store.Read(ctx)
	if err != nil {
		return ExtractWindowOutput{}, fmt.Errorf("read prior questions: %w", err)
	}

	result := a.extractor.WithRunID(in.RunID).Extract(ctx, windows[in.WindowID-1], doc.AllQuestions())
	if err := ctx.Err(); err != nil {
		return ExtractWindowOutput{}, err
	}
	return ExtractWindowOutput{Result: result}, nil
}

// ApplyResultActivity merges one window result. A retry of an already applied
// window is reported as such instead of failing the run.
func (a *Activities) ApplyResultActivity(ctx context.Context, in ApplyResultInput) (ApplyResultOutput, error) {
	store, err := a.openStore(in.RunID)
	if err != nil {
		return ApplyResultOutput{}, err
	}
	result := in.Result
	if in.Dedupe {
		doc, err := store.Read(ctx)
		if err != nil {
			return ApplyResultOutput{}, fmt.Errorf("%w: %w", util.ErrPersistence, err)
		}
		result = pipeline.DropKnown(result, doc.AllQuestions())
	}

	doc, err := store.Apply(ctx, result)
	if errors.Is(err, progress.ErrOutOfOrder) {
		current, readErr := store.Read(ctx)
		if readErr == nil && current.WindowsCompleted >= result.WindowID {
			out := applyOutput(current)
			out.AlreadyApplied = true
			return out, nil
		}
		return ApplyResultOutput{}, nonRetryable(err)
	}
	if err != nil {
		return ApplyResultOutput{}, err
	}
	activity.GetLogger(ctx).Info("window applied", "run_id", in.RunID, "window_id", result.WindowID, "questions", result.TotalQuestionsFound)
	return applyOutput(doc), nil
}

// WriteQuestionsExportActivity runs once per finished run, so it also drops
// the run's pages from the cache.
func (a *Activities) WriteQuestionsExportActivity(ctx context.Context, in WriteQuestionsExportInput) (WriteQuestionsExportOutput, error) {
	if in.SourcePath != "" {
		defer a.releasePages(in.SourcePath)
	}
	store, err := a.openStore(in.RunID)
	if err != nil {
		return WriteQuestionsExportOutput{}, err
	}
	doc, err := store.Read(ctx)
	if err != nil {
		return WriteQuestionsExportOutput{}, err
	}
	path := progress.ExportFilePath(a.cfg.DataOutRoot, in.RunID)
	n, err := progress.ExportQuestions(path, doc)
	if err != nil {
		return WriteQuestionsExportOutput{}, err
	}
	return WriteQuestionsExportOutput{Path: path, Questions: n}, nil
}

// loadPages reads path once per worker; windows of the same run reuse it. An
// entry is re-read when the file's size or modification time changes.
func (a *Activities) loadPages(ctx context.Context, path string) ([]models.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var size int64
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		size, modTime = info.Size(), info.ModTime()
	}
	if c, ok := a.pages[path]; ok {
		if c.size == size && c.modTime.Equal(modTime) {
			a.clock++
			c.lastUsed = a.clock
			return c.pages, nil
		}
		delete(a.pages, path)
	}

	pages, err := a.source.Pages(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, util.ErrSourceRead) {
			err = fmt.Errorf("%w: %w", util.ErrSourceRead, err)
		}
		return nil, nonRetryable(err)
	}
	if len(a.pages) >= maxCachedSources {
		a.evictOldestLocked()
	}
	a.clock++
	a.pages[path] = &cachedSource{pages: pages, size: size, modTime: modTime, lastUsed: a.clock}
	return pages, nil
}

func (a *Activities) releasePages(path string) {
	a.mu.Lock()
	delete(a.pages, path)
	a.mu.Unlock()
}

func (a *Activities) evictOldestLocked() {
	oldest := ""
	var at uint64
	for p, c := range a.pages {
		if oldest == "" || c.lastUsed < at {
			oldest, at = p, c.lastUsed
		}
	}
	delete(a.pages, oldest)
}

func nonRetryable(err error) error {
	errType := ErrTypeInvalidConfig
	switch {
	case errors.Is(err, util.ErrSourceRead):
		errType = ErrTypeSourceRead
	case errors.Is(err, util.ErrStoreInit):
		errType = ErrTypeStoreInit
	case errors.Is(err, progress.ErrOutOfOrder):
		errType = "OutOfOrder"
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

func initOutput(doc *models.ProgressDocument) InitializeRunOutput {
	return InitializeRunOutput{
		WindowsCompleted: doc.WindowsCompleted,
		TotalQuestions:   doc.SummaryStats.TotalQuestionsFound,
		Completed:        doc.Completed(),
	}
}

func applyOutput(doc *models.ProgressDocument) ApplyResultOutput {
	return ApplyResultOutput{
		WindowsCompleted: doc.WindowsCompleted,
		TotalQuestions:   doc.SummaryStats.TotalQuestionsFound,
		Completed:        doc.Completed(),
	}
}
