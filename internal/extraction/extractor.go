// Package extraction turns one page window into a WindowResult with a single
// model request. Failures never escape: they come back as degraded results.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"questflow/internal/models"
	"questflow/internal/providers"
	"questflow/internal/storage"
	"questflow/internal/util"
)

const (
	ErrorTypeTransport = "transport"
	ErrorTypeParse     = "parse"

	// RawEchoLimit caps the raw reply kept in the summary of an unparseable result.
	RawEchoLimit = 500
)

// CallRecorder receives one record per model attempt. storage.LLMAuditRepo
// satisfies it.
type CallRecorder interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type Options struct {
	// MaxAttempts bounds model calls per window. Only rate-limit and
	// transient errors are retried. Values below 1 mean a single call.
	MaxAttempts       int
	RetryDelay        time.Duration
	MaxPriorQuestions int
	RunID             string
}

type Extractor struct {
	provider providers.LLMProvider
	opts     Options
	Recorder CallRecorder
}

func New(provider providers.LLMProvider, opts Options) *Extractor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Extractor{provider: provider, opts: opts}
}

// WithRunID returns a copy of e that tags audit records with runID.
func (e *Extractor) WithRunID(runID string) *Extractor {
	cp := *e
	cp.opts.RunID = runID
	return &cp
}

// Extract asks the model for the questions in w, passing prior as the set of
// already recorded questions. It always returns a result for w.
func (e *Extractor) Extract(ctx context.Context, w models.Window, prior []models.ExtractedQuestion) models.WindowResult {
	result := models.WindowResult{
		WindowID:      w.WindowID,
		FocusPage:     w.FocusPage,
		PageRange:     w.PageRange,
		PagesIncluded: w.PagesIncluded,
		Questions:     []models.ExtractedQuestion{},
	}

	raw, err := e.call(ctx, w, prior)
	if err != nil {
		slog.Error("window extraction failed", "window_id", w.WindowID, "page_range", w.PageRange, "error", err)
		result.Summary = fmt.Sprintf("Error processing window: %v", err)
		result.Error = err.Error()
		result.ErrorType = ErrorTypeTransport
		return result
	}

	reply, err := ParseReply(raw)
	if err != nil {
		slog.Warn("window reply unparseable", "window_id", w.WindowID, "page_range", w.PageRange, "reply", util.DisplaySnippet(raw, 120), "error", err)
		result.Summary = util.Truncate(raw, RawEchoLimit)
		result.Error = err.Error()
		result.ErrorType = ErrorTypeParse
		return result
	}

	result.Questions = reply.Questions
	result.Summary = reply.Summary
	result.TotalQuestionsFound = len(reply.Questions)
	slog.Info("window extracted", "window_id", w.WindowID, "page_range", w.PageRange, "questions", result.TotalQuestionsFound)
	return result
}

func (e *Extractor) call(ctx context.Context, w models.Window, prior []models.ExtractedQuestion) (string, error) {
	req := providers.GenerateRequest{
		Operation: providers.OperationExtractQuestions,
		System:    SystemPrompt,
		Prompt:    BuildPrompt(w, prior, e.opts.MaxPriorQuestions),
		Context:   contextBlocks(w),
		JSON:      true,
	}

	promptHash := util.SHA256Hex([]byte(req.System + "\n" + req.Prompt))
	var text string
	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			started := time.Now()
			resp, info, err := e.provider.Generate(ctx, req)
			e.record(ctx, w, attempt, promptHash, info, time.Since(started), err)
			if err != nil {
				return err
			}
			text = resp.Text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.opts.MaxAttempts)),
		retry.Delay(e.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(providers.Retryable),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("window extraction attempt failed", "window_id", w.WindowID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", util.ErrExtractionTransport, err)
	}
	return text, nil
}

func (e *Extractor) record(ctx context.Context, w models.Window, attempt int, promptHash string, info providers.ProviderInfo, took time.Duration, callErr error) {
	if e.Recorder == nil {
		return
	}
	rec := storage.LLMCallRecord{
		Operation:    providers.OperationExtractQuestions,
		RunID:        e.opts.RunID,
		WindowID:     w.WindowID,
		Attempt:      attempt,
		ProviderName: info.Name,
		Model:        info.Model,
		Status:       "ok",
		LatencyMS:    took.Milliseconds(),
		PromptSHA256: promptHash,
	}
	if callErr != nil {
		rec.Status = "failed"
		rec.ErrorType = string(providers.ClassifyError(callErr))
	}
	// Audit failures are only logged.
	if err := e.Recorder.Insert(context.WithoutCancel(ctx), rec); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("record llm call", "window_id", w.WindowID, "error", err)
	}
}
