package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"questflow/internal/models"
	"questflow/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	store := progress.NewFileStore(path)
	ctx := context.Background()
	_, err := store.Initialize(ctx, progress.InitParams{RunID: "r1", SourceDescriptor: "bio.pdf", TotalPages: 2, WindowSize: 2, TotalWindows: 1})
	require.NoError(t, err)
	_, err = store.Apply(ctx, models.WindowResult{
		WindowID:            1,
		PageRange:           "1-2",
		Questions:           []models.ExtractedQuestion{{QuestionText: "What is ATP?", QuestionType: "short_answer"}},
		TotalQuestionsFound: 1,
	})
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return buf.String()
}

func TestSummaryCommand(t *testing.T) {
	out := execute(t, "summary", writeRun(t))
	assert.Contains(t, out, "bio.pdf")
	assert.Contains(t, out, "short_answer: 1 (100.0%)")
}

func TestExportCommand(t *testing.T) {
	path := writeRun(t)
	target := filepath.Join(filepath.Dir(path), "out.jsonl")
	out := execute(t, "export", path, "--out", target)
	assert.Contains(t, out, "wrote 1 questions")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "What is ATP?")
}

func TestExtractWatchIgnoresEarlierRunInOutputFile(t *testing.T) {
	t.Setenv("QUESTFLOW_LLM_PROVIDERS", "mock")
	t.Setenv("QUESTFLOW_MONITOR_INTERVAL_SECONDS", "1")
	dir := t.TempDir()
	out := filepath.Join(dir, "run.json")
	store := progress.NewFileStore(out)
	_, err := store.Initialize(context.Background(), progress.InitParams{RunID: "old", SourceDescriptor: "old.pdf", TotalPages: 1, WindowSize: 3, TotalWindows: 1})
	require.NoError(t, err)
	_, err = store.Apply(context.Background(), models.WindowResult{WindowID: 1})
	require.NoError(t, err)

	source := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(source, []byte("1. What is an ion?\f2. Define pH.\f3. Name a base."), 0o644))

	got := execute(t, "extract", source, "--out", out, "--run-id", "new", "--watch")
	assert.NotContains(t, got, "old.pdf")
	assert.Contains(t, got, "book.txt")

	doc, err := progress.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "new", doc.RunID)
	assert.True(t, doc.Completed())
	assert.Equal(t, 3, doc.WindowsCompleted)
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "questflow dev")
}
