package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"questflow/internal/config"
	"questflow/internal/models"
	"questflow/internal/progress"
	"questflow/internal/storage"
	"questflow/internal/util"
	"questflow/internal/workflows"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type fakeRun struct {
	tclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "temporal-run" }

type fakeValue struct {
	converter.EncodedValue
	status workflows.RunStatus
}

func (v fakeValue) HasValue() bool { return true }

func (v fakeValue) Get(valuePtr interface{}) error {
	*(valuePtr.(*workflows.RunStatus)) = v.status
	return nil
}

type fakeTemporal struct {
	started  []workflows.ExtractionInput
	options  []tclient.StartWorkflowOptions
	startErr error
	status   *workflows.RunStatus
}

func (f *fakeTemporal) ExecuteWorkflow(_ context.Context, options tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.options = append(f.options, options)
	f.started = append(f.started, args[0].(workflows.ExtractionInput))
	return fakeRun{id: options.ID}, nil
}

func (f *fakeTemporal) QueryWorkflow(_ context.Context, _ string, _ string, _ string, _ ...interface{}) (converter.EncodedValue, error) {
	if f.status == nil {
		return nil, errors.New("workflow not found")
	}
	return fakeValue{status: *f.status}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeTemporal, config.Config) {
	t.Helper()
	cfg := config.Config{
		DataInRoot:        t.TempDir(),
		DataOutRoot:       t.TempDir(),
		WindowSize:        3,
		ProgressBackend:   config.BackendFile,
		TemporalTaskQueue: "questflow",
		LLMTimeoutSecs:    120,
		MaxAttempts:       1,
	}
	tc := &fakeTemporal{}
	return NewServer(cfg, tc, nil), tc, cfg
}

func seedRun(t *testing.T, cfg config.Config, runID string, windows int) {
	t.Helper()
	store := progress.NewFileStore(progress.RunFilePath(cfg.DataOutRoot, runID))
	ctx := context.Background()
	_, err := store.Initialize(ctx, progress.InitParams{RunID: runID, SourceDescriptor: "bio.pdf", TotalPages: 4, WindowSize: 3, TotalWindows: 4})
	require.NoError(t, err)
	for i := 1; i <= windows; i++ {
		_, err := store.Apply(ctx, models.WindowResult{
			WindowID:            i,
			Questions:           []models.ExtractedQuestion{{QuestionText: "What is a gene?", QuestionType: "short_answer"}},
			TotalQuestionsFound: 1,
		})
		require.NoError(t, err)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok)
	return e["code"].(string)
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestStartRunFromPath(t *testing.T) {
	s, tc, cfg := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"source_path":"books/bio.pdf","window_size":4}`))
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, tc.started, 1)
	in := tc.started[0]
	assert.Equal(t, filepath.Join(cfg.DataInRoot, "books", "bio.pdf"), in.SourcePath)
	assert.Equal(t, 4, in.WindowSize)
	assert.Equal(t, 240, in.ExtractTimeoutSeconds)
	assert.Equal(t, workflows.WorkflowID(in.RunID), tc.options[0].ID)
	assert.Equal(t, "questflow", tc.options[0].TaskQueue)

	body := decode(t, rec)
	assert.Equal(t, in.RunID, body["run_id"])
	assert.Equal(t, tc.options[0].ID, body["workflow_id"])
}

func TestStartRunValidation(t *testing.T) {
	s, tc, _ := newTestServer(t)
	cases := map[string]string{
		"empty":  `{}`,
		"broken": `{"source_path":`,
		"escape":   `{"source_path":"../../etc/passwd"}`,
		"absolute": `{"source_path":"/etc/passwd"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "QF-API-4001", errorCode(t, rec))
		})
	}
	assert.Empty(t, tc.started)
}

func TestStartRunAcceptsAbsolutePathUnderDataIn(t *testing.T) {
	s, tc, cfg := newTestServer(t)
	abs := filepath.Join(cfg.DataInRoot, "bio.pdf")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"source_path":"`+abs+`"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, tc.started, 1)
	assert.Equal(t, abs, tc.started[0].SourcePath)
}

func TestSaveUploadedFileCleansUpOnFailure(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "chem.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("1. What is an ion?"))
	require.NoError(t, mw.Close())
	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	defer func() { _ = form.RemoveAll() }()

	dir := t.TempDir()
	// A non-empty directory at the target name makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chem.txt", "keep"), 0o755))

	_, err = saveUploadedFile(dir, form.File["file"][0])
	require.Error(t, err)
	leftovers, err := filepath.Glob(filepath.Join(dir, "upload-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStartRunWorkflowFailure(t *testing.T) {
	s, tc, _ := newTestServer(t)
	tc.startErr = errors.New("temporal unavailable")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"source_path":"bio.pdf"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "QF-API-4009", errorCode(t, rec))
}

func TestStartRunUpload(t *testing.T) {
	s, tc, cfg := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "chem.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("1. What is an ion?\f2. Define pH."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("dedupe", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, tc.started, 1)
	in := tc.started[0]
	assert.True(t, in.Dedupe)
	assert.Equal(t, 3, in.WindowSize)
	assert.Equal(t, filepath.Join(cfg.DataInRoot, in.RunID, "chem.txt"), in.SourcePath)
	raw, err := os.ReadFile(in.SourcePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Define pH.")
	assert.Contains(t, rec.Body.String(), `"source_sha256":"`+util.SHA256Hex(raw)+`"`)
}

func TestStartRunUploadRejectsOtherTypes(t *testing.T) {
	s, _, _ := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "notes.docx")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only .pdf and .txt uploads are supported.")
}

func TestGetRunDocumentAndQuestions(t *testing.T) {
	s, _, cfg := newTestServer(t)
	runID := "6f1c7a52-3f0e-4b8e-9a51-0d1e2f3a4b5c"
	seedRun(t, cfg, runID, 2)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc models.ProgressDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 2, doc.WindowsCompleted)
	assert.Equal(t, models.StatusInProgress, doc.ProcessingStatus)

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["questions"], 2)
}

func TestGetRunErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/6f1c7a52-3f0e-4b8e-9a51-0d1e2f3a4b5c", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "QF-API-4004", errorCode(t, rec))

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/runs/6f1c7a52-3f0e-4b8e-9a51-0d1e2f3a4b5c", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "QF-API-4005", errorCode(t, rec))
}

func TestRunStatusCombinesSnapshotAndWorkflow(t *testing.T) {
	s, tc, cfg := newTestServer(t)
	runID := "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	seedRun(t, cfg, runID, 1)
	tc.status = &workflows.RunStatus{RunID: runID, Status: workflows.StatusProcessing, CurrentWindow: 2}

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	prog := body["progress"].(map[string]any)
	assert.InDelta(t, 25.0, prog["percent"], 0.001)
	assert.Equal(t, false, prog["terminal"])
	wf := body["workflow"].(map[string]any)
	assert.Equal(t, float64(2), wf["current_window"])
}

func TestRunStatusWithoutWorkflow(t *testing.T) {
	s, _, cfg := newTestServer(t)
	runID := "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	seedRun(t, cfg, runID, 4)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["progress"].(map[string]any)["terminal"])
	assert.NotContains(t, body, "workflow")
	assert.NotContains(t, body, "llm_calls")
}

func TestRunStatusIncludesCallStats(t *testing.T) {
	s, _, cfg := newTestServer(t)
	runID := "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	seedRun(t, cfg, runID, 2)
	s.callStats = func(_ context.Context, id string) ([]storage.LLMCallStat, error) {
		return []storage.LLMCallStat{{ProviderName: "openai", Status: "ok", Calls: 2}}, nil
	}

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	calls := decode(t, rec)["llm_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "openai", calls[0].(map[string]any)["provider_name"])
}

func TestListRuns(t *testing.T) {
	s, _, cfg := newTestServer(t)
	seedRun(t, cfg, "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d", 1)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode(t, rec)["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "bio.pdf", runs[0].(map[string]any)["source_descriptor"])
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/runs", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
