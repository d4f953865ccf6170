package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"questflow/internal/config"
	"questflow/internal/models"
	"questflow/internal/monitor"
	"questflow/internal/progress"
	"questflow/internal/storage"
	"questflow/internal/util"
	"questflow/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// WorkflowClient is the part of the Temporal client the server uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	cfg       config.Config
	temporal  WorkflowClient
	openStore func(runID string) (progress.Store, error)
	listRuns  func(ctx context.Context, limit int) ([]storage.RunSummary, error)
	// callStats is set when LLM calls are audited in Postgres.
	callStats func(ctx context.Context, runID string) ([]storage.LLMCallStat, error)
}

// NewServer serves runs from the configured progress backend. db is only
// used by the postgres backend and may be nil otherwise.
func NewServer(cfg config.Config, tc WorkflowClient, db *storage.DB) *Server {
	s := &Server{
		cfg:      cfg,
		temporal: tc,
		openStore: func(runID string) (progress.Store, error) {
			return progress.Open(cfg, runID, db)
		},
		listRuns: func(ctx context.Context, limit int) ([]storage.RunSummary, error) {
			return progress.ListFileRuns(ctx, cfg.DataOutRoot, limit)
		},
	}
	if db != nil {
		s.callStats = storage.NewLLMAuditRepo(db).StatsForRun
		if cfg.ProgressBackend == config.BackendPostgres {
			s.listRuns = storage.NewProgressRepo(db).ListRuns
		}
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type startRunRequest struct {
	SourcePath string `json:"source_path"`
	WindowSize int    `json:"window_size"`
	Dedupe     *bool  `json:"dedupe,omitempty"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := s.listRuns(r.Context(), limit)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	case http.MethodPost:
		s.handleStartRun(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	var req startRunRequest
	var sourceSum string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		path, sum, err := s.handleUpload(r, runID)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		req.SourcePath, sourceSum = path, sum
		req.WindowSize, _ = strconv.Atoi(r.FormValue("window_size"))
		if v := r.FormValue("dedupe"); v != "" {
			b, _ := strconv.ParseBool(v)
			req.Dedupe = &b
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.SourcePath = strings.TrimSpace(req.SourcePath)
		if req.SourcePath == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("source_path is required"))
			return
		}
		p, err := util.ResolveUnder(s.cfg.DataInRoot, req.SourcePath)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		req.SourcePath = p
	}
	if req.WindowSize <= 0 {
		req.WindowSize = s.cfg.WindowSize
	}
	dedupe := s.cfg.DedupeQuestions
	if req.Dedupe != nil {
		dedupe = *req.Dedupe
	}

	input := workflows.ExtractionInput{
		RunID:                 runID,
		SourcePath:            req.SourcePath,
		WindowSize:            req.WindowSize,
		Dedupe:                dedupe,
		ExtractTimeoutSeconds: s.cfg.LLMTimeoutSecs * (s.cfg.MaxAttempts + 1),
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(runID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.QuestionExtractionWorkflow, input)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	resp := map[string]any{
		"run_id":          runID,
		"source_path":     req.SourcePath,
		"window_size":     req.WindowSize,
		"workflow_id":     we.GetID(),
		"workflow_run_id": we.GetRunID(),
	}
	if sourceSum != "" {
		resp["source_sha256"] = sourceSum
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleRunScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := parts[0]

	switch {
	case len(parts) == 1:
		doc, err := s.readRun(r.Context(), runID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case len(parts) == 2 && parts[1] == "status":
		s.handleStatus(w, r, runID)
	case len(parts) == 2 && parts[1] == "questions":
		doc, err := s.readRun(r.Context(), runID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "questions": doc.AllQuestions()})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

// handleStatus combines the persisted snapshot with the live workflow state.
// Either half may be missing: the document before initialization, the query
// once the workflow history is gone.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, runID string) {
	out := map[string]any{"run_id": runID}
	doc, docErr := s.readRun(r.Context(), runID)
	if docErr == nil {
		out["progress"] = monitor.Snapshot(doc)
	}

	resp, qErr := s.temporal.QueryWorkflow(r.Context(), workflows.WorkflowID(runID), "", workflows.QueryGetProgress)
	if qErr == nil {
		var st workflows.RunStatus
		if err := resp.Get(&st); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out["workflow"] = st
	}
	if s.callStats != nil && docErr == nil {
		if stats, err := s.callStats(r.Context(), runID); err == nil {
			out["llm_calls"] = stats
		}
	}

	if docErr != nil && qErr != nil {
		writeErr(w, statusFor(docErr), docErr)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) readRun(ctx context.Context, runID string) (*models.ProgressDocument, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}
	store, err := s.openStore(runID)
	if err != nil {
		return nil, err
	}
	return store.Read(ctx)
}

// handleUpload stores the uploaded document under data_in/<runID>/ and
// returns its path and sha256.
func (s *Server) handleUpload(r *http.Request, runID string) (string, string, error) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		return "", "", fmt.Errorf("parse multipart: %w", err)
	}
	fh, ok := firstFile(r.MultipartForm.File)
	if !ok {
		return "", "", fmt.Errorf("no files provided")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".pdf" && ext != ".txt" {
		return "", "", fmt.Errorf("unsupported file type %q", ext)
	}
	inDir := filepath.Join(s.cfg.DataInRoot, runID)
	if err := util.EnsureDir(inDir); err != nil {
		return "", "", err
	}
	path, err := saveUploadedFile(inDir, fh)
	if err != nil {
		return "", "", err
	}
	sum, err := util.FileSHA256(path)
	if err != nil {
		return "", "", err
	}
	return path, sum, nil
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func firstFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	if files := m["file"]; len(files) > 0 {
		return files[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "invalid run id"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "QF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "QF-DB-5001",
				Message: "Database schema is not initialized. Start the worker once and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "QF-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "QF-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "QF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "QF-API-4004"
		msg = "Requested run was not found."
	case status == http.StatusConflict:
		code = "QF-API-4009"
		msg = "Run could not be started. Check the workflow service and retry."
	case status == http.StatusMethodNotAllowed:
		code = "QF-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "source_path is required"):
			msg = "A source_path or an uploaded file is required."
		case strings.Contains(raw, "no files provided"):
			msg = "No PDF or text file was provided."
		case strings.Contains(raw, "unsupported file type"):
			msg = "Only .pdf and .txt uploads are supported."
		case strings.Contains(raw, "invalid run id"):
			msg = "Run id must be a UUID."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "escapes"):
			msg = "source_path must stay inside the input directory."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
