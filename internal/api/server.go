package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/crag"
	"cragflow/internal/models"
	"cragflow/internal/providers"
	"cragflow/internal/vectorstore"
	"cragflow/internal/workflows"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phuslu/log"
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
	cfg            config.Config
	temporal       WorkflowClient
	store          vectorstore.Store
	catalog        vectorstore.Catalog
	llmProviders   int
	embedProviders int
	validate       *validator.Validate
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
	Mode     string `json:"mode" validate:"omitempty,oneof=loop quick"`
	TopK     int    `json:"top_k" validate:"gte=0,lte=50"`
	Async    bool   `json:"async"`
}

type ingestRequest struct {
	URL     string `json:"url" validate:"required_without=PDFPath"`
	PDFPath string `json:"pdf_path" validate:"required_without=URL"`
}

func NewServer(cfg config.Config, tc WorkflowClient, store vectorstore.Store, catalog vectorstore.Catalog, pm *providers.Manager) *Server {
	return &Server{
		cfg:            cfg,
		temporal:       tc,
		store:          store,
		catalog:        catalog,
		llmProviders:   pm.LLMCount(),
		embedProviders: pm.EmbedCount(),
		validate:       validator.New(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/answers/", s.handleAnswer)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest/", s.handleIngestProgress)
	mux.HandleFunc("/sources", s.handleSources)
	mux.HandleFunc("/chunks/count", s.handleChunkCount)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if m := r.URL.Query().Get("mode"); m != "" {
		req.Mode = m
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required: %w", err))
		return
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.RetrievalK
	}

	runID := uuid.NewString()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:        workflows.AnswerWorkflowID(runID),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}, workflows.AnswerWorkflow, workflows.AnswerInput{
		RunID:    runID,
		Question: req.Question,
		Mode:     req.Mode,
		TopK:     req.TopK,
		Limits: crag.Limits{
			MaxGenerations: s.cfg.MaxGenerations,
			MaxRewrites:    s.cfg.MaxRewrites,
			MaxAttempts:    s.cfg.MaxAttempts,
		},
		EmbedProviders:  s.embedProviders,
		LLMProviders:    s.llmProviders,
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
		WriteArtifacts:  s.cfg.DataOutRoot != "",
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if req.Async {
		writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "workflow_id": we.GetID()})
		return
	}
	var run models.AnswerRun
	if err := we.Get(r.Context(), &run); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("answer workflow failed")
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleAnswer serves a recorded run, or the live progress of one that is
// still running.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/answers/"), "/")
	if runID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	run, err := s.catalog.GetAnswerRun(r.Context(), runID)
	if err == nil {
		writeJSON(w, http.StatusOK, run)
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	var prog workflows.AnswerProgress
	if err := s.query(r.Context(), workflows.AnswerWorkflowID(runID), &prog); err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("answer run %s not found", runID))
		return
	}
	writeJSON(w, http.StatusAccepted, prog)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url or pdf_path is required: %w", err))
		return
	}
	if req.URL != "" {
		if _, err := clickup.ParseURL(req.URL); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
	}

	ingestID := uuid.NewString()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflows.IngestWorkflowID(ingestID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.IngestWorkflow, workflows.IngestInput{
		URL:             req.URL,
		PDFPath:         req.PDFPath,
		Normalize:       s.cfg.NormalizeText,
		ChunkSize:       s.cfg.ChunkSize,
		ChunkOverlap:    s.cfg.ChunkOverlap,
		EmbedProviders:  s.embedProviders,
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ingest_id": ingestID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleIngestProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ingest/"), "/")
	if id == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	var prog workflows.IngestProgress
	if err := s.query(r.Context(), workflows.IngestWorkflowID(id), &prog); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sources, err := s.catalog.ListSources(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleChunkCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	n, err := s.store.Count(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *Server) query(ctx context.Context, workflowID string, out any) error {
	resp, err := s.temporal.QueryWorkflow(ctx, workflowID, "", workflows.QueryGetProgress)
	if err != nil {
		return err
	}
	return resp.Get(out)
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
	code := "CF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		code = "CF-API-5020"
		msg = "The answer run failed. Check provider status and retry."
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "CF-DB-5001",
				Message: "Database schema is not initialized. Restart the service to apply it.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "CF-DB-5002",
				Message: "A backing service is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "CF-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "CF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "CF-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "CF-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "CF-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// Only user-safe validation context is echoed for 4xx.
	if status >= 400 && status < 500 && err != nil {
		var pe *clickup.URLParseError
		switch {
		case errors.As(err, &pe):
			msg = "Not a ClickUp doc URL: " + pe.Reason + "."
		case strings.Contains(raw, "question is required"):
			msg = "A question is required."
		case strings.Contains(raw, "url or pdf_path is required"):
			msg = "Either a ClickUp doc URL or a PDF path is required."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
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
