// ABOUTME: HTTP API server for the drover run service.
// ABOUTME: Exposes async agent runs over REST so clients can start, feed, and cancel them.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/executor"
	"github.com/droverhq/drover/internal/runfail"
	"github.com/droverhq/drover/internal/store"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	Timestamp  string `json:"timestamp"`
}

// StartRunRequest represents a request to start an async run.
type StartRunRequest struct {
	// Tool is a configured tool name; empty selects the default tool.
	Tool string `json:"tool,omitempty"`
	// Prompt is the instruction passed to the agent CLI (required).
	Prompt string `json:"prompt"`
	// Dir is the working directory for the agent process.
	Dir string `json:"dir,omitempty"`
	// UnitID ties the run to a plan step or other unit of work.
	UnitID string `json:"unit_id,omitempty"`
}

// RunResponse represents a run in responses.
type RunResponse struct {
	ID         int64  `json:"id"`
	Token      string `json:"token"`
	UnitID     string `json:"unit_id,omitempty"`
	Tool       string `json:"tool"`
	Command    string `json:"command"`
	Prompt     string `json:"prompt,omitempty"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}

// RunListResponse represents the response for listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// InputRequest represents input for a run awaiting a prompt.
type InputRequest struct {
	Text string `json:"text"`
}

// InputResponse reports whether input was handed to the run.
type InputResponse struct {
	Delivered bool `json:"delivered"`
}

// CancelResponse reports whether a cancel took effect.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ============================================================================
// Server
// ============================================================================

// Server is the HTTP API server for the run service. It owns the
// process registry, the executor, and the bookkeeping store; each run
// it starts gets a consumer goroutine that spools stdout to a
// transcript file and finalizes the store row.
type Server struct {
	addr     string
	dataDir  string
	cfg      *config.Config
	store    *store.Store
	registry *executor.Registry
	exec     *executor.Executor
	logger   *log.Logger
	server   *http.Server
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithLogger routes service logs to the given logger.
func WithLogger(logger *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a run service bound to addr, keeping its database
// and transcripts under dataDir.
func NewServer(addr, dataDir string, cfg *config.Config, st *store.Store, opts ...ServerOption) *Server {
	registry := executor.NewRegistry()
	s := &Server{
		addr:     addr,
		dataDir:  dataDir,
		cfg:      cfg,
		store:    st,
		registry: registry,
		exec: executor.New(registry,
			executor.WithAllowedCommands(cfg.AllowedCommands()...),
			executor.WithDefaultTimeout(cfg.Timeout()),
			executor.WithGraceWindow(cfg.Grace()),
		),
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/runs/{id}/input", s.handleInput)
	mux.HandleFunc("POST /api/runs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/runs/{id}/output", s.handleOutput)

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Printf("run service listening on %s (data dir %s)", s.addr, s.dataDir)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSON response helpers
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, ErrorResponse{Error: message})
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		ActiveRuns: s.registry.Len(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RunListResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runResponse(run))
	}
	resp.Count = len(resp.Runs)
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		jsonError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	tool, err := s.cfg.Tool(req.Tool)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	toolName := req.Tool
	if toolName == "" {
		toolName = s.cfg.DefaultTool
	}

	runsDir := constants.RunsDir(s.dataDir)
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		jsonError(w, http.StatusInternalServerError, fmt.Sprintf("creating runs dir: %v", err))
		return
	}

	args := append(append([]string{}, tool.Args...), req.Prompt)

	// The store row comes first: its id keys the executor registry, so
	// clients address runs by row id from the moment they exist.
	row := &store.Run{
		UnitID:  req.UnitID,
		Tool:    toolName,
		Command: strings.Join(append([]string{tool.Command}, args...), " "),
		Prompt:  req.Prompt,
		Status:  store.StatusRunning,
	}
	id, err := s.store.CreateRun(row)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The token is generated during insert, so the transcript path is
	// only known now.
	transcriptPath := filepath.Join(runsDir, row.Token+".log")
	row.TranscriptPath = transcriptPath
	if err := s.store.SetTranscriptPath(id, transcriptPath); err != nil {
		s.logger.Printf("run %d: recording transcript path: %v", id, err)
	}

	// Background context: the run must outlive this request.
	run, err := s.exec.Start(context.Background(), executor.RunSpec{
		ID:      id,
		Command: tool.Command,
		Args:    args,
		Dir:     req.Dir,
		Timeout: s.cfg.Timeout(),
	})
	if err != nil {
		if ferr := s.store.FinishRun(id, store.StatusFailed, nil); ferr != nil {
			s.logger.Printf("run %d: marking spawn failure: %v", id, ferr)
		}
		status := http.StatusInternalServerError
		if errors.Is(err, runfail.ErrNotFound) {
			status = http.StatusUnprocessableEntity
		}
		jsonError(w, status, err.Error())
		return
	}

	go s.consumeRun(run, id, transcriptPath)

	s.logger.Printf("run %d: started %s (pid %d)", id, toolName, run.PID())
	jsonResponse(w, http.StatusCreated, runResponse(row))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, runResponse(run))
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetRun(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	delivered := s.exec.SendInput(id, req.Text)
	if delivered {
		if err := s.store.MarkRunning(id); err != nil {
			s.logger.Printf("run %d: updating status after input: %v", id, err)
		}
	}
	jsonResponse(w, http.StatusOK, InputResponse{Delivered: delivered})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetRun(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cancelled := s.exec.Cancel(id)
	if cancelled {
		s.logger.Printf("run %d: cancel requested", id)
	}
	jsonResponse(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if run.TranscriptPath == "" {
		jsonError(w, http.StatusNotFound, "no output recorded")
		return
	}
	data, err := os.ReadFile(run.TranscriptPath)
	if err != nil {
		if os.IsNotExist(err) {
			jsonError(w, http.StatusNotFound, "no output recorded")
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid run id")
		return 0, false
	}
	return id, true
}

// ============================================================================
// Run consumption
// ============================================================================

// consumeRun drains a run's event stream. Stdout goes verbatim to the
// transcript file; prompt events flip the store row to awaiting_input.
// When the stream closes it finalizes the row with the run's outcome.
func (s *Server) consumeRun(run *executor.Run, id int64, transcriptPath string) {
	f, err := os.OpenFile(transcriptPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Printf("run %d: opening transcript: %v", id, err)
	} else {
		defer f.Close()
	}

	for ev := range run.Events() {
		switch ev.Channel {
		case executor.ChannelPrompt:
			s.logger.Printf("run %d: awaiting input: %s", id, ev.Prompt.Raw)
			if err := s.store.SetStatus(id, store.StatusAwaitingInput); err != nil {
				s.logger.Printf("run %d: updating status: %v", id, err)
			}
		case executor.ChannelStdout:
			if f != nil {
				if _, err := f.WriteString(ev.Text); err != nil {
					s.logger.Printf("run %d: writing transcript: %v", id, err)
				}
			}
		}
	}

	_, runErr := run.Wait()
	status := run.State().String()

	var exitCode *int
	if code, ok := runfail.ExitCode(runErr); ok {
		exitCode = &code
	} else if runErr == nil {
		zero := 0
		exitCode = &zero
	}

	if err := s.store.FinishRun(id, status, exitCode); err != nil {
		s.logger.Printf("run %d: finalizing: %v", id, err)
	}
	if runErr != nil {
		s.logger.Printf("run %d: finished %s: %v", id, status, runErr)
	} else {
		s.logger.Printf("run %d: finished %s", id, status)
	}
}

func runResponse(run *store.Run) RunResponse {
	resp := RunResponse{
		ID:        run.ID,
		Token:     run.Token,
		UnitID:    run.UnitID,
		Tool:      run.Tool,
		Command:   run.Command,
		Prompt:    run.Prompt,
		Status:    run.Status,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		ExitCode:  run.ExitCode,
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
