// Package http exposes the engine over a JSON API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Executor runs one request. *session.Manager wraps an engine to persist
// documents between calls; a plain engine works for stateless use.
type Executor interface {
	Execute(ctx context.Context, req domain.Request) (*domain.Response, error)
}

// Workflows reads stored documents. It is optional.
type Workflows interface {
	Load(ctx context.Context, workflowID string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]string, error)
}

// RenderRequest is the body of POST /render.
// WorkflowNodes wins over WorkflowID when both are given.
type RenderRequest struct {
	workflow.RenderOptions
	NodeID        string                  `json:"nodeId,omitempty"`
	WorkflowID    string                  `json:"workflowId,omitempty"`
	WorkflowNodes map[string]*domain.Node `json:"workflowNodes,omitempty"`
	WorkflowEdges map[string]*domain.Edge `json:"workflowEdges,omitempty"`
}

// Server holds the handler dependencies.
type Server struct {
	Executor  Executor
	Workflows Workflows
	Streams   *StreamManager
	Version   string

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWorkflows enables GET /workflows and workflowId lookups on /render.
func WithWorkflows(w Workflows) Option {
	return func(s *Server) {
		s.Workflows = w
	}
}

// WithGatherer serves GET /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(exec Executor, opts ...Option) http.Handler {
	s := &Server{
		Executor: exec,
		Streams:  NewStreamManager(),
		Version:  workflow.Version,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Post("/execute", s.Execute)
	r.Post("/render", s.RenderOutline)
	r.Get("/workflows", s.ListWorkflows)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrWorkflowNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Execute handles POST /execute.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("execute: invalid request body", "err", err)
		return
	}

	resp, err := s.Executor.Execute(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Execute error: %v", err), statusOf(err))
		s.logger.Warn("execute failed", "workflow_id", req.WorkflowID, "err", err)
		return
	}

	if req.WorkflowID != "" {
		if payload, err := json.Marshal(changeEvent{QueryType: resp.QueryType, NodeIDs: resp.ChangedNodeIDs()}); err == nil {
			s.Streams.Broadcast(req.WorkflowID, string(payload))
		}
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

type changeEvent struct {
	QueryType domain.QueryType `json:"queryType"`
	NodeIDs   []string         `json:"nodeIds"`
}

// RenderOutline handles POST /render.
func (s *Server) RenderOutline(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("render: invalid request body", "err", err)
		return
	}

	snap := &domain.Snapshot{Nodes: body.WorkflowNodes, Edges: body.WorkflowEdges}
	if len(body.WorkflowNodes) == 0 && body.WorkflowID != "" {
		if s.Workflows == nil {
			http.Error(w, "Stored workflows are not enabled", http.StatusNotImplemented)
			return
		}
		var err error
		snap, err = s.Workflows.Load(r.Context(), body.WorkflowID)
		if err != nil {
			http.Error(w, fmt.Sprintf("Load error: %v", err), statusOf(err))
			return
		}
	}

	text, err := workflow.RenderOutline(snap, body.NodeID, body.RenderOptions)
	if err != nil {
		http.Error(w, fmt.Sprintf("Render error: %v", err), statusOf(err))
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"text": text})
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	if s.Workflows == nil {
		http.Error(w, "Stored workflows are not enabled", http.StatusNotImplemented)
		return
	}
	ids, err := s.Workflows.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		return
	}
	sort.Strings(ids)
	writeJSON(w, s.logger, http.StatusOK, map[string][]string{"workflows": ids})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "workflow-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// SubscribeEvents handles GET /events?workflowId=... as a server-sent event stream
// of the node ids each execution on that workflow changed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	workflowID := r.URL.Query().Get("workflowId")
	if workflowID == "" {
		http.Error(w, "workflowId is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(workflowID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "workflow_id", workflowID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
