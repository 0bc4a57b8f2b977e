// Package transport exposes the engine over HTTP: a REST surface over the
// store and orchestrator, plus a per-execution WebSocket event stream
// adapted from the Event Bus. Nothing under internal/orchestrator or
// internal/phaserunner imports this package — the bus is the only contract
// between them, proven here by treating it as an ordinary external
// subscriber.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orc-engine/orc/internal/approval"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/eventbus"
	"github.com/orc-engine/orc/internal/orchestrator"
	"github.com/orc-engine/orc/internal/store"
)

// envelope is the newline-delimited JSON shape written to each WebSocket
// connection: the event type flattened with its data, the way eventbus.Event
// documents transport adapters should serialize it.
type envelope struct {
	Type        eventbus.EventType `json:"type"`
	ExecutionID string             `json:"execution_id"`
	Data        map[string]any     `json:"data,omitempty"`
}

// Server wires the Event Bus and the document store onto a chi router. It
// owns no execution state itself.
type Server struct {
	orch      *orchestrator.Orchestrator
	store     store.Store
	bus       *eventbus.Bus
	approvals *approval.Coordinator
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	router    chi.Router
}

func New(orch *orchestrator.Orchestrator, st store.Store, bus *eventbus.Bus, approvals *approval.Coordinator, logger *zap.Logger) *Server {
	s := &Server{
		orch:      orch,
		store:     st,
		bus:       bus,
		approvals: approvals,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/executions", func(r chi.Router) {
		r.Get("/", s.handleListExecutions)
		r.Get("/{id}", s.handleGetExecution)
		r.Post("/{id}/cancel", s.handleCancel)
		r.Post("/{id}/approve", s.handleResolve(true))
		r.Post("/{id}/reject", s.handleResolve(false))
		r.Get("/{id}/events", s.handleEventStream)
		r.Get("/{id}/artifacts", s.handleListArtifacts)
	})

	r.Route("/artifacts", func(r chi.Router) {
		r.Get("/{id}", s.handleGetArtifact)
		r.Get("/{id}/content", s.handleGetArtifactContent)
		r.Put("/{id}", s.handleUpdateArtifact)
	})

	return r
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := store.ExecutionFilter{ProjectID: r.URL.Query().Get("project_id")}
	execs, err := s.orch.ListExecutions(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.orch.GetExecution(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.orch.Cancel(id) {
		writeError(w, http.StatusConflict, errors.New("execution is not active"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := s.orch.GetArtifacts(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetArtifact(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetArtifactContent(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetArtifact(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": a.Content})
}

type updateArtifactRequest struct {
	Content string `json:"content"`
}

// handleUpdateArtifact implements the artifact edit operation (spec.md §6's
// update_content), mirroring the original API's PUT /artifacts/{id}.
func (s *Server) handleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	var body updateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := s.orch.UpdateArtifactContent(chi.URLParam(r, "id"), body.Content)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResolve(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !s.approvals.Resolve(id, approved, core.SourceWeb) {
			writeError(w, http.StatusConflict, errors.New("no pending approval for execution"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// handleEventStream upgrades to a WebSocket, emits an init snapshot, then
// relays every subsequent bus event for this execution until the client
// disconnects or the request context is cancelled.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "id")

	exec, err := s.orch.GetExecution(executionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("execution_id", executionID))
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe(executionID)
	defer s.bus.Unsubscribe(sub)

	initData := map[string]any{"execution": exec}
	if info, ok := s.approvals.GetPendingInfo(executionID); ok {
		initData["pending_approval"] = info
	}
	if err := conn.WriteJSON(envelope{Type: eventbus.EventInit, ExecutionID: executionID, Data: initData}); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(envelope{Type: ev.Type, ExecutionID: ev.ExecutionID, Data: ev.Data}); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
