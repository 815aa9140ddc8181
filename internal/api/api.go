// Package api provides the HTTP API for the scrum planning graph.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/config"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/repo"
)

// maxBodyBytes caps request bodies, bulk imports included.
const maxBodyBytes = 4 << 20

var errBadRequest = errors.New("bad request")

// Server is the HTTP API server.
type Server struct {
	bind       string
	repos      *repo.Set
	relations  *relations.Manager
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	startTime  time.Time
	httpServer *http.Server
}

// NewServer creates a new API server over st.
func NewServer(cfg *config.Config, st docstore.Store, logger *slog.Logger) *Server {
	return &Server{
		bind:       cfg.API.Bind,
		repos:      repo.NewSet(st, logger),
		relations:  relations.NewManager(st, logger),
		reconciler: reconcile.New(st, logger),
		logger:     logger,
		startTime:  time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /reconcile", s.handleReconcile)

	registerEntity(s, mux, s.repos.Epics)
	registerEntity(s, mux, s.repos.Stories)
	registerEntity(s, mux, s.repos.Tasks)
	registerEntity(s, mux, s.repos.Developers)
	registerEntity(s, mux, s.repos.Sprints)

	s.registerRelation(mux, relations.EpicStory)
	s.registerRelation(mux, relations.StoryTask)
	mux.HandleFunc("GET /epics/with-stories", s.handleEpicsWithStories)
	mux.HandleFunc("GET /stories/with-tasks", s.handleStoriesWithTasks)

	mux.HandleFunc("GET /tasks/{id}/dependencies", s.handleDependencies)
	mux.HandleFunc("GET /tasks/{id}/dependents", s.handleDependents)
	mux.HandleFunc("PUT /tasks/{id}/dependencies/{dep}", s.handleAddDependency)
	mux.HandleFunc("DELETE /tasks/{id}/dependencies/{dep}", s.handleRemoveDependency)
	mux.HandleFunc("GET /tasks/{id}/dependencies/{dep}/check", s.handleCycleCheck)

	mux.HandleFunc("GET /tasks/{id}/assignees", s.handleAssignees)
	mux.HandleFunc("POST /tasks/{id}/assignees", s.handleAssign)
	mux.HandleFunc("DELETE /tasks/{id}/assignees", s.handleUnassign)
	mux.HandleFunc("GET /developers/{id}/tasks", s.handleDeveloperTasks)
	return mux
}

// Start begins listening on the configured bind address. Blocks until ctx is
// cancelled and in-flight requests have finished.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", s.bind, err)
	}
	return s.serve(ctx, ln, s.Handler())
}

// serve runs until ctx is done and returns once in-flight requests have
// drained or the shutdown timeout has passed.
func (s *Server) serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	s.httpServer = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSONStatus(w, code, map[string]string{"error": msg})
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, relations.ErrEntityNotFound), errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, relations.ErrCircularDependency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalid), errors.Is(err, repo.ErrReadOnlyField), errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// idsBody is the request body of bulk link and assignment calls.
type idsBody struct {
	IDs []string `json:"ids"`
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"healthy":  true,
		"uptime_s": time.Since(s.startTime).Seconds(),
	})
}

// POST /reconcile?repair=true
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	repair := false
	if v := r.URL.Query().Get("repair"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "repair must be a boolean")
			return
		}
		repair = parsed
	}

	report, err := s.reconciler.Check(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"report": report}
	if repair {
		result, err := s.reconciler.Repair(r.Context(), report)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp["repair"] = result
	}
	writeJSON(w, resp)
}
