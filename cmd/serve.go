package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/store"
	"github.com/growthlens/audit-cli/internal/wizard"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard API server",
	Long:  "Exposes the audit wizard over HTTP so a frontend can drive it: create a session, upload sources and context, run the analysis, review findings, and finalize the report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close() //nolint:errcheck

		api := newAPIServer(deps)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("wizard API listening", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds live wizard sessions. Sessions are kept in memory for the
// life of the process; a session for a persisted run is resumed from the
// store on first access after a restart.
type apiServer struct {
	deps wizard.Deps

	mu       sync.Mutex
	sessions map[string]*wizard.Session
}

func newAPIServer(deps wizard.Deps) *apiServer {
	return &apiServer{
		deps:     deps,
		sessions: make(map[string]*wizard.Session),
	}
}

func (s *apiServer) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/sources", s.handleSetSources)
			r.Post("/context", s.handleSetContext)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/finalize", s.handleFinalize)
			r.Put("/sections/{section}/findings/{index}", s.handleEditFinding)
			r.Delete("/sections/{section}/findings/{index}", s.handleRemoveFinding)
		})
	})

	r.Get("/runs", s.handleListRuns)

	return r
}

// sessionView is the wire shape of a session for API responses.
type sessionView struct {
	ID   string         `json:"id"`
	Step wizard.Step    `json:"step"`
	Run  model.AuditRun `json:"run"`
}

func viewOf(sess *wizard.Session) sessionView {
	return sessionView{ID: sess.ID(), Step: sess.Step(), Run: sess.Run()}
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var company model.CompanyInfo
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := wizard.NewSession(r.Context(), s.deps, company)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, viewOf(sess))
}

// session returns the live session for a run ID, resuming it from the store
// when the process has no in-memory copy.
func (s *apiServer) session(ctx context.Context, id string) (*wizard.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	sess, err := wizard.Resume(ctx, s.deps, id)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = sess
	return sess, nil
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *apiServer) handleSetSources(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var files model.SourceFiles
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.SetSources(files); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *apiServer) handleSetContext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var answers model.ContextAnswers
	if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.SetContext(answers); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// Analysis outlives the request; poll GET /sessions/{id} for progress.
	go func() {
		if err := sess.Analyze(context.WithoutCancel(r.Context())); err != nil {
			zap.L().Error("analysis failed",
				zap.String("run_id", sess.ID()),
				zap.Error(err),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, viewOf(sess))
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	result, err := sess.Finalize(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleEditFinding(w http.ResponseWriter, r *http.Request) {
	sess, section, index, ok := s.findingTarget(w, r)
	if !ok {
		return
	}

	var f model.Finding
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.EditFinding(r.Context(), section, index, f); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *apiServer) handleRemoveFinding(w http.ResponseWriter, r *http.Request) {
	sess, section, index, ok := s.findingTarget(w, r)
	if !ok {
		return
	}

	if err := sess.RemoveFinding(r.Context(), section, index); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// findingTarget resolves the session, section, and finding index from the
// URL, writing the error response itself when any of them is invalid.
func (s *apiServer) findingTarget(w http.ResponseWriter, r *http.Request) (*wizard.Session, model.Section, int, bool) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, "", 0, false
	}

	section, err := model.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", 0, false
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "finding index must be an integer")
		return nil, "", 0, false
	}

	return sess, section, index, true
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Domain: q.Get("domain"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.deps.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	// Single-line messages only; eris chains can span lines.
	msg = strings.SplitN(msg, "\n", 2)[0]
	writeJSON(w, status, map[string]string{"error": msg})
}
