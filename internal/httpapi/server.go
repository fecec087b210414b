// Package httpapi exposes the FlowSync REST surface over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/workflow"
)

// Server handles HTTP requests for the FlowSync API.
type Server struct {
	store      storage.Storage
	dispatcher *workflow.Dispatcher
	issuer     *auth.Issuer
	log        zerolog.Logger
	mux        *http.ServeMux
	httpServer *http.Server
}

// ServerConfig holds the collaborators a Server needs.
type ServerConfig struct {
	Store      storage.Storage
	Dispatcher *workflow.Dispatcher
	Issuer     *auth.Issuer
	Logger     zerolog.Logger
}

// NewServer creates a Server and registers its routes.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		issuer:     cfg.Issuer,
		log:        cfg.Logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Unauthenticated
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// Session-scoped
	s.mux.Handle("GET /api/me", s.withUser(s.handleMe))

	s.mux.Handle("GET /api/projects", s.withUser(s.handleListProjects))
	s.mux.Handle("POST /api/projects", s.withUser(s.handleCreateProject))
	s.mux.Handle("GET /api/projects/{id}", s.withUser(s.handleGetProject))
	s.mux.Handle("GET /api/projects/{id}/issues", s.withUser(s.handleListProjectIssues))
	s.mux.Handle("GET /api/projects/{id}/sprints", s.withUser(s.handleListSprints))
	s.mux.Handle("POST /api/projects/{id}/sprints", s.withUser(s.handleCreateSprint))

	s.mux.Handle("POST /api/issues", s.withUser(s.handleCreateIssue))
	s.mux.Handle("GET /api/issues/{id}", s.withUser(s.handleGetIssue))
	s.mux.Handle("PUT /api/issues/{id}", s.withUser(s.handleUpdateIssue))
	s.mux.Handle("PATCH /api/issues/{id}/status", s.withUser(s.handleChangeStatus))
	s.mux.Handle("DELETE /api/issues/{id}", s.withUser(s.handleDeleteIssue))
	s.mux.Handle("POST /api/issues/{id}/links", s.withUser(s.handleAddLink))
	s.mux.Handle("DELETE /api/issues/{id}/links/{linkedId}", s.withUser(s.handleRemoveLink))

	s.mux.Handle("POST /api/issues/{id}/comments", s.withUser(s.handleAddComment))
	s.mux.Handle("GET /api/issues/{id}/comments", s.withUser(s.handleListComments))
	s.mux.Handle("PUT /api/comments/{id}", s.withUser(s.handleEditComment))
	s.mux.Handle("DELETE /api/comments/{id}", s.withUser(s.handleDeleteComment))

	s.mux.Handle("POST /api/sprints/{id}/start", s.withUser(s.handleStartSprint))
	s.mux.Handle("POST /api/sprints/{id}/complete", s.withUser(s.handleCompleteSprint))

	s.mux.Handle("GET /api/notifications", s.withUser(s.handleListNotifications))
	s.mux.Handle("GET /api/notifications/unread-count", s.withUser(s.handleUnreadCount))
	s.mux.Handle("PATCH /api/notifications/read-all", s.withUser(s.handleMarkAllRead))
	s.mux.Handle("PATCH /api/notifications/{id}/read", s.withUser(s.handleMarkRead))
	s.mux.Handle("DELETE /api/notifications/{id}", s.withUser(s.handleDeleteNotification))

	// Admin console
	s.mux.Handle("GET /api/users", s.withUser(s.handleListUsers))
	s.mux.Handle("POST /api/users", s.withUser(s.handleCreateUser))
	s.mux.Handle("PATCH /api/users/{id}", s.withUser(s.handleUpdateUser))
	s.mux.Handle("GET /api/admin/settings", s.withUser(s.handleGetSettings))
	s.mux.Handle("PUT /api/admin/settings", s.withUser(s.handlePutSettings))
	s.mux.Handle("GET /api/admin/activity", s.withUser(s.handleListActivity))
}

// Handler returns the HTTP handler for use with custom servers and tests.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Start runs the HTTP server on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
