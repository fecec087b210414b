package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/types"
)

type contextKey int

const userKey contextKey = iota

// userHandler is a handler that runs with a resolved, active user.
type userHandler func(w http.ResponseWriter, r *http.Request, actor *types.User)

// withUser authenticates the bearer token, re-checks the account against
// the store (tokens outlive deactivation), and invokes next with the actor.
func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, fmt.Errorf("missing bearer token: %w", auth.ErrUnauthenticated))
			return
		}

		claims, err := s.issuer.Validate(token)
		if err != nil {
			s.writeError(w, err)
			return
		}

		user, err := s.store.GetUser(r.Context(), claims.UserID)
		if err != nil {
			s.writeError(w, fmt.Errorf("unknown account: %w", auth.ErrUnauthenticated))
			return
		}
		if !user.Active {
			s.writeError(w, fmt.Errorf("account deactivated: %w", auth.ErrUnauthenticated))
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx), user)
	})
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
