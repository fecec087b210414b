package httpapi

import (
	"fmt"
	"net/http"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/types"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

// handleLogin verifies credentials and issues a session token. Deactivated
// accounts are rejected here regardless of role; the failure message does
// not reveal whether the email exists.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.writeError(w, fmt.Errorf("invalid credentials: %w", auth.ErrUnauthenticated))
		return
	}
	if !user.Active {
		s.writeError(w, fmt.Errorf("account deactivated: %w", auth.ErrUnauthenticated))
		return
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, actor *types.User) {
	writeJSON(w, http.StatusOK, actor)
}
