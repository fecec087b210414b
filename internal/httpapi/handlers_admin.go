package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

// handleListUsers is open to any authenticated user so assignee pickers can
// be populated. Password hashes never serialize (json:"-").
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, actor *types.User) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpUserAdmin, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		s.writeError(w, fmt.Errorf("email and password are required: %w", storage.ErrInvalidInput))
		return
	}
	role := types.Role(req.Role)
	if req.Role == "" {
		role = types.RoleMember
	}
	if !role.IsValid() {
		s.writeError(w, fmt.Errorf("invalid role %q: %w", req.Role, storage.ErrInvalidInput))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	user := &types.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "user.create", "user", user.ID, user.Email)
	writeJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	Active      *bool   `json:"active"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpUserAdmin, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	updates := make(map[string]interface{})
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}
		updates["password_hash"] = hash
	}
	if req.Role != nil {
		role := types.Role(*req.Role)
		if !role.IsValid() {
			s.writeError(w, fmt.Errorf("invalid role %q: %w", *req.Role, storage.ErrInvalidInput))
			return
		}
		updates["role"] = string(role)
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		s.writeError(w, fmt.Errorf("no fields to update: %w", storage.ErrInvalidInput))
		return
	}

	id := r.PathValue("id")
	if err := s.store.UpdateUser(r.Context(), id, updates); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "user.update", "user", user.ID, user.Email)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpSettingsRead, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpSettingsWrite, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	for key, value := range req {
		if err := s.store.SetSetting(r.Context(), key, value); err != nil {
			s.writeError(w, err)
			return
		}
	}

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "settings.update", "settings", "workspace", "")
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpAuditRead, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, fmt.Errorf("limit must be a positive integer: %w", storage.ErrInvalidInput))
			return
		}
		limit = n
	}
	entries, err := s.store.ListActivity(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
