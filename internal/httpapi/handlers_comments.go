package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpCommentCreate, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	comment, err := s.dispatcher.AddComment(r.Context(), r.PathValue("id"), req.Content, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id := r.PathValue("id")
	if _, err := s.store.GetIssue(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	comments, err := s.store.ListComments(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// handleEditComment lets the author revise their comment. Only the author
// may edit; admins can delete but not rewrite someone else's words.
func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id := r.PathValue("id")
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := policy.Check(policy.OpCommentEdit, policy.Request{Actor: actor, OwnerID: comment.AuthorID}); err != nil {
		s.writeError(w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, fmt.Errorf("content is required: %w", storage.ErrInvalidInput))
		return
	}
	if err := s.store.UpdateComment(r.Context(), id, req.Content); err != nil {
		s.writeError(w, err)
		return
	}

	updated, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id := r.PathValue("id")
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := policy.Check(policy.OpCommentDelete, policy.Request{Actor: actor, OwnerID: comment.AuthorID}); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteComment(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
