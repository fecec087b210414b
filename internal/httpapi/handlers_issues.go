package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
	"github.com/flowsync/flowsync/internal/workflow"
)

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpIssueCreate, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var in workflow.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	issue, err := s.dispatcher.CreateIssue(r.Context(), in, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request, actor *types.User) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// updateIssueRequest uses raw messages for the nullable references so the
// handler can distinguish an absent field from an explicit null.
type updateIssueRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	Type        *string         `json:"type"`
	AssigneeID  json.RawMessage `json:"assigneeId"`
	SprintID    json.RawMessage `json:"sprintId"`
	StoryPoints *int            `json:"storyPoints"`
}

// nullableRef decodes a tri-state reference field: absent leaves the issue
// unchanged, JSON null clears it, a string sets it.
func nullableRef(raw json.RawMessage) (value *string, clear bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	if string(raw) == "null" {
		return nil, true, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, false, fmt.Errorf("expected a string or null: %w", storage.ErrInvalidInput)
	}
	return &id, false, nil
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpIssueUpdate, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req updateIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	in := workflow.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Type:        req.Type,
		StoryPoints: req.StoryPoints,
	}
	var err error
	if in.AssigneeID, in.ClearAssignee, err = nullableRef(req.AssigneeID); err != nil {
		s.writeError(w, fmt.Errorf("assigneeId: %w", err))
		return
	}
	if in.SprintID, in.ClearSprint, err = nullableRef(req.SprintID); err != nil {
		s.writeError(w, fmt.Errorf("sprintId: %w", err))
		return
	}

	issue, err := s.dispatcher.UpdateIssue(r.Context(), r.PathValue("id"), in, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request, actor *types.User) {
	var req changeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	issue, err := s.dispatcher.ChangeStatus(r.Context(), r.PathValue("id"), req.Status, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpIssueDelete, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteIssue(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "issue.delete", "issue", id, issue.Key)
	w.WriteHeader(http.StatusNoContent)
}

type addLinkRequest struct {
	LinkedIssueID string `json:"linkedIssueId"`
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request, actor *types.User) {
	var req addLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if req.LinkedIssueID == "" {
		s.writeError(w, fmt.Errorf("linkedIssueId is required: %w", storage.ErrInvalidInput))
		return
	}
	if req.LinkedIssueID == id {
		s.writeError(w, fmt.Errorf("an issue cannot link to itself: %w", storage.ErrInvalidInput))
		return
	}
	if err := s.store.AddIssueLink(r.Context(), id, req.LinkedIssueID); err != nil {
		s.writeError(w, err)
		return
	}
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) handleRemoveLink(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := s.store.RemoveIssueLink(r.Context(), r.PathValue("id"), r.PathValue("linkedId")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordActivity appends an audit entry for handler-level mutations.
// Best-effort, mirroring the dispatcher.
func (s *Server) recordActivity(r *http.Request, actor *types.User, action, entityType, entityID, detail string) {
	err := s.store.AppendActivity(r.Context(), &types.ActivityEntry{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("activity write failed")
	}
}
