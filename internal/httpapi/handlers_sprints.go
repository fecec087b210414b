package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

func (s *Server) handleListSprints(w http.ResponseWriter, r *http.Request, actor *types.User) {
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeError(w, err)
		return
	}
	sprints, err := s.store.ListSprints(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

type createSprintRequest struct {
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (s *Server) handleCreateSprint(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpSprintCreate, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeError(w, err)
		return
	}

	var req createSprintRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, fmt.Errorf("name is required: %w", storage.ErrInvalidInput))
		return
	}

	sprint := &types.Sprint{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      strings.TrimSpace(req.Name),
		Goal:      req.Goal,
		Status:    types.SprintPlanned,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.store.CreateSprint(r.Context(), sprint); err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "sprint.create", "sprint", sprint.ID, sprint.Name)
	writeJSON(w, http.StatusCreated, sprint)
}

// handleStartSprint activates a sprint. Any other active sprint in the same
// project is demoted back to planned in the same transaction.
func (s *Server) handleStartSprint(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpSprintStart, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	sprint, err := s.store.StartSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "sprint.start", "sprint", sprint.ID, sprint.Name)
	writeJSON(w, http.StatusOK, sprint)
}

// handleCompleteSprint completes a sprint. Issues not yet Done are detached
// and drop back to the project backlog.
func (s *Server) handleCompleteSprint(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpSprintComplete, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	sprint, err := s.store.CompleteSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordActivity(r, actor, "sprint.complete", "sprint", sprint.ID, sprint.Name)
	writeJSON(w, http.StatusOK, sprint)
}
