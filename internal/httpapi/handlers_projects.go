package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request, actor *types.User) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request, actor *types.User) {
	if err := policy.Check(policy.OpProjectCreate, policy.Request{Actor: actor}); err != nil {
		s.writeError(w, err)
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Name == "" || req.Code == "" {
		s.writeError(w, fmt.Errorf("name and code are required: %w", storage.ErrInvalidInput))
		return
	}

	project := &types.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	}
	if err := s.store.CreateProject(r.Context(), project); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request, actor *types.User) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleListProjectIssues lists a project's issues, optionally narrowed by
// status, assignee, sprint, or backlog=true (issues with no sprint).
func (s *Server) handleListProjectIssues(w http.ResponseWriter, r *http.Request, actor *types.User) {
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := storage.IssueFilter{
		ProjectID:  projectID,
		SprintID:   q.Get("sprintId"),
		AssigneeID: q.Get("assigneeId"),
		Backlog:    q.Get("backlog") == "true",
	}
	if status := q.Get("status"); status != "" {
		filter.Status = types.NormalizeStatus(status)
	}

	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}
