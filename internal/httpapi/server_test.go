package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/keygen"
	"github.com/flowsync/flowsync/internal/storage/sqlite"
	"github.com/flowsync/flowsync/internal/types"
	"github.com/flowsync/flowsync/internal/workflow"
)

type apiFixture struct {
	t       *testing.T
	ts      *httptest.Server
	issuer  *auth.Issuer
	admin   *types.User
	pm      *types.User
	member  *types.User
	dev     *types.User
	project *types.Project

	tokens map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := t.Context()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)

	f := &apiFixture{
		t:      t,
		issuer: auth.NewIssuer([]byte("test-secret"), time.Hour),
		tokens: make(map[string]string),
	}
	mkUser := func(email string, role types.Role) *types.User {
		u := &types.User{
			ID:           uuid.NewString(),
			Email:        email,
			DisplayName:  email,
			PasswordHash: hash,
			Role:         role,
			Active:       true,
		}
		require.NoError(t, store.CreateUser(ctx, u))
		token, err := f.issuer.Issue(u)
		require.NoError(t, err)
		f.tokens[u.ID] = token
		return u
	}
	f.admin = mkUser("admin@example.com", types.RoleAdmin)
	f.pm = mkUser("pm@example.com", types.RoleProjectManager)
	f.member = mkUser("member@example.com", types.RoleMember)
	f.dev = mkUser("dev@example.com", types.RoleMember)

	f.project = &types.Project{ID: uuid.NewString(), Name: "FlowSync", Code: "FLOW"}
	require.NoError(t, store.CreateProject(ctx, f.project))

	dispatcher := workflow.New(store, keygen.New(store), zerolog.Nop(), nil)
	srv := NewServer(ServerConfig{
		Store:      store,
		Dispatcher: dispatcher,
		Issuer:     f.issuer,
		Logger:     zerolog.Nop(),
	})
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

// do performs a request as the given user (nil for anonymous) and decodes
// the JSON response into out when out is non-nil.
func (f *apiFixture) do(method, path string, as *types.User, body interface{}, out interface{}) *http.Response {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(f.t, err)
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+f.tokens[as.ID])
	}
	resp, err := f.ts.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *apiFixture) createIssue(as *types.User, body map[string]interface{}) *types.Issue {
	f.t.Helper()
	if _, ok := body["projectId"]; !ok {
		body["projectId"] = f.project.ID
	}
	var issue types.Issue
	resp := f.do("POST", "/api/issues", as, body, &issue)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return &issue
}

func (f *apiFixture) notifications(as *types.User) []*types.Notification {
	f.t.Helper()
	var list []*types.Notification
	resp := f.do("GET", "/api/notifications", as, nil, &list)
	require.Equal(f.t, http.StatusOK, resp.StatusCode)
	return list
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)

	var ok loginResponse
	resp := f.do("POST", "/api/auth/login", nil,
		map[string]string{"email": "member@example.com", "password": "hunter2"}, &ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, ok.Token)
	assert.Equal(t, f.member.ID, ok.User.ID)

	resp = f.do("POST", "/api/auth/login", nil,
		map[string]string{"email": "member@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do("POST", "/api/auth/login", nil,
		map[string]string{"email": "nobody@example.com", "password": "hunter2"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do("GET", "/api/projects", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest("GET", f.ts.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not.a.token")
	got, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, got.StatusCode)
}

func TestCreateAndFetchIssue(t *testing.T) {
	f := newAPIFixture(t)

	issue := f.createIssue(f.member, map[string]interface{}{"title": "Ship the thing"})
	assert.Equal(t, "FLOW-1", issue.Key)
	assert.Equal(t, types.StatusToDo, issue.Status)
	assert.Equal(t, f.member.ID, issue.ReporterID)

	var got types.Issue
	resp := f.do("GET", "/api/issues/"+issue.ID, f.member, nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, issue.Key, got.Key)
	require.NotNil(t, got.Reporter)
	assert.Equal(t, f.member.ID, got.Reporter.ID)

	resp = f.do("GET", "/api/issues/"+uuid.NewString(), f.member, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateIssueValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do("POST", "/api/issues", f.member,
		map[string]interface{}{"projectId": f.project.ID, "title": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do("POST", "/api/issues", f.member,
		map[string]interface{}{"title": "no project"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeletedKeyNotReused(t *testing.T) {
	f := newAPIFixture(t)

	f.createIssue(f.member, map[string]interface{}{"title": "first"})
	second := f.createIssue(f.member, map[string]interface{}{"title": "second"})
	require.Equal(t, "FLOW-2", second.Key)

	resp := f.do("DELETE", "/api/issues/"+second.ID, f.admin, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	third := f.createIssue(f.member, map[string]interface{}{"title": "third"})
	assert.Equal(t, "FLOW-3", third.Key)
}

func TestDeleteIssueAdminOnly(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{"title": "keep me"})

	resp := f.do("DELETE", "/api/issues/"+issue.ID, f.member, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do("GET", "/api/issues/"+issue.ID, f.member, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{"title": "work"})

	var got types.Issue
	resp := f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.member,
		map[string]string{"status": "in progress"}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.StatusInProgress, got.Status)

	resp = f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.member,
		map[string]string{"status": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.member,
		map[string]string{"status": "Shipped"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestReviewApprovalFlow exercises the full review loop over HTTP: the
// assignee submits for review, a project manager approves, and only the
// assignee is notified of the approval.
func TestReviewApprovalFlow(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{
		"title":      "review me",
		"assigneeId": f.dev.ID,
	})

	resp := f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.dev,
		map[string]string{"status": "In Review"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Admin and PM each got the submission notice.
	for _, reviewer := range []*types.User{f.admin, f.pm} {
		list := f.notifications(reviewer)
		require.Len(t, list, 1)
		assert.Equal(t, types.NotifyTaskSubmitted, list[0].Type)
	}

	// The assignee may not decide their own review.
	resp = f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.dev,
		map[string]string{"status": "Done"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do("PATCH", "/api/issues/"+issue.ID+"/status", f.pm,
		map[string]string{"status": "Done"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	devList := f.notifications(f.dev)
	var approvals int
	for _, n := range devList {
		if n.Type == types.NotifyTaskApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)

	// The approving PM notified no one else about the approval.
	pmList := f.notifications(f.pm)
	require.Len(t, pmList, 1)
	assert.Equal(t, types.NotifyTaskSubmitted, pmList[0].Type)
}

func TestUpdateIssueClearsAssigneeWithNull(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{
		"title":      "tri-state",
		"assigneeId": f.dev.ID,
	})

	// A PUT without assigneeId leaves the assignment alone.
	var got types.Issue
	resp := f.do("PUT", "/api/issues/"+issue.ID, f.member,
		map[string]interface{}{"title": "tri-state renamed"}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, f.dev.ID, *got.AssigneeID)

	// An explicit null clears it.
	resp = f.do("PUT", "/api/issues/"+issue.ID, f.member,
		map[string]interface{}{"assigneeId": nil}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, got.AssigneeID)
}

func TestCommentOwnership(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{"title": "discuss"})

	var comment types.Comment
	resp := f.do("POST", "/api/issues/"+issue.ID+"/comments", f.dev,
		map[string]string{"content": "first draft"}, &comment)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Author edits; anyone else is rejected, admin included.
	var edited types.Comment
	resp = f.do("PUT", "/api/comments/"+comment.ID, f.dev,
		map[string]string{"content": "second draft"}, &edited)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "second draft", edited.Content)

	resp = f.do("PUT", "/api/comments/"+comment.ID, f.admin,
		map[string]string{"content": "hijacked"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Deletion allows author or admin.
	resp = f.do("DELETE", "/api/comments/"+comment.ID, f.member, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do("DELETE", "/api/comments/"+comment.ID, f.admin, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCommentNotifiesParticipants(t *testing.T) {
	f := newAPIFixture(t)
	issue := f.createIssue(f.member, map[string]interface{}{
		"title":      "busy thread",
		"assigneeId": f.dev.ID,
	})

	resp := f.do("POST", "/api/issues/"+issue.ID+"/comments", f.pm,
		map[string]string{"content": "thoughts?"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, participant := range []*types.User{f.member, f.dev} {
		list := f.notifications(participant)
		var comments int
		for _, n := range list {
			if n.Type == types.NotifyCommentAdded {
				comments++
			}
		}
		assert.Equal(t, 1, comments)
	}
	assert.Empty(t, f.notifications(f.pm))
}

func TestDuplicateProjectCodeConflicts(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do("POST", "/api/projects", f.admin,
		map[string]string{"name": "Duplicate", "code": "FLOW"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do("POST", "/api/projects", f.member,
		map[string]string{"name": "Side Project", "code": "SIDE"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSprintLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do("POST", "/api/projects/"+f.project.ID+"/sprints", f.member,
		map[string]string{"name": "Sprint 1"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var sprint types.Sprint
	resp = f.do("POST", "/api/projects/"+f.project.ID+"/sprints", f.admin,
		map[string]string{"name": "Sprint 1", "goal": "ship"}, &sprint)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, types.SprintPlanned, sprint.Status)

	var started types.Sprint
	resp = f.do("POST", "/api/sprints/"+sprint.ID+"/start", f.admin, nil, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.SprintActive, started.Status)

	// An unfinished issue in the sprint drops back to the backlog on
	// completion.
	issue := f.createIssue(f.member, map[string]interface{}{
		"title":    "unfinished",
		"sprintId": sprint.ID,
	})

	var completed types.Sprint
	resp = f.do("POST", "/api/sprints/"+sprint.ID+"/complete", f.admin, nil, &completed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.SprintCompleted, completed.Status)

	var got types.Issue
	resp = f.do("GET", "/api/issues/"+issue.ID, f.member, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, got.SprintID)
}

func TestNotificationScoping(t *testing.T) {
	f := newAPIFixture(t)
	f.createIssue(f.member, map[string]interface{}{
		"title":      "for dev",
		"assigneeId": f.dev.ID,
	})

	list := f.notifications(f.dev)
	require.Len(t, list, 1)

	// Another user cannot read or mutate the dev's notification.
	resp := f.do("PATCH", "/api/notifications/"+list[0].ID+"/read", f.member, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do("DELETE", "/api/notifications/"+list[0].ID, f.member, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var count map[string]int
	resp = f.do("GET", "/api/notifications/unread-count", f.dev, nil, &count)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, count["count"])

	resp = f.do("PATCH", "/api/notifications/"+list[0].ID+"/read", f.dev, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do("GET", "/api/notifications/unread-count", f.dev, nil, &count)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, count["count"])
}

func TestIssueLinks(t *testing.T) {
	f := newAPIFixture(t)
	a := f.createIssue(f.member, map[string]interface{}{"title": "a"})
	b := f.createIssue(f.member, map[string]interface{}{"title": "b"})

	var got types.Issue
	resp := f.do("POST", "/api/issues/"+a.ID+"/links", f.member,
		map[string]string{"linkedIssueId": b.ID}, &got)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{b.ID}, got.LinkedIssues)

	// Links are one-directional.
	resp = f.do("GET", "/api/issues/"+b.ID, f.member, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, got.LinkedIssues)

	resp = f.do("POST", "/api/issues/"+a.ID+"/links", f.member,
		map[string]string{"linkedIssueId": a.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do("DELETE", "/api/issues/"+a.ID+"/links/"+b.ID, f.member, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminSurface(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/admin/settings", "/api/admin/activity"} {
		resp := f.do("GET", path, f.member, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	var settings map[string]string
	resp := f.do("PUT", "/api/admin/settings", f.admin,
		map[string]string{"workspace_name": "FlowSync HQ"}, &settings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FlowSync HQ", settings["workspace_name"])

	var created types.User
	resp = f.do("POST", "/api/users", f.admin, map[string]string{
		"email": "new@example.com", "password": "s3cret", "displayName": "New",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, types.RoleMember, created.Role)

	resp = f.do("POST", "/api/users", f.member, map[string]string{
		"email": "sneaky@example.com", "password": "x",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Deactivation locks the account out even with a valid token.
	var updated types.User
	resp = f.do("PATCH", "/api/users/"+f.dev.ID, f.admin,
		map[string]interface{}{"active": false}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, updated.Active)

	resp = f.do("GET", "/api/me", f.dev, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var entries []*types.ActivityEntry
	resp = f.do("GET", "/api/admin/activity", f.admin, nil, &entries)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, entries)
}

func TestMalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest("POST", f.ts.URL+"/api/issues", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", f.tokens[f.member.ID]))
	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
