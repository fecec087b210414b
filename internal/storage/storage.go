// Package storage provides shared types for FlowSync persistence.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds the interface and sentinel errors referenced by both the
// implementation and its consumers (httpapi, workflow, keygen).
package storage

import (
	"context"
	"errors"

	"github.com/flowsync/flowsync/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated
// (e.g., duplicate project code or user email).
var ErrConflict = errors.New("conflict")

// ErrInvalidInput is returned when a field name or value fails validation
// before reaching the database.
var ErrInvalidInput = errors.New("invalid input")

// IssueFilter narrows ListIssues results. Zero-value fields are ignored.
type IssueFilter struct {
	ProjectID  string
	SprintID   string
	AssigneeID string
	Status     types.Status
	// Backlog selects issues with no sprint. Combine with ProjectID.
	Backlog bool
}

// Storage is the interface satisfied by *sqlite.Store.
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations (mocks, proxies) can be substituted.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, u *types.User) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	ListActiveUsersByRole(ctx context.Context, roles ...types.Role) ([]*types.User, error)
	UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error

	// Projects
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)

	// Issues
	CreateIssue(ctx context.Context, issue *types.Issue) error
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]*types.Issue, error)
	ListIssueKeys(ctx context.Context, projectID string) ([]string, error)
	UpdateIssue(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteIssue(ctx context.Context, id string) error

	// Issue links (one-directional rows, not auto-mirrored)
	AddIssueLink(ctx context.Context, issueID, linkedID string) error
	RemoveIssueLink(ctx context.Context, issueID, linkedID string) error

	// Sprints
	CreateSprint(ctx context.Context, s *types.Sprint) error
	GetSprint(ctx context.Context, id string) (*types.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]*types.Sprint, error)
	StartSprint(ctx context.Context, id string) (*types.Sprint, error)
	CompleteSprint(ctx context.Context, id string) (*types.Sprint, error)

	// Comments
	AddComment(ctx context.Context, c *types.Comment) error
	GetComment(ctx context.Context, id string) (*types.Comment, error)
	UpdateComment(ctx context.Context, id, content string) error
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, issueID string) ([]*types.Comment, error)

	// Notifications
	AddNotification(ctx context.Context, n *types.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*types.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id, userID string) error

	// Workspace settings
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Activity log
	AppendActivity(ctx context.Context, e *types.ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]*types.ActivityEntry, error)

	// Lifecycle
	Close() error
}
