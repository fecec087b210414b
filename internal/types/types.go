// Package types defines core data structures for the FlowSync issue tracker.
package types

import (
	"fmt"
	"time"
)

// Role is a user's workspace-wide role.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
	RoleViewer         Role = "viewer"
)

// IsValid checks if the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// User is an actor in the workspace.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Label returns the name to show for this user in notification messages:
// display name, falling back to email, then "Someone".
func (u *User) Label() string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "Someone"
}

// UserSummary is the embedded representation of a user on issue responses.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Summary returns the compact representation used on issue payloads.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

// Project groups issues under a short key prefix (e.g. "FLOW").
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Status is an issue's workflow state.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusInReview   Status = "In Review"
	StatusDone       Status = "Done"
)

// IsValid checks if the status is one of the four canonical values.
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Priority is an issue's urgency level.
type Priority string

const (
	PriorityHighest Priority = "Highest"
	PriorityHigh    Priority = "High"
	PriorityMedium  Priority = "Medium"
	PriorityLow     Priority = "Low"
	PriorityLowest  Priority = "Lowest"
)

// IsValid checks if the priority is one of the known values.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHighest, PriorityHigh, PriorityMedium, PriorityLow, PriorityLowest:
		return true
	}
	return false
}

// IssueType classifies an issue.
type IssueType string

const (
	TypeStory IssueType = "Story"
	TypeTask  IssueType = "Task"
	TypeBug   IssueType = "Bug"
	TypeEpic  IssueType = "Epic"
)

// IsValid checks if the issue type is one of the known values.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeStory, TypeTask, TypeBug, TypeEpic:
		return true
	}
	return false
}

// Issue represents a trackable unit of work.
type Issue struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Type        IssueType `json:"type"`
	AssigneeID  *string   `json:"assigneeId,omitempty"`
	ReporterID  string    `json:"reporterId"`
	SprintID    *string   `json:"sprintId,omitempty"`
	StoryPoints *int      `json:"storyPoints,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Resolved on fetch, not stored on the issues row.
	Assignee     *UserSummary `json:"assignee,omitempty"`
	Reporter     *UserSummary `json:"reporter,omitempty"`
	Comments     []*Comment   `json:"comments,omitempty"`
	LinkedIssues []string     `json:"linkedIssues,omitempty"`
}

// Validate checks that the issue has valid field values.
func (i *Issue) Validate() error {
	if i.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(i.Title))
	}
	if i.ReporterID == "" {
		return fmt.Errorf("reporter is required")
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", i.Status)
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", i.Priority)
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("invalid issue type: %s", i.Type)
	}
	if i.StoryPoints != nil && *i.StoryPoints < 0 {
		return fmt.Errorf("story points cannot be negative")
	}
	return nil
}

// SprintStatus is a sprint's lifecycle state.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// Sprint is a time-boxed container of issues.
// At most one sprint per project is active at a time.
type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal,omitempty"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"startDate,omitempty"`
	EndDate   *time.Time   `json:"endDate,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Comment is a user-authored note attached to an issue.
type Comment struct {
	ID        string       `json:"id"`
	IssueID   string       `json:"issueId"`
	AuthorID  string       `json:"authorId"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Author    *UserSummary `json:"author,omitempty"`
}

// NotificationType identifies what kind of event a notification reports.
type NotificationType string

const (
	NotifyTaskAssigned        NotificationType = "task_assigned"
	NotifyTaskSubmitted       NotificationType = "task_submitted"
	NotifyTaskApproved        NotificationType = "task_approved"
	NotifyTaskRejected        NotificationType = "task_rejected"
	NotifyCommentAdded        NotificationType = "comment_added"
	NotifyMentioned           NotificationType = "mentioned"
	NotifyDeadlineApproaching NotificationType = "deadline_approaching"
	NotifyDeadlinePassed      NotificationType = "deadline_passed"
)

// Notification is an async side-effect record for a target user.
// Creation is best-effort: failures never abort the originating mutation.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IssueID   *string          `json:"issueId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IssueLink is a one-directional relation between two issues.
// Links are not auto-mirrored; each direction is stored independently.
type IssueLink struct {
	IssueID       string    `json:"issueId"`
	LinkedIssueID string    `json:"linkedIssueId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ActivityEntry is an audit-log record of a mutation.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
