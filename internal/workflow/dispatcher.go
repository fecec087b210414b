// Package workflow applies issue field and status changes and fans out the
// resulting notifications.
//
// The dispatcher is the only writer of issue mutations: it normalizes
// incoming values, loads the prior state, gates review decisions through the
// policy evaluator, persists the change, and then emits notifications.
// Notification writes are best-effort: each failure is logged and counted
// but never fails or rolls back the primary mutation.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowsync/flowsync/internal/keygen"
	"github.com/flowsync/flowsync/internal/policy"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/telemetry"
	"github.com/flowsync/flowsync/internal/types"
)

// Dispatcher coordinates issue mutations and their notification side
// effects.
type Dispatcher struct {
	store   storage.Storage
	keys    *keygen.Generator
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// New creates a Dispatcher. metrics may be nil.
func New(store storage.Storage, keys *keygen.Generator, log zerolog.Logger, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{store: store, keys: keys, log: log, metrics: metrics}
}

// CreateInput carries the fields accepted when creating an issue.
type CreateInput struct {
	ProjectID   string  `json:"projectId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	Type        string  `json:"type"`
	AssigneeID  *string `json:"assigneeId"`
	SprintID    *string `json:"sprintId"`
	StoryPoints *int    `json:"storyPoints"`
}

// UpdateInput carries the fields accepted when updating an issue. Nil
// pointers mean "leave unchanged"; the Clear flags distinguish "set to
// null" from "absent" for the nullable references.
type UpdateInput struct {
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	Type          *string
	AssigneeID    *string
	ClearAssignee bool
	SprintID      *string
	ClearSprint   bool
	StoryPoints   *int
}

// CreateIssue assigns the next project key and persists a new issue. The
// actor becomes the reporter. An assignee set at creation time is notified
// unless it is the actor.
func (d *Dispatcher) CreateIssue(ctx context.Context, in CreateInput, actor *types.User) (*types.Issue, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", storage.ErrInvalidInput)
	}
	if in.ProjectID == "" {
		return nil, fmt.Errorf("projectId is required: %w", storage.ErrInvalidInput)
	}

	issue := &types.Issue{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      types.StatusToDo,
		Priority:    types.PriorityMedium,
		Type:        types.TypeTask,
		AssigneeID:  in.AssigneeID,
		ReporterID:  actor.ID,
		SprintID:    in.SprintID,
		StoryPoints: in.StoryPoints,
	}
	if in.Status != "" {
		issue.Status = types.NormalizeStatus(in.Status)
	}
	if in.Priority != "" {
		issue.Priority = types.NormalizePriority(in.Priority)
	}
	if in.Type != "" {
		issue.Type = types.NormalizeType(in.Type)
	}

	err := d.keys.Assign(ctx, in.ProjectID, func(key string) error {
		issue.Key = key
		return d.store.CreateIssue(ctx, issue)
	})
	if err != nil {
		return nil, err
	}
	d.metrics.IssueCreated(ctx)

	if issue.AssigneeID != nil && *issue.AssigneeID != actor.ID {
		d.notify(ctx, &types.Notification{
			UserID:  *issue.AssigneeID,
			Type:    types.NotifyTaskAssigned,
			Title:   "Task assigned",
			Message: fmt.Sprintf("%s assigned %s %q to you", actor.Label(), issue.Key, issue.Title),
			IssueID: &issue.ID,
		})
	}
	d.recordActivity(ctx, actor.ID, "issue.create", "issue", issue.ID, issue.Key)

	return d.store.GetIssue(ctx, issue.ID)
}

// ChangeStatus is the status-only mutation endpoint. An empty status is
// rejected before any state is touched.
func (d *Dispatcher) ChangeStatus(ctx context.Context, issueID, status string, actor *types.User) (*types.Issue, error) {
	if strings.TrimSpace(status) == "" {
		return nil, fmt.Errorf("status is required: %w", storage.ErrInvalidInput)
	}
	return d.UpdateIssue(ctx, issueID, UpdateInput{Status: &status}, actor)
}

// UpdateIssue persists the provided field changes and emits the transition
// notification fan-out. The prior state is loaded before writing so the
// transition rules compare against what the actor saw.
func (d *Dispatcher) UpdateIssue(ctx context.Context, issueID string, in UpdateInput, actor *types.User) (*types.Issue, error) {
	before, err := d.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	var newStatus types.Status
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("title cannot be empty: %w", storage.ErrInvalidInput)
		}
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		newStatus = types.NormalizeStatus(*in.Status)
		if !newStatus.IsValid() {
			return nil, fmt.Errorf("invalid status %q: %w", *in.Status, storage.ErrInvalidInput)
		}
		updates["status"] = string(newStatus)
	}
	if in.Priority != nil {
		p := types.NormalizePriority(*in.Priority)
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid priority %q: %w", *in.Priority, storage.ErrInvalidInput)
		}
		updates["priority"] = string(p)
	}
	if in.Type != nil {
		tp := types.NormalizeType(*in.Type)
		if !tp.IsValid() {
			return nil, fmt.Errorf("invalid type %q: %w", *in.Type, storage.ErrInvalidInput)
		}
		updates["issue_type"] = string(tp)
	}
	switch {
	case in.ClearAssignee:
		updates["assignee_id"] = nil
	case in.AssigneeID != nil:
		updates["assignee_id"] = *in.AssigneeID
	}
	switch {
	case in.ClearSprint:
		updates["sprint_id"] = nil
	case in.SprintID != nil:
		updates["sprint_id"] = *in.SprintID
	}
	if in.StoryPoints != nil {
		if *in.StoryPoints < 0 {
			return nil, fmt.Errorf("story points cannot be negative: %w", storage.ErrInvalidInput)
		}
		updates["story_points"] = *in.StoryPoints
	}
	if len(updates) == 0 {
		return before, nil
	}

	statusChanged := in.Status != nil && newStatus != before.Status

	// Moving an issue out of review is a review decision: only an admin, a
	// project manager, or the original reporter may approve or reject.
	if statusChanged && before.Status == types.StatusInReview {
		if err := policy.Check(policy.OpReviewDecide, policy.Request{
			Actor:      actor,
			ReporterID: before.ReporterID,
		}); err != nil {
			return nil, err
		}
	}

	if err := d.store.UpdateIssue(ctx, issueID, updates); err != nil {
		return nil, err
	}

	// Effective assignee after this update, for the status rules.
	assigneeID := before.AssigneeID
	if in.ClearAssignee {
		assigneeID = nil
	} else if in.AssigneeID != nil {
		assigneeID = in.AssigneeID
	}

	if statusChanged {
		d.fanOutStatusChange(ctx, before, newStatus, assigneeID, actor)
	}

	assigneeChanged := in.AssigneeID != nil && !in.ClearAssignee &&
		(before.AssigneeID == nil || *before.AssigneeID != *in.AssigneeID)
	if assigneeChanged && *in.AssigneeID != actor.ID {
		d.notify(ctx, &types.Notification{
			UserID:  *in.AssigneeID,
			Type:    types.NotifyTaskAssigned,
			Title:   "Task assigned",
			Message: fmt.Sprintf("%s assigned %s %q to you", actor.Label(), before.Key, before.Title),
			IssueID: &before.ID,
		})
	}

	d.recordActivity(ctx, actor.ID, "issue.update", "issue", before.ID, before.Key)

	return d.store.GetIssue(ctx, issueID)
}

// fanOutStatusChange applies the transition notification rules. Rules are
// evaluated independently; no-op transitions never reach this point.
func (d *Dispatcher) fanOutStatusChange(ctx context.Context, before *types.Issue, newStatus types.Status, assigneeID *string, actor *types.User) {
	switch {
	case newStatus == types.StatusInReview:
		reviewers, err := d.store.ListActiveUsersByRole(ctx, types.RoleAdmin, types.RoleProjectManager)
		if err != nil {
			d.log.Warn().Err(err).Str("issue", before.ID).
				Msg("failed to resolve reviewers for submission fan-out")
			return
		}
		for _, r := range reviewers {
			if r.ID == actor.ID {
				continue
			}
			d.notify(ctx, &types.Notification{
				UserID:  r.ID,
				Type:    types.NotifyTaskSubmitted,
				Title:   "Task submitted for review",
				Message: fmt.Sprintf("%s submitted %s %q for review", actor.Label(), before.Key, before.Title),
				IssueID: &before.ID,
			})
		}

	case newStatus == types.StatusDone:
		if assigneeID != nil && *assigneeID != actor.ID {
			d.notify(ctx, &types.Notification{
				UserID:  *assigneeID,
				Type:    types.NotifyTaskApproved,
				Title:   "Task approved",
				Message: fmt.Sprintf("%s approved %s %q", actor.Label(), before.Key, before.Title),
				IssueID: &before.ID,
			})
		}

	case before.Status == types.StatusInReview:
		// Out of review to anything but Done: changes requested.
		if assigneeID != nil && *assigneeID != actor.ID {
			d.notify(ctx, &types.Notification{
				UserID: *assigneeID,
				Type:   types.NotifyTaskRejected,
				Title:  "Changes requested",
				Message: fmt.Sprintf("%s requested changes on %s %q (moved to %s)",
					actor.Label(), before.Key, before.Title, newStatus),
				IssueID: &before.ID,
			})
		}
	}
}

// AddComment attaches a comment and notifies the issue's assignee and
// reporter, excluding the author.
func (d *Dispatcher) AddComment(ctx context.Context, issueID, content string, actor *types.User) (*types.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required: %w", storage.ErrInvalidInput)
	}
	issue, err := d.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	comment := &types.Comment{
		ID:       uuid.NewString(),
		IssueID:  issueID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := d.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	recipients := make(map[string]bool)
	if issue.AssigneeID != nil {
		recipients[*issue.AssigneeID] = true
	}
	recipients[issue.ReporterID] = true
	delete(recipients, actor.ID)
	for userID := range recipients {
		d.notify(ctx, &types.Notification{
			UserID:  userID,
			Type:    types.NotifyCommentAdded,
			Title:   "New comment",
			Message: fmt.Sprintf("%s commented on %s %q", actor.Label(), issue.Key, issue.Title),
			IssueID: &issue.ID,
		})
	}
	d.recordActivity(ctx, actor.ID, "comment.create", "comment", comment.ID, issue.Key)

	comment.Author = actor.Summary()
	return comment, nil
}

// notify writes one notification record. Failures are swallowed: logged,
// counted, and never propagated, so the primary mutation stands.
func (d *Dispatcher) notify(ctx context.Context, n *types.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := d.store.AddNotification(ctx, n); err != nil {
		d.metrics.NotificationFailed(ctx, string(n.Type))
		d.log.Warn().Err(err).
			Str("recipient", n.UserID).
			Str("type", string(n.Type)).
			Msg("notification write failed")
		return
	}
	d.metrics.NotificationDispatched(ctx, string(n.Type))
}

// recordActivity appends an audit entry. Best-effort, same as notify.
func (d *Dispatcher) recordActivity(ctx context.Context, actorID, action, entityType, entityID, detail string) {
	err := d.store.AppendActivity(ctx, &types.ActivityEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		d.log.Warn().Err(err).Str("action", action).Msg("activity write failed")
	}
}
