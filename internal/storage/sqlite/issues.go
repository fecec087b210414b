package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

// allowedIssueUpdateFields whitelists column names accepted by UpdateIssue.
// Field names are validated before query assembly.
var allowedIssueUpdateFields = map[string]bool{
	"title":        true,
	"description":  true,
	"status":       true,
	"priority":     true,
	"issue_type":   true,
	"assignee_id":  true,
	"sprint_id":    true,
	"story_points": true,
}

// CreateIssue inserts a new issue. The caller is responsible for key
// assignment (see the keygen package, which serializes per project).
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) error {
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("%s: %w", err, storage.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (id, project_id, key, title, description, status, priority,
			issue_type, assignee_id, reporter_id, sprint_id, story_points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, issue.ID, issue.ProjectID, issue.Key, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), string(issue.Type),
		issue.AssigneeID, issue.ReporterID, issue.SprintID, issue.StoryPoints,
		issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("issue key %s: %w", issue.Key, storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

const issueColumns = `id, project_id, key, title, description, status, priority,
	issue_type, assignee_id, reporter_id, sprint_id, story_points, created_at, updated_at`

func scanIssue(row interface{ Scan(...interface{}) error }) (*types.Issue, error) {
	i := &types.Issue{}
	var status, priority, issueType string
	err := row.Scan(&i.ID, &i.ProjectID, &i.Key, &i.Title, &i.Description,
		&status, &priority, &issueType, &i.AssigneeID, &i.ReporterID,
		&i.SprintID, &i.StoryPoints, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = types.Status(status)
	i.Priority = types.Priority(priority)
	i.Type = types.IssueType(issueType)
	return i, nil
}

// GetIssue fetches an issue by id with resolved assignee/reporter summaries,
// its comments, and linked-issue identifiers.
func (s *Store) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue: %w", err)
	}

	if issue.AssigneeID != nil {
		if u, err := s.GetUser(ctx, *issue.AssigneeID); err == nil {
			issue.Assignee = u.Summary()
		}
	}
	if u, err := s.GetUser(ctx, issue.ReporterID); err == nil {
		issue.Reporter = u.Summary()
	}

	issue.Comments, err = s.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT linked_issue_id FROM issue_links WHERE issue_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue links: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var linked string
		if err := rows.Scan(&linked); err != nil {
			return nil, fmt.Errorf("failed to scan issue link: %w", err)
		}
		issue.LinkedIssues = append(issue.LinkedIssues, linked)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue links: %w", err)
	}
	return issue, nil
}

// ListIssues returns issues matching the filter, newest first.
func (s *Store) ListIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	var conds []string
	var args []interface{}
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.SprintID != "" {
		conds = append(conds, "sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.Backlog {
		conds = append(conds, "sprint_id IS NULL")
	}
	if filter.AssigneeID != "" {
		conds = append(conds, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + issueColumns + ` FROM issues`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	return issues, nil
}

// ListIssueKeys returns every issue key in a project. Used by the key
// generator to compute the next numeric suffix.
func (s *Store) ListIssueKeys(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM issues WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan issue key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue keys: %w", err)
	}
	return keys, nil
}

// UpdateIssue applies a whitelisted set of column updates to an issue and
// bumps updated_at.
func (s *Store) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	for key, value := range updates {
		if !allowedIssueUpdateFields[key] {
			return fmt.Errorf("field %s: %w", key, storage.ErrInvalidInput)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(setClauses, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// DeleteIssue removes an issue. Comments and link rows cascade at the
// schema level; both link directions are cleared explicitly since only the
// outgoing direction is covered by the issue_id cascade on some databases.
func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM issue_links WHERE issue_id = ? OR linked_issue_id = ?`, id, id); err != nil {
			return fmt.Errorf("failed to delete issue links: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete issue: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check delete result: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// AddIssueLink inserts a one-directional link row. The reverse direction is
// not auto-mirrored.
func (s *Store) AddIssueLink(ctx context.Context, issueID, linkedID string) error {
	for _, id := range []string{issueID, linkedID} {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check issue: %w", err)
		}
		if !exists {
			return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO issue_links (issue_id, linked_issue_id, created_at)
		VALUES (?, ?, ?)
	`, issueID, linkedID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert issue link: %w", err)
	}
	return nil
}

// RemoveIssueLink removes a one-directional link row.
func (s *Store) RemoveIssueLink(ctx context.Context, issueID, linkedID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM issue_links WHERE issue_id = ? AND linked_issue_id = ?`, issueID, linkedID)
	if err != nil {
		return fmt.Errorf("failed to delete issue link: %w", err)
	}
	return nil
}
