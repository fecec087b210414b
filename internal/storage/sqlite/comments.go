package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/types"
)

// AddComment attaches a comment to an issue.
func (s *Store) AddComment(ctx context.Context, c *types.Comment) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, c.IssueID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check issue existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("issue %s: %w", c.IssueID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_id, author_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.IssueID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// GetComment fetches a comment by id.
func (s *Store) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	c := &types.Comment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, issue_id, author_id, content, created_at, updated_at
		FROM comments WHERE id = ?
	`, id).Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment: %w", err)
	}
	return c, nil
}

// UpdateComment replaces a comment's content and bumps updated_at.
// Ownership is enforced by the policy layer, not here.
func (s *Store) UpdateComment(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ListComments returns all comments for an issue in creation order, with
// author summaries resolved.
func (s *Store) ListComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.issue_id, c.author_id, c.content, c.created_at, c.updated_at,
			u.id, u.display_name, u.email
		FROM comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.issue_id = ?
		ORDER BY c.created_at ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*types.Comment
	for rows.Next() {
		c := &types.Comment{}
		var uid, uname, uemail sql.NullString
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Content,
			&c.CreatedAt, &c.UpdatedAt, &uid, &uname, &uemail); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if uid.Valid {
			c.Author = &types.UserSummary{ID: uid.String, DisplayName: uname.String, Email: uemail.String}
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}
