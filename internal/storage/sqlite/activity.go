package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/flowsync/flowsync/internal/types"
)

// AppendActivity records an audit-log entry.
func (s *Store) AppendActivity(ctx context.Context, e *types.ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get activity entry id: %w", err)
	}
	return nil
}

// ListActivity returns the most recent audit-log entries, newest first.
func (s *Store) ListActivity(ctx context.Context, limit int) ([]*types.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM activity_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.ActivityEntry
	for rows.Next() {
		e := &types.ActivityEntry{}
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType,
			&e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity log: %w", err)
	}
	return entries, nil
}
