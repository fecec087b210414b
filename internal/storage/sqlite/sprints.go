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

// CreateSprint inserts a new sprint in planned status.
func (s *Store) CreateSprint(ctx context.Context, sp *types.Sprint) error {
	if sp.Status == "" {
		sp.Status = types.SprintPlanned
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (id, project_id, name, goal, status, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sp.ID, sp.ProjectID, sp.Name, sp.Goal, string(sp.Status), sp.StartDate, sp.EndDate, sp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sprint: %w", err)
	}
	return nil
}

const sprintColumns = `id, project_id, name, goal, status, start_date, end_date, created_at`

func scanSprint(row interface{ Scan(...interface{}) error }) (*types.Sprint, error) {
	sp := &types.Sprint{}
	var status string
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Goal, &status,
		&sp.StartDate, &sp.EndDate, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	sp.Status = types.SprintStatus(status)
	return sp, nil
}

// GetSprint fetches a sprint by id.
func (s *Store) GetSprint(ctx context.Context, id string) (*types.Sprint, error) {
	sp, err := scanSprint(s.db.QueryRowContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sprint %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sprint: %w", err)
	}
	return sp, nil
}

// ListSprints returns all sprints in a project, oldest first.
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]*types.Sprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*types.Sprint
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sprints: %w", err)
	}
	return sprints, nil
}

// StartSprint moves a sprint to active. Any other active sprint in the same
// project is demoted back to planned in the same transaction, preserving the
// at-most-one-active invariant.
func (s *Store) StartSprint(ctx context.Context, id string) (*types.Sprint, error) {
	sp, err := s.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sprints SET status = 'planned', start_date = NULL
			WHERE project_id = ? AND status = 'active' AND id != ?
		`, sp.ProjectID, id); err != nil {
			return fmt.Errorf("failed to demote active sprint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sprints SET status = 'active', start_date = ? WHERE id = ?
		`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("failed to start sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSprint(ctx, id)
}

// CompleteSprint moves an active sprint to completed and detaches its
// unfinished issues back to the backlog. Done issues stay attached.
func (s *Store) CompleteSprint(ctx context.Context, id string) (*types.Sprint, error) {
	if _, err := s.GetSprint(ctx, id); err != nil {
		return nil, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE issues SET sprint_id = NULL, updated_at = ?
			WHERE sprint_id = ? AND status != ?
		`, time.Now().UTC(), id, string(types.StatusDone)); err != nil {
			return fmt.Errorf("failed to detach incomplete issues: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sprints SET status = 'completed', end_date = ? WHERE id = ?
		`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("failed to complete sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSprint(ctx, id)
}
