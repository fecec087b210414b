// Package keygen assigns sequential human-readable issue keys.
//
// Keys have the form <projectCode>-<n> with a numeric, monotonically
// increasing suffix per project. Deleted numbers are never reused because
// the next suffix is computed from the maximum existing suffix, not the
// row count.
package keygen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/flowsync/flowsync/internal/storage"
)

// Generator computes the next issue key for a project.
//
// The read-max-then-insert sequence is not atomic at the database level, so
// Assign serializes it behind a per-project mutex: concurrent creations in
// the same project within one process cannot observe the same maximum.
type Generator struct {
	store storage.Storage

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Generator backed by store.
func New(store storage.Storage) *Generator {
	return &Generator{store: store, locks: make(map[string]*sync.Mutex)}
}

func (g *Generator) projectLock(projectID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[projectID] = l
	}
	return l
}

// Assign computes the next key for projectID and invokes create with it,
// holding the project's key lock across both steps so the key cannot be
// claimed by a concurrent creation. create should persist the issue.
func (g *Generator) Assign(ctx context.Context, projectID string, create func(key string) error) error {
	l := g.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	key, err := g.nextKey(ctx, projectID)
	if err != nil {
		return err
	}
	return create(key)
}

// nextKey derives <code>-<max+1> from the project's existing keys, or
// <code>-1 when the project has no issues yet.
func (g *Generator) nextKey(ctx context.Context, projectID string) (string, error) {
	project, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("failed to load project for key generation: %w", err)
	}

	keys, err := g.store.ListIssueKeys(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("failed to list issue keys: %w", err)
	}

	max := 0
	prefix := project.Code + "-"
	for _, k := range keys {
		suffix, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		// Numeric comparison: "10" sorts after "9".
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%d", prefix, max+1), nil
}
