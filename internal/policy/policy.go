// Package policy centralizes role and ownership checks for mutating
// operations. The rule table below is the single source of truth; handlers
// and the workflow dispatcher consult it instead of doing ad-hoc role
// checks per route.
package policy

import (
	"errors"
	"fmt"

	"github.com/flowsync/flowsync/internal/types"
)

// ErrDenied is returned by Check when the actor may not perform the
// operation.
var ErrDenied = errors.New("permission denied")

// Operation names a gated mutation or admin surface.
type Operation string

const (
	OpIssueCreate    Operation = "issue.create"
	OpIssueUpdate    Operation = "issue.update"
	OpIssueDelete    Operation = "issue.delete"
	OpProjectCreate  Operation = "project.create"
	OpSprintCreate   Operation = "sprint.create"
	OpSprintStart    Operation = "sprint.start"
	OpSprintComplete Operation = "sprint.complete"
	OpCommentCreate  Operation = "comment.create"
	OpCommentEdit    Operation = "comment.edit"
	OpCommentDelete  Operation = "comment.delete"
	OpReviewDecide   Operation = "review.decide"
	OpSettingsRead   Operation = "settings.read"
	OpSettingsWrite  Operation = "settings.write"
	OpUserAdmin      Operation = "user.admin"
	OpAuditRead      Operation = "audit.read"
	OpReportsRead    Operation = "reports.read"
)

// Request carries the actor and the ownership context a rule may need.
type Request struct {
	Actor *types.User
	// OwnerID is the owning user for ownership rules (comment author).
	OwnerID string
	// ReporterID is the issue reporter, for review decisions.
	ReporterID string
}

// Decision is the evaluator's verdict plus a human-readable reason.
type Decision struct {
	Allowed bool
	Reason  string
}

// rule describes who may perform an operation. An operation is allowed when
// the actor's role is in roles, or owner/reporter matching applies. A rule
// with anyActive set admits every active authenticated user.
type rule struct {
	roles     []types.Role
	owner     bool
	reporter  bool
	anyActive bool
}

var rules = map[Operation]rule{
	OpIssueCreate:    {anyActive: true},
	OpIssueUpdate:    {anyActive: true},
	OpIssueDelete:    {roles: []types.Role{types.RoleAdmin}},
	OpProjectCreate:  {roles: []types.Role{types.RoleAdmin}},
	OpSprintCreate:   {roles: []types.Role{types.RoleAdmin}},
	OpSprintStart:    {roles: []types.Role{types.RoleAdmin}},
	OpSprintComplete: {roles: []types.Role{types.RoleAdmin}},
	OpCommentCreate:  {anyActive: true},
	OpCommentEdit:    {owner: true},
	OpCommentDelete:  {roles: []types.Role{types.RoleAdmin}, owner: true},
	OpReviewDecide:   {roles: []types.Role{types.RoleAdmin, types.RoleProjectManager}, reporter: true},
	OpSettingsRead:   {roles: []types.Role{types.RoleAdmin}},
	OpSettingsWrite:  {roles: []types.Role{types.RoleAdmin}},
	OpUserAdmin:      {roles: []types.Role{types.RoleAdmin}},
	OpAuditRead:      {roles: []types.Role{types.RoleAdmin}},
	OpReportsRead:    {roles: []types.Role{types.RoleAdmin}},
}

// Evaluate applies the rule table to a request. Unknown operations are
// denied.
func Evaluate(op Operation, req Request) Decision {
	if req.Actor == nil || !req.Actor.Active {
		return Decision{Reason: "no active actor"}
	}
	r, ok := rules[op]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown operation %s", op)}
	}
	if r.anyActive {
		return Decision{Allowed: true}
	}
	for _, role := range r.roles {
		if req.Actor.Role == role {
			return Decision{Allowed: true}
		}
	}
	if r.owner && req.OwnerID != "" && req.Actor.ID == req.OwnerID {
		return Decision{Allowed: true}
	}
	if r.reporter && req.ReporterID != "" && req.Actor.ID == req.ReporterID {
		return Decision{Allowed: true}
	}
	return Decision{Reason: fmt.Sprintf("role %s may not perform %s", req.Actor.Role, op)}
}

// Check is Evaluate with an error return for call sites that just need to
// bail on denial.
func Check(op Operation, req Request) error {
	if d := Evaluate(op, req); !d.Allowed {
		return fmt.Errorf("%s: %w", d.Reason, ErrDenied)
	}
	return nil
}
