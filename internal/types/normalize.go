package types

import "strings"

// Canonicalization tables for free-text field values. Keys are lowercase;
// values are the canonical enum labels. Unknown inputs pass through unchanged
// rather than erroring, so callers can rely on Validate for rejection.

var statusAliases = map[string]Status{
	"todo":        StatusToDo,
	"to do":       StatusToDo,
	"in progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"in review":   StatusInReview,
	"inreview":    StatusInReview,
	"done":        StatusDone,
}

var priorityAliases = map[string]Priority{
	"highest": PriorityHighest,
	"high":    PriorityHigh,
	"medium":  PriorityMedium,
	"low":     PriorityLow,
	"lowest":  PriorityLowest,
}

var typeAliases = map[string]IssueType{
	"story": TypeStory,
	"task":  TypeTask,
	"bug":   TypeBug,
	"epic":  TypeEpic,
}

// NormalizeStatus maps a loosely-cased status value to its canonical label.
// Unrecognized values are returned unchanged.
func NormalizeStatus(raw string) Status {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return Status(raw)
}

// NormalizePriority maps a loosely-cased priority value to its canonical label.
// Unrecognized values are returned unchanged.
func NormalizePriority(raw string) Priority {
	if p, ok := priorityAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p
	}
	return Priority(raw)
}

// NormalizeType maps a loosely-cased issue type to its canonical label.
// Unrecognized values are returned unchanged.
func NormalizeType(raw string) IssueType {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return IssueType(raw)
}
