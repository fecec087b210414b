package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"todo", StatusToDo},
		{"TODO", StatusToDo},
		{"To Do", StatusToDo},
		{"in progress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{"IN REVIEW", StatusInReview},
		{"done", StatusDone},
		{"Done", StatusDone},
		{"  done  ", StatusDone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeStatusUnknownPassesThrough(t *testing.T) {
	assert.Equal(t, Status("Blocked"), NormalizeStatus("Blocked"))
	assert.Equal(t, Status(""), NormalizeStatus(""))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"todo", "To Do", "IN PROGRESS", "done", "garbage", ""}
	for _, in := range inputs {
		once := NormalizeStatus(in)
		assert.Equal(t, once, NormalizeStatus(string(once)), "input %q", in)
	}
	for _, in := range []string{"highest", "Medium", "LOWEST", "weird"} {
		once := NormalizePriority(in)
		assert.Equal(t, once, NormalizePriority(string(once)), "input %q", in)
	}
	for _, in := range []string{"bug", "Story", "EPIC", "chore"} {
		once := NormalizeType(in)
		assert.Equal(t, once, NormalizeType(string(once)), "input %q", in)
	}
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityHighest, NormalizePriority("highest"))
	assert.Equal(t, PriorityMedium, NormalizePriority("MEDIUM"))
	assert.Equal(t, PriorityLow, NormalizePriority("Low"))
	assert.Equal(t, Priority("P1"), NormalizePriority("P1"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeBug, NormalizeType("bug"))
	assert.Equal(t, TypeStory, NormalizeType("STORY"))
	assert.Equal(t, TypeEpic, NormalizeType("Epic"))
	assert.Equal(t, IssueType("Spike"), NormalizeType("Spike"))
}
