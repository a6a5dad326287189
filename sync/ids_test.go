// ABOUTME: Tests for lead and task id generation
// ABOUTME: Covers the id prefix, embedded creation time, and parse failures
package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeadID(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	id := NewLeadID(now)

	assert.True(t, strings.HasPrefix(id, "lead_"))

	created, ok := LeadCreationTime(id)
	require.True(t, ok)
	// ULID timestamps have millisecond precision
	assert.WithinDuration(t, now, created, time.Millisecond)
}

func TestNewLeadIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewLeadID(now)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestLeadCreationTimeForeignID(t *testing.T) {
	// Ids minted by other clients don't carry a ULID
	_, ok := LeadCreationTime("lead_m8kz1abc123")
	assert.False(t, ok)

	_, ok = LeadCreationTime("")
	assert.False(t, ok)
}

func TestNewTaskID(t *testing.T) {
	a := NewTaskID()
	b := NewTaskID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
