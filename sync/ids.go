// ABOUTME: Client-side id generation for leads and queue tasks
// ABOUTME: Lead ids embed a ULID so creation time can be recovered from the id
package sync

import (
	"crypto/rand"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const leadIDPrefix = "lead_"

// One shared monotonic entropy source: ids minted within the same
// millisecond stay distinct and strictly increasing.
var (
	entropyMu stdsync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewLeadID generates a permanent client id for a locally created lead.
// The ULID encodes the creation timestamp plus random entropy, so ids are
// globally unique without coordination and sort by creation time.
func NewLeadID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return leadIDPrefix + ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// LeadCreationTime recovers the creation timestamp embedded in a lead id.
// Returns false for ids minted elsewhere (imports, other clients).
func LeadCreationTime(id string) (time.Time, bool) {
	if !strings.HasPrefix(id, leadIDPrefix) {
		return time.Time{}, false
	}
	parsed, err := ulid.ParseStrict(strings.TrimPrefix(id, leadIDPrefix))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

// NewTaskID generates a unique id for a queue task or event.
func NewTaskID() string {
	return uuid.NewString()
}
