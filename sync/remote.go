// ABOUTME: Collaborator interfaces the sync engine depends on
// ABOUTME: Remote row store, session provider, clock, and lead/row conversions
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coldflow/coldflow/models"
)

// LeadRow is the wire shape of a lead in the remote row store. Payload holds
// the lead with id/updatedAt/deletedAt/_needsSync stripped out.
type LeadRow struct {
	ID        string          `json:"id"`
	UpdatedAt int64           `json:"updated_at"`
	DeletedAt *int64          `json:"deleted_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Remote is the row-store collaborator the engine drains mutations to and
// pulls reconciliation deltas from. Every call may fail with an error whose
// status classifies it (authorization vs transient).
type Remote interface {
	// SelectLeads returns rows ordered by updated_at ascending. When full is
	// false only rows with updated_at strictly greater than sinceMillis are
	// returned.
	SelectLeads(ctx context.Context, sinceMillis int64, full bool) ([]LeadRow, error)
	// UpsertLead writes a row keyed by id. Idempotent: replaying the same row
	// yields the same remote state.
	UpsertLead(ctx context.Context, row LeadRow) error
	// TombstoneLead marks a row deleted by updating its timestamps in place.
	TombstoneLead(ctx context.Context, id string, updatedAt, deletedAt int64) error
	// MergeLeads atomically applies a merged payload to the primary row and
	// deletes the duplicates server-side.
	MergeLeads(ctx context.Context, primaryID string, payload json.RawMessage, duplicateIDs []string) error
	// InsertEvent appends one analytics event row.
	InsertEvent(ctx context.Context, event models.LeadEvent) error
}

// Session is an authenticated identity from the session collaborator.
type Session struct {
	Email string
}

// SessionProvider exposes the current session, or nil when signed out.
type SessionProvider interface {
	Session(ctx context.Context) (*Session, error)
}

// Clock abstracts time so tests can pin the sync schedule.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// statusCoder is implemented by remote errors that carry an HTTP-like status.
type statusCoder interface {
	StatusCode() int
}

// IsAuthError reports whether err is a 401/403-equivalent authorization
// failure, the one error class that trips the circuit breaker.
func IsAuthError(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == 401 || code == 403
	}
	return false
}

// metaKeys are the lead fields lifted into row columns and stripped from the
// remote payload.
var metaKeys = []string{"id", "updatedAt", "deletedAt", "_needsSync"}

// ToRow converts a lead to its remote row shape.
func ToRow(lead *models.Lead) (LeadRow, error) {
	data, err := json.Marshal(lead)
	if err != nil {
		return LeadRow{}, fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return LeadRow{}, fmt.Errorf("failed to decode lead %s: %w", lead.ID, err)
	}
	for _, key := range metaKeys {
		delete(fields, key)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return LeadRow{}, fmt.Errorf("failed to marshal payload for %s: %w", lead.ID, err)
	}

	row := LeadRow{
		ID:        lead.ID,
		UpdatedAt: lead.UpdatedAt,
		Payload:   payload,
	}
	if lead.DeletedAt != nil {
		v := *lead.DeletedAt
		row.DeletedAt = &v
	}
	return row, nil
}

// FromRow converts a remote row back into a lead. The row columns are
// authoritative for id and timestamps; a remote row never carries a local
// dirty flag.
func FromRow(row LeadRow) (models.Lead, error) {
	var lead models.Lead
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &lead); err != nil {
			return models.Lead{}, fmt.Errorf("failed to unmarshal payload for %s: %w", row.ID, err)
		}
	}
	lead.ID = row.ID
	lead.UpdatedAt = row.UpdatedAt
	if row.DeletedAt != nil {
		v := *row.DeletedAt
		lead.DeletedAt = &v
	} else {
		lead.DeletedAt = nil
	}
	lead.NeedsSync = false
	return lead, nil
}
