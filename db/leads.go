// ABOUTME: Lead persistence operations for the local durable store
// ABOUTME: Handles snapshot loads, per-lead upserts, prunes, and dirty-flag updates
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coldflow/coldflow/models"
)

// LoadLeads reads the full local collection, soft-deleted rows included.
// Rows whose payload no longer parses are skipped rather than failing the
// whole load, so one corrupt row cannot take the app down.
func LoadLeads(db *sql.DB) ([]models.Lead, error) {
	rows, err := db.Query(`
		SELECT id, updated_at, deleted_at, needs_sync, payload
		FROM leads
		ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []models.Lead
	for rows.Next() {
		var (
			id        string
			updatedAt int64
			deletedAt sql.NullInt64
			needsSync bool
			payload   string
		)
		if err := rows.Scan(&id, &updatedAt, &deletedAt, &needsSync, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		var lead models.Lead
		if err := json.Unmarshal([]byte(payload), &lead); err != nil {
			slog.Warn("skipping corrupt lead row", "id", id, "error", err)
			continue
		}
		lead.ID = id
		lead.UpdatedAt = updatedAt
		if deletedAt.Valid {
			v := deletedAt.Int64
			lead.DeletedAt = &v
		} else {
			lead.DeletedAt = nil
		}
		lead.NeedsSync = needsSync
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

// UpsertLead writes one lead to the local store, replacing any previous row.
func UpsertLead(db *sql.DB, lead *models.Lead) error {
	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
	}

	var deletedAt any
	if lead.DeletedAt != nil {
		deletedAt = *lead.DeletedAt
	}

	_, err = db.Exec(`
		INSERT INTO leads (id, updated_at, deleted_at, needs_sync, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			needs_sync = excluded.needs_sync,
			payload = excluded.payload
	`, lead.ID, lead.UpdatedAt, deletedAt, lead.NeedsSync, string(payload))
	if err != nil {
		return fmt.Errorf("failed to upsert lead %s: %w", lead.ID, err)
	}

	return nil
}

// PruneLead hard-deletes a lead row locally. Used once a remote delete is
// confirmed, or when a full sync shows the row is gone server-side.
func PruneLead(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM leads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to prune lead %s: %w", id, err)
	}
	return nil
}

// ClearNeedsSync drops the dirty flag after the remote acknowledged the row.
func ClearNeedsSync(db *sql.DB, id string) error {
	if _, err := db.Exec(`UPDATE leads SET needs_sync = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear needs_sync for %s: %w", id, err)
	}
	return nil
}

// ReplaceLeads swaps the whole local collection in one transaction. The
// pull engine uses it after a merge so a crash can't leave half-applied
// remote state behind.
func ReplaceLeads(db *sql.DB, leads []models.Lead) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM leads`); err != nil {
		return fmt.Errorf("failed to clear leads: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO leads (id, updated_at, deleted_at, needs_sync, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range leads {
		lead := &leads[i]
		payload, err := json.Marshal(lead)
		if err != nil {
			return fmt.Errorf("failed to marshal lead %s: %w", lead.ID, err)
		}
		var deletedAt any
		if lead.DeletedAt != nil {
			deletedAt = *lead.DeletedAt
		}
		if _, err := stmt.Exec(lead.ID, lead.UpdatedAt, deletedAt, lead.NeedsSync, string(payload)); err != nil {
			return fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
		}
	}

	return tx.Commit()
}
