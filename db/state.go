// ABOUTME: Key-value sync state persistence (checkpoints, breaker flag)
// ABOUTME: Backs last-sync / last-full-sync timestamps and the backend-disabled marker
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Sync state keys.
const (
	StateLastSync        = "last_sync"
	StateLastFullSync    = "last_full_sync"
	StateBackendDisabled = "backend_disabled"
)

// GetState returns the stored value for key, or "" when unset.
func GetState(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// SetState stores value under key, replacing any previous value.
func SetState(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// DeleteState removes key, as when the breaker flag is cleared.
func DeleteState(db *sql.DB, key string) error {
	if _, err := db.Exec(`DELETE FROM sync_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

// GetStateTime parses the stored RFC3339 value for key. Returns the zero
// time when unset or unparseable.
func GetStateTime(db *sql.DB, key string) (time.Time, error) {
	value, err := GetState(db, key)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetStateTime stores t as RFC3339 under key.
func SetStateTime(db *sql.DB, key string, t time.Time) error {
	return SetState(db, key, t.Format(time.RFC3339))
}
