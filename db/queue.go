// ABOUTME: FIFO persistence for the mutation queue and the domain-event queue
// ABOUTME: Enforces the at-most-one-pending-SAVE-per-lead rule on enqueue
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/coldflow/coldflow/models"
)

// Mutation task types.
const (
	TaskSave   = "SAVE"
	TaskDelete = "DELETE"
)

// Mutation is one queued outbound change. For SAVE tasks Lead carries the
// payload captured at enqueue time; DELETE tasks carry only the lead id.
type Mutation struct {
	Seq       int64
	TaskID    string
	Type      string
	LeadID    string
	Lead      *models.Lead
	CreatedAt int64
}

// QueuedEvent is one queued domain-event row.
type QueuedEvent struct {
	Seq       int64
	EventID   string
	Event     models.LeadEvent
	CreatedAt int64
}

// EnqueueMutation appends a task to the mutation queue. A new SAVE for a
// lead replaces any pending SAVE for the same lead, so the queue never
// applies two saves out of order for one record.
func EnqueueMutation(db *sql.DB, m Mutation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin enqueue: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if m.Type == TaskSave {
		if _, err := tx.Exec(`
			DELETE FROM mutation_queue WHERE task_type = ? AND lead_id = ?
		`, TaskSave, m.LeadID); err != nil {
			return fmt.Errorf("failed to drop stale save for %s: %w", m.LeadID, err)
		}
	}

	var payload any
	if m.Lead != nil {
		data, err := json.Marshal(m.Lead)
		if err != nil {
			return fmt.Errorf("failed to marshal mutation payload: %w", err)
		}
		payload = string(data)
	}

	if _, err := tx.Exec(`
		INSERT INTO mutation_queue (task_id, task_type, lead_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.TaskID, m.Type, m.LeadID, payload, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}

	return tx.Commit()
}

// PeekMutation returns the queue head without removing it, or nil when the
// queue is empty.
func PeekMutation(db *sql.DB) (*Mutation, error) {
	var (
		m       Mutation
		payload sql.NullString
	)
	err := db.QueryRow(`
		SELECT seq, task_id, task_type, lead_id, payload, created_at
		FROM mutation_queue
		ORDER BY seq ASC
		LIMIT 1
	`).Scan(&m.Seq, &m.TaskID, &m.Type, &m.LeadID, &payload, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek mutation queue: %w", err)
	}

	if payload.Valid {
		var lead models.Lead
		if err := json.Unmarshal([]byte(payload.String), &lead); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mutation payload: %w", err)
		}
		m.Lead = &lead
	}

	return &m, nil
}

// PopMutation removes an applied task. Called immediately after a successful
// remote write so a crash mid-drain never replays more than the in-flight task.
func PopMutation(db *sql.DB, seq int64) error {
	if _, err := db.Exec(`DELETE FROM mutation_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to pop mutation %d: %w", seq, err)
	}
	return nil
}

// MutationCount returns the number of pending mutation tasks.
func MutationCount(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM mutation_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mutation queue: %w", err)
	}
	return count, nil
}

// EnqueueEvent appends a domain event to the event queue.
func EnqueueEvent(db *sql.DB, e QueuedEvent) error {
	payload, err := json.Marshal(e.Event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if _, err := db.Exec(`
		INSERT INTO event_queue (event_id, payload, created_at)
		VALUES (?, ?, ?)
	`, e.EventID, string(payload), e.CreatedAt); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// PeekEvent returns the event-queue head without removing it, or nil when
// the queue is empty.
func PeekEvent(db *sql.DB) (*QueuedEvent, error) {
	var (
		e       QueuedEvent
		payload string
	)
	err := db.QueryRow(`
		SELECT seq, event_id, payload, created_at
		FROM event_queue
		ORDER BY seq ASC
		LIMIT 1
	`).Scan(&e.Seq, &e.EventID, &payload, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek event queue: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &e.Event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	return &e, nil
}

// PopEvent removes a flushed event.
func PopEvent(db *sql.DB, seq int64) error {
	if _, err := db.Exec(`DELETE FROM event_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to pop event %d: %w", seq, err)
	}
	return nil
}

// EventCount returns the number of pending domain events.
func EventCount(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count event queue: %w", err)
	}
	return count, nil
}
