// ABOUTME: Circuit breaker that flips the engine into local-only mode
// ABOUTME: Trips on authorization failures and persists the flag across restarts
package sync

import (
	"database/sql"
	"log/slog"
	"sync/atomic"

	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/pkg/metrics"
)

// breaker tracks whether remote access is disabled. The flag is persisted so
// a restart stays in local mode until someone explicitly retries.
type breaker struct {
	disabled atomic.Bool
	store    *sql.DB
	logger   *slog.Logger
}

func newBreaker(store *sql.DB, logger *slog.Logger) (*breaker, error) {
	b := &breaker{store: store, logger: logger}
	flag, err := db.GetState(store, db.StateBackendDisabled)
	if err != nil {
		return nil, err
	}
	if flag == "true" {
		b.disabled.Store(true)
		metrics.BackendDisabled.Set(1)
	}
	return b, nil
}

func (b *breaker) Disabled() bool {
	return b.disabled.Load()
}

// Trip switches to local-only mode. Local saves and deletes keep queueing so
// the backlog drains the moment the breaker is reset.
func (b *breaker) Trip(reason string) {
	if b.disabled.Swap(true) {
		return
	}
	b.logger.Warn("switching to local-only mode", "reason", reason)
	metrics.BackendDisabled.Set(1)
	if err := db.SetState(b.store, db.StateBackendDisabled, "true"); err != nil {
		b.logger.Warn("failed to persist backend-disabled flag", "error", err)
	}
}

// Reset clears the flag and its persisted marker.
func (b *breaker) Reset() {
	b.disabled.Store(false)
	metrics.BackendDisabled.Set(0)
	if err := db.DeleteState(b.store, db.StateBackendDisabled); err != nil {
		b.logger.Warn("failed to clear backend-disabled flag", "error", err)
	}
}
