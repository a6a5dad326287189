// ABOUTME: Pull-based reconciliation engine with incremental and full sync
// ABOUTME: Applies last-write-wins merges, server-delete cleanup, and tombstone compaction
package sync

import (
	"context"
	"time"

	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/models"
	"github.com/coldflow/coldflow/pkg/metrics"
)

// FetchOptions tunes one reconciliation pull. Force bypasses the minimum
// sync interval and promotes the pull to a full sync; Full requests a full
// sync on its own.
type FetchOptions struct {
	Force bool
	Full  bool
}

// FetchRemote pulls remote changes and merges them into the local store.
// Expected conditions (offline, breaker open, throttled, unauthorized) are
// silent no-ops; transient remote failures are logged and retried on the
// next tick; authorization failures trip the breaker.
func (s *Service) FetchRemote(ctx context.Context, opts FetchOptions) {
	if s.remote == nil {
		return
	}
	if !s.online() || s.breaker.Disabled() {
		return
	}
	if !opts.Force && !s.shouldSyncNow() {
		return
	}
	if !s.authorized(ctx) {
		return
	}

	now := s.clock.Now()
	lastSync := s.LastSyncTime()
	full := opts.Full || lastSync.IsZero() || s.shouldFullSync(opts.Force, now)

	var sinceMillis int64
	if !full {
		sinceMillis = lastSync.UnixMilli()
	}

	rows, err := s.remote.SelectLeads(ctx, sinceMillis, full)
	if err != nil {
		if IsAuthError(err) {
			s.breaker.Trip("remote rejected the session during pull")
			s.notify()
			return
		}
		s.logger.Warn("remote fetch failed", "error", err)
		return
	}

	remote := make(map[string]models.Lead, len(rows))
	for _, row := range rows {
		lead, err := FromRow(row)
		if err != nil {
			// One malformed row must not abort the rest of the batch.
			s.logger.Warn("skipping malformed remote row", "id", row.ID, "error", err)
			continue
		}
		remote[lead.ID] = lead
	}

	s.mu.Lock()
	hasChanges := s.mergeRemoteLocked(remote, full)
	if hasChanges {
		if err := db.ReplaceLeads(s.store, s.leads); err != nil {
			s.mu.Unlock()
			s.logger.Warn("failed to persist merged leads", "error", err)
			return
		}
	}
	s.mu.Unlock()

	if hasChanges {
		s.notify()
	}

	// Checkpoints advance only after the fetch and merge completed cleanly.
	if err := db.SetStateTime(s.store, db.StateLastSync, now); err != nil {
		s.logger.Warn("failed to store sync checkpoint", "error", err)
	}
	if full {
		if err := db.SetStateTime(s.store, db.StateLastFullSync, now); err != nil {
			s.logger.Warn("failed to store full-sync checkpoint", "error", err)
		}
		metrics.RemotePulls.WithLabelValues("full").Inc()
	} else {
		metrics.RemotePulls.WithLabelValues("incremental").Inc()
	}
}

// mergeRemoteLocked folds the remote rows into the local collection and
// reports whether anything changed.
func (s *Service) mergeRemoteLocked(remote map[string]models.Lead, full bool) bool {
	hasChanges := false

	for _, remoteLead := range remote {
		idx := s.findIndexLocked(remoteLead.ID)
		if idx < 0 {
			s.leads = append(s.leads, remoteLead)
			hasChanges = true
			continue
		}
		// A local record with an unconfirmed pending change is authoritative
		// until the processor flushes it: remote never clobbers it.
		if s.leads[idx].NeedsSync {
			continue
		}
		if remoteLead.UpdatedAt > s.leads[idx].UpdatedAt {
			s.leads[idx] = remoteLead
			hasChanges = true
		}
	}

	filtered := s.leads[:0]
	for i := range s.leads {
		lead := s.leads[i]

		// Full sync visibility: anything absent remotely and not locally
		// dirty was hard-deleted server-side, drop it.
		if full && !lead.NeedsSync {
			if _, ok := remote[lead.ID]; !ok {
				hasChanges = true
				continue
			}
		}

		// Compaction: confirmed soft-deletes no longer back a pending task.
		if lead.DeletedAt != nil && !lead.NeedsSync {
			hasChanges = true
			continue
		}

		filtered = append(filtered, lead)
	}
	s.leads = filtered

	return hasChanges
}

// shouldSyncNow enforces the minimum interval between unforced pulls.
func (s *Service) shouldSyncNow() bool {
	lastSync := s.LastSyncTime()
	if lastSync.IsZero() {
		return true
	}
	return s.clock.Now().Sub(lastSync) >= s.opts.MinSyncInterval
}

// shouldFullSync promotes the first pull past the local morning hour to a
// full sync once per calendar day, bounding full-sync cost while still
// catching server-side hard deletes promptly.
func (s *Service) shouldFullSync(force bool, now time.Time) bool {
	if force {
		return true
	}
	morning := time.Date(now.Year(), now.Month(), now.Day(), s.opts.MorningSyncHour, 0, 0, 0, now.Location())

	lastFull, err := db.GetStateTime(s.store, db.StateLastFullSync)
	if err != nil || lastFull.IsZero() {
		return !now.Before(morning)
	}

	sameDay := lastFull.Year() == now.Year() && lastFull.YearDay() == now.YearDay()
	return !sameDay && !now.Before(morning)
}
