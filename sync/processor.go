// ABOUTME: Background mutation queue processor with at-least-once delivery
// ABOUTME: Drains queued saves/deletes and domain events to the remote store
package sync

import (
	"context"

	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/pkg/metrics"
)

// ProcessQueue drains the mutation and event queues against the remote, one
// task of each per iteration. It is non-reentrant: overlapping calls no-op.
// It also no-ops when both queues are empty, connectivity is down, the
// breaker is open, or the session isn't authorized. In every case the queue
// is kept, never dropped, ready for the next tick.
func (s *Service) ProcessQueue(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	if !s.processing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.processing.Store(false)

	pendingMutations, err := db.MutationCount(s.store)
	if err != nil {
		return err
	}
	pendingEvents, err := db.EventCount(s.store)
	if err != nil {
		return err
	}
	metrics.QueueBacklog.Set(float64(pendingMutations + pendingEvents))
	if pendingMutations == 0 && pendingEvents == 0 {
		return nil
	}
	if !s.online() || s.breaker.Disabled() {
		return nil
	}
	if !s.authorized(ctx) {
		return nil
	}

	for {
		didWork := false

		task, err := db.PeekMutation(s.store)
		if err != nil {
			s.logger.Warn("failed to read mutation queue head", "error", err)
			return nil
		}
		if task != nil {
			if err := s.applyMutation(ctx, task); err != nil {
				s.failDrain("queue task failed", err)
				return nil
			}
			// Pop and persist right away so a crash mid-drain replays at
			// most the in-flight task, which the idempotent upsert tolerates.
			if err := db.PopMutation(s.store, task.Seq); err != nil {
				return err
			}
			metrics.MutationsFlushed.WithLabelValues(task.Type).Inc()
			didWork = true
		}

		event, err := db.PeekEvent(s.store)
		if err != nil {
			s.logger.Warn("failed to read event queue head", "error", err)
			return nil
		}
		if event != nil {
			if err := s.remote.InsertEvent(ctx, event.Event); err != nil {
				s.failDrain("event flush failed", err)
				return nil
			}
			if err := db.PopEvent(s.store, event.Seq); err != nil {
				return err
			}
			metrics.EventsFlushed.Inc()
			didWork = true
		}

		if !didWork {
			break
		}
	}

	remaining, err := db.MutationCount(s.store)
	if err == nil {
		metrics.QueueBacklog.Set(float64(remaining))
	}
	return nil
}

// failDrain classifies a drain error: authorization failures trip the
// breaker, anything else is logged and retried on the next scheduled tick.
func (s *Service) failDrain(msg string, err error) {
	if IsAuthError(err) {
		s.breaker.Trip("remote rejected the session during queue drain")
		s.notify()
		return
	}
	s.logger.Error(msg, "error", err)
}

func (s *Service) applyMutation(ctx context.Context, task *db.Mutation) error {
	switch task.Type {
	case db.TaskDelete:
		return s.applyDelete(ctx, task)
	default:
		return s.applySave(ctx, task)
	}
}

// applySave upserts the payload captured when the task was enqueued. The
// queue's replace-pending-SAVE rule guarantees it is the latest one queued.
func (s *Service) applySave(ctx context.Context, task *db.Mutation) error {
	if task.Lead == nil {
		return nil
	}
	row, err := ToRow(task.Lead)
	if err != nil {
		// Data-shape failure: drop-worthy, but logged and popped by the
		// caller like a success so one bad payload can't wedge the queue.
		s.logger.Warn("skipping unconvertible save task", "lead", task.LeadID, "error", err)
		return nil
	}
	if err := s.remote.UpsertLead(ctx, row); err != nil {
		return err
	}

	s.mu.Lock()
	if idx := s.findIndexLocked(task.LeadID); idx >= 0 {
		// A newer local edit may have re-dirtied the record while this task
		// was in flight; only the acknowledged version gets its flag cleared.
		if s.leads[idx].UpdatedAt <= task.Lead.UpdatedAt {
			s.leads[idx].NeedsSync = false
			if err := db.ClearNeedsSync(s.store, task.LeadID); err != nil {
				s.logger.Warn("failed to clear dirty flag", "lead", task.LeadID, "error", err)
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// applyDelete tombstones the remote row using the current local timestamps,
// read fresh at drain time rather than captured at enqueue time.
func (s *Service) applyDelete(ctx context.Context, task *db.Mutation) error {
	s.mu.Lock()
	now := s.clock.Now().UnixMilli()
	deletedAt := now
	updatedAt := now
	if idx := s.findIndexLocked(task.LeadID); idx >= 0 {
		if s.leads[idx].DeletedAt != nil {
			deletedAt = *s.leads[idx].DeletedAt
		}
		if s.leads[idx].UpdatedAt != 0 {
			updatedAt = s.leads[idx].UpdatedAt
		}
	}
	s.mu.Unlock()

	if err := s.remote.TombstoneLead(ctx, task.LeadID, updatedAt, deletedAt); err != nil {
		return err
	}

	s.mu.Lock()
	changed := false
	if idx := s.findIndexLocked(task.LeadID); idx >= 0 {
		if s.leads[idx].DeletedAt != nil {
			s.leads = append(s.leads[:idx], s.leads[idx+1:]...)
			if err := db.PruneLead(s.store, task.LeadID); err != nil {
				s.logger.Warn("failed to prune confirmed delete", "lead", task.LeadID, "error", err)
			}
		} else {
			s.leads[idx].NeedsSync = false
			if err := db.ClearNeedsSync(s.store, task.LeadID); err != nil {
				s.logger.Warn("failed to clear dirty flag", "lead", task.LeadID, "error", err)
			}
		}
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}
