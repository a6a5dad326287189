// ABOUTME: Public facade of the offline-first lead sync engine
// ABOUTME: Local-first saves/deletes/merges with listener notification and queue handoff
package sync

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"sort"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/models"
)

const (
	// DefaultMinSyncInterval is the floor between unforced remote pulls.
	DefaultMinSyncInterval = 10 * time.Minute
	// DefaultMorningSyncHour is the local hour after which the first sync of
	// the day is promoted to a full sync.
	DefaultMorningSyncHour = 6
)

// Listener receives the active (non-deleted) lead set after every change.
type Listener func(leads []models.Lead)

// Options configures a Service. Zero values pick the defaults above.
type Options struct {
	MinSyncInterval time.Duration
	MorningSyncHour int
	// AllowedEmails gates remote access: a session identity must appear here.
	// An empty list admits any authenticated session.
	AllowedEmails []string
	Clock         Clock
	// Online reports current connectivity. Defaults to always-online; the
	// daemon wires a real connectivity check.
	Online func() bool
	Logger *slog.Logger
}

// Service is the only surface the rendering layer touches. All local store
// mutations happen under one mutex so a concurrent reader never observes a
// torn mutate/persist/notify sequence.
type Service struct {
	mu      stdsync.Mutex
	store   *sql.DB
	remote  Remote
	session SessionProvider
	clock   Clock
	online  func() bool
	logger  *slog.Logger
	opts    Options

	leads        []models.Lead
	listeners    map[int]Listener
	nextListener int

	// processing is the processor's non-reentrancy latch: overlapping ticks
	// must not double-drain the queue.
	processing atomic.Bool
	breaker    *breaker
}

// New builds a Service around an opened local store and its collaborators.
// The remote and session provider may be nil for pure local operation.
func New(store *sql.DB, remote Remote, session SessionProvider, opts Options) (*Service, error) {
	if opts.MinSyncInterval <= 0 {
		opts.MinSyncInterval = DefaultMinSyncInterval
	}
	if opts.MorningSyncHour == 0 {
		opts.MorningSyncHour = DefaultMorningSyncHour
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Online == nil {
		opts.Online = func() bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	leads, err := db.LoadLeads(store)
	if err != nil {
		return nil, err
	}

	brk, err := newBreaker(store, opts.Logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:     store,
		remote:    remote,
		session:   session,
		clock:     opts.Clock,
		online:    opts.Online,
		logger:    opts.Logger,
		opts:      opts,
		leads:     leads,
		listeners: make(map[int]Listener),
		breaker:   brk,
	}

	if err := s.bootstrap(); err != nil {
		return nil, err
	}

	return s, nil
}

// bootstrap queues pre-existing local leads for upload when this store has
// never completed a sync, so data created before the remote was configured
// is not stranded.
func (s *Service) bootstrap() error {
	lastSync, err := db.GetStateTime(s.store, db.StateLastSync)
	if err != nil {
		return err
	}
	if !lastSync.IsZero() || len(s.leads) == 0 {
		return nil
	}
	pending, err := db.MutationCount(s.store)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	now := s.clock.Now().UnixMilli()
	for i := range s.leads {
		if s.leads[i].UpdatedAt == 0 {
			s.leads[i].UpdatedAt = now
		}
		s.leads[i].NeedsSync = true
		if err := db.UpsertLead(s.store, &s.leads[i]); err != nil {
			return err
		}
		lead := s.leads[i].Clone()
		if err := db.EnqueueMutation(s.store, db.Mutation{
			TaskID:    NewTaskID(),
			Type:      db.TaskSave,
			LeadID:    lead.ID,
			Lead:      &lead,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a listener and immediately replays the current active
// state so the caller never renders an empty flash. Returns an unsubscribe
// function.
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	snapshot := s.activeLeadsLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Leads returns the active (non-deleted) leads.
func (s *Service) Leads() []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLeadsLocked()
}

// LastSyncTime returns the time of the last successful pull, zero if never.
func (s *Service) LastSyncTime() time.Time {
	t, err := db.GetStateTime(s.store, db.StateLastSync)
	if err != nil {
		s.logger.Warn("failed to read last sync time", "error", err)
		return time.Time{}
	}
	return t
}

// BackendDisabled reports whether the circuit breaker has tripped.
func (s *Service) BackendDisabled() bool {
	return s.breaker.Disabled()
}

// QueueDepth returns the number of pending mutations and events.
func (s *Service) QueueDepth() (mutations, events int) {
	mutations, err := db.MutationCount(s.store)
	if err != nil {
		s.logger.Warn("failed to count mutation queue", "error", err)
	}
	events, err = db.EventCount(s.store)
	if err != nil {
		s.logger.Warn("failed to count event queue", "error", err)
	}
	return mutations, events
}

// RetryBackend clears the breaker, forces an immediate full pull, and kicks
// the queue processor.
func (s *Service) RetryBackend(ctx context.Context) {
	s.logger.Info("retrying backend connection")
	s.breaker.Reset()
	s.notify()
	s.FetchRemote(ctx, FetchOptions{Force: true, Full: true})
	s.kickProcessor()
}

// SaveLead saves a lead locally, merging into an existing duplicate when one
// is found, then queues the change for background sync. Returns the stored
// lead (which keeps the duplicate's id when a merge happened).
func (s *Service) SaveLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	s.mu.Lock()
	now := s.clock.Now().UnixMilli()

	if lead.ID == "" {
		lead.ID = NewLeadID(s.clock.Now())
	}
	var previous *models.Lead
	if idx := s.findIndexLocked(lead.ID); idx >= 0 {
		prev := s.leads[idx].Clone()
		previous = &prev
	}

	incoming := SanitizeContacts(lead.Clone())
	incoming.UpdatedAt = now
	incoming.DeletedAt = nil
	incoming.NeedsSync = true

	// Merge into an existing different-id duplicate: the original id keeps
	// all remote-side history anchored to it.
	if dupIdx := s.findDuplicateLocked(&incoming); dupIdx >= 0 {
		existing := s.leads[dupIdx]
		merged := MergeLeads(existing, incoming, true)
		if payloadEqual(&merged, &existing) {
			s.mu.Unlock()
			return existing.Clone(), nil
		}
		merged.ID = existing.ID
		merged.UpdatedAt = now
		merged.DeletedAt = nil
		merged.NeedsSync = true

		s.queueEventsLocked(BuildLeadEvents(&existing, merged, s.clock.Now()))
		s.leads[dupIdx] = merged
		if err := db.UpsertLead(s.store, &s.leads[dupIdx]); err != nil {
			s.mu.Unlock()
			return models.Lead{}, err
		}
		if err := s.queueSaveLocked(merged, now); err != nil {
			s.mu.Unlock()
			return models.Lead{}, err
		}
		result := merged.Clone()
		s.mu.Unlock()

		s.notify()
		s.kickProcessor()
		return result, nil
	}

	s.queueEventsLocked(BuildLeadEvents(previous, incoming, s.clock.Now()))

	if idx := s.findIndexLocked(incoming.ID); idx >= 0 {
		s.leads[idx] = incoming
	} else {
		s.leads = append(s.leads, incoming)
	}
	if err := db.UpsertLead(s.store, &incoming); err != nil {
		s.mu.Unlock()
		return models.Lead{}, err
	}
	if err := s.queueSaveLocked(incoming, now); err != nil {
		s.mu.Unlock()
		return models.Lead{}, err
	}
	result := incoming.Clone()
	s.mu.Unlock()

	s.notify()
	s.kickProcessor()
	return result, nil
}

// SaveLeadsBatch saves many leads at once, deduping each candidate against
// both the stored collection and the other leads staged from the same batch,
// so one CSV import can't land two near-identical rows.
func (s *Service) SaveLeadsBatch(ctx context.Context, incoming []models.Lead) error {
	if len(incoming) == 0 {
		return nil
	}

	s.mu.Lock()
	now := s.clock.Now().UnixMilli()
	var staged []models.Lead
	queued := make(map[string]models.Lead)
	didChange := false

	stage := func(candidate models.Lead) error {
		if dupIdx := s.findDuplicateLocked(&candidate); dupIdx >= 0 {
			existing := s.leads[dupIdx]
			merged := SanitizeContacts(MergeLeads(existing, candidate, false))
			if payloadEqual(&merged, &existing) {
				return nil
			}
			merged.ID = existing.ID
			merged.UpdatedAt = now
			merged.DeletedAt = nil
			merged.NeedsSync = true
			s.leads[dupIdx] = merged
			if err := db.UpsertLead(s.store, &s.leads[dupIdx]); err != nil {
				return err
			}
			queued[merged.ID] = merged
			didChange = true
			return nil
		}

		for i := range staged {
			if IsDuplicate(&staged[i], &candidate) {
				merged := SanitizeContacts(MergeLeads(staged[i], candidate, false))
				merged.ID = staged[i].ID
				merged.UpdatedAt = now
				merged.DeletedAt = nil
				merged.NeedsSync = true
				staged[i] = merged
				return nil
			}
		}

		staged = append(staged, candidate)
		return nil
	}

	for _, lead := range incoming {
		if lead.ID == "" {
			lead.ID = NewLeadID(s.clock.Now())
		}
		candidate := SanitizeContacts(lead.Clone())
		candidate.UpdatedAt = now
		candidate.DeletedAt = nil
		candidate.NeedsSync = true
		if err := stage(candidate); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	for _, lead := range staged {
		if idx := s.findIndexLocked(lead.ID); idx >= 0 {
			s.leads[idx] = lead
		} else {
			s.leads = append(s.leads, lead)
		}
		if err := db.UpsertLead(s.store, &lead); err != nil {
			s.mu.Unlock()
			return err
		}
		queued[lead.ID] = lead
		didChange = true
	}

	if !didChange {
		s.mu.Unlock()
		return nil
	}

	for _, lead := range queued {
		if err := s.queueSaveLocked(lead, now); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.notify()
	s.kickProcessor()
	return nil
}

// DeleteLead soft-deletes a lead. The record stays in the local store until
// the remote confirms the tombstone, then gets pruned.
func (s *Service) DeleteLead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.findIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	now := s.clock.Now().UnixMilli()
	s.leads[idx].DeletedAt = &now
	s.leads[idx].UpdatedAt = now
	s.leads[idx].NeedsSync = true
	if err := db.UpsertLead(s.store, &s.leads[idx]); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := db.EnqueueMutation(s.store, db.Mutation{
		TaskID:    NewTaskID(),
		Type:      db.TaskDelete,
		LeadID:    id,
		CreatedAt: now,
	}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	s.kickProcessor()
	return nil
}

// DuplicateSummary reports what a dedupe pass would touch.
type DuplicateSummary struct {
	Groups     int
	Duplicates int
	Total      int
}

// PreviewDuplicates counts duplicate clusters without changing anything.
func (s *Service) PreviewDuplicates() DuplicateSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := BuildDuplicateGroups(s.leads)
	duplicates := 0
	for _, g := range groups {
		duplicates += len(g) - 1
	}
	total := 0
	for i := range s.leads {
		if s.leads[i].Active() {
			total++
		}
	}
	return DuplicateSummary{Groups: len(groups), Duplicates: duplicates, Total: total}
}

// DedupeResult reports what a dedupe pass changed.
type DedupeResult struct {
	Groups  int
	Merged  int
	Deleted int
}

// DedupeDuplicates merges every duplicate cluster into its oldest-created
// member. When the privileged server-side merge procedure is reachable and
// the session is authorized it is preferred (atomic merge plus delete);
// otherwise the merge happens locally and queues SAVE/DELETE tasks like any
// other offline mutation.
func (s *Service) DedupeDuplicates(ctx context.Context) (DedupeResult, error) {
	// Grouping works on a snapshot; the lock is never held across the
	// server-side merge call, so saves and reads stay responsive.
	s.mu.Lock()
	groups := BuildDuplicateGroups(s.leads)
	s.mu.Unlock()
	if len(groups) == 0 {
		return DedupeResult{}, nil
	}

	now := s.clock.Now().UnixMilli()
	rpcAvailable := s.remote != nil && s.online() && !s.breaker.Disabled() && s.authorized(ctx)

	result := DedupeResult{Groups: len(groups)}

	for _, group := range groups {
		sorted := append([]models.Lead(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return creationTime(&sorted[i]).Before(creationTime(&sorted[j]))
		})
		primary := sorted[0]
		duplicates := sorted[1:]

		merged := primary
		for i := range duplicates {
			merged = MergeLeads(merged, duplicates[i], false)
		}
		merged = SanitizeContacts(merged)
		merged.ID = primary.ID
		merged.UpdatedAt = now
		merged.DeletedAt = nil

		changed := !payloadEqual(&merged, &primary)

		rpcOK := false
		if rpcAvailable {
			row, err := ToRow(&merged)
			if err == nil {
				ids := make([]string, len(duplicates))
				for i := range duplicates {
					ids[i] = duplicates[i].ID
				}
				err = s.remote.MergeLeads(ctx, merged.ID, row.Payload, ids)
			}
			if err == nil {
				rpcOK = true
			} else if IsAuthError(err) {
				s.breaker.Trip("merge procedure rejected the session")
				rpcAvailable = false
			} else if err != nil {
				s.logger.Warn("server-side merge failed, falling back to local merge", "lead", merged.ID, "error", err)
			}
		}

		merged.NeedsSync = !rpcOK
		if err := s.applyDedupeGroup(merged, duplicates, now, rpcOK, changed, &result); err != nil {
			return result, err
		}
	}

	s.notify()
	s.kickProcessor()
	return result, nil
}

// applyDedupeGroup commits one merged group: the primary takes the merged
// payload, the duplicates become tombstones, and the offline fallback queues
// the equivalent SAVE/DELETE tasks.
func (s *Service) applyDedupeGroup(merged models.Lead, duplicates []models.Lead, now int64, rpcOK, changed bool, result *DedupeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.findIndexLocked(merged.ID); idx >= 0 {
		s.leads[idx] = merged
	} else {
		s.leads = append(s.leads, merged)
	}
	if err := db.UpsertLead(s.store, &merged); err != nil {
		return err
	}
	if changed {
		result.Merged++
		if !rpcOK {
			if err := s.queueSaveLocked(merged, now); err != nil {
				return err
			}
		}
	}

	for i := range duplicates {
		dupID := duplicates[i].ID
		if idx := s.findIndexLocked(dupID); idx >= 0 {
			s.leads[idx].DeletedAt = &now
			s.leads[idx].UpdatedAt = now
			s.leads[idx].NeedsSync = !rpcOK
			if err := db.UpsertLead(s.store, &s.leads[idx]); err != nil {
				return err
			}
		}
		if !rpcOK {
			if err := db.EnqueueMutation(s.store, db.Mutation{
				TaskID:    NewTaskID(),
				Type:      db.TaskDelete,
				LeadID:    dupID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		result.Deleted++
	}
	return nil
}

// --- internals ---

func (s *Service) findIndexLocked(id string) int {
	for i := range s.leads {
		if s.leads[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) findDuplicateLocked(candidate *models.Lead) int {
	for i := range s.leads {
		if s.leads[i].ID != candidate.ID && s.leads[i].Active() && IsDuplicate(&s.leads[i], candidate) {
			return i
		}
	}
	return -1
}

func (s *Service) activeLeadsLocked() []models.Lead {
	out := make([]models.Lead, 0, len(s.leads))
	for i := range s.leads {
		if s.leads[i].Active() {
			out = append(out, s.leads[i].Clone())
		}
	}
	return out
}

// notify delivers the current active state to every listener.
func (s *Service) notify() {
	s.mu.Lock()
	snapshot := s.activeLeadsLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Service) queueSaveLocked(lead models.Lead, now int64) error {
	payload := lead.Clone()
	return db.EnqueueMutation(s.store, db.Mutation{
		TaskID:    NewTaskID(),
		Type:      db.TaskSave,
		LeadID:    lead.ID,
		Lead:      &payload,
		CreatedAt: now,
	})
}

func (s *Service) queueEventsLocked(events []models.LeadEvent) {
	now := s.clock.Now().UnixMilli()
	for _, event := range events {
		if err := db.EnqueueEvent(s.store, db.QueuedEvent{
			EventID:   NewTaskID(),
			Event:     event,
			CreatedAt: now,
		}); err != nil {
			s.logger.Warn("failed to queue lead event", "lead", event.LeadID, "type", event.EventType, "error", err)
		}
	}
}

// kickProcessor fires an asynchronous drain attempt after a local mutation.
func (s *Service) kickProcessor() {
	go func() {
		if err := s.ProcessQueue(context.Background()); err != nil {
			s.logger.Warn("queue drain failed", "error", err)
		}
	}()
}

// authorized reports whether the current session may touch the remote:
// a session must exist and its identity must be on the allow-list.
func (s *Service) authorized(ctx context.Context) bool {
	if s.session == nil {
		return false
	}
	sess, err := s.session.Session(ctx)
	if err != nil || sess == nil || sess.Email == "" {
		return false
	}
	if len(s.opts.AllowedEmails) == 0 {
		return true
	}
	for _, email := range s.opts.AllowedEmails {
		if email == sess.Email {
			return true
		}
	}
	return false
}

// payloadEqual compares two leads by their remote payloads, ignoring the
// id/timestamps/dirty metadata.
func payloadEqual(a, b *models.Lead) bool {
	rowA, errA := ToRow(a)
	rowB, errB := ToRow(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(rowA.Payload, rowB.Payload)
}

// creationTime orders leads for primary selection during dedupe: the ULID
// creation time when the id carries one, else the last-update time.
func creationTime(lead *models.Lead) time.Time {
	if t, ok := LeadCreationTime(lead.ID); ok {
		return t
	}
	return time.UnixMilli(lead.UpdatedAt)
}
