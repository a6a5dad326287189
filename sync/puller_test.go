// ABOUTME: Tests for pull-based reconciliation
// ABOUTME: Covers LWW merges, prune on full sync, compaction, throttling, and morning promotion
package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldflow/coldflow/db"
	"github.com/coldflow/coldflow/models"
)

func remoteRow(t *testing.T, lead models.Lead) LeadRow {
	t.Helper()
	row, err := ToRow(&lead)
	require.NoError(t, err)
	return row
}

// seedLead installs a lead in memory and the store without queueing anything,
// so tests can stage clean (already-synced) or dirty records directly.
func seedLead(t *testing.T, env *testEnv, lead models.Lead) {
	t.Helper()
	env.svc.mu.Lock()
	defer env.svc.mu.Unlock()
	env.svc.leads = append(env.svc.leads, lead)
	require.NoError(t, db.UpsertLead(env.svc.store, &lead))
}

func TestFetchRemoteInitialPullIsFull(t *testing.T) {
	remote := &fakeRemote{rows: []LeadRow{
		remoteRow(t, models.Lead{ID: "lead_a", UpdatedAt: 100, CompanyName: "Acme"}),
		remoteRow(t, models.Lead{ID: "lead_b", UpdatedAt: 200, CompanyName: "Beta"}),
	}}
	env := newTestService(t, remote)
	env.online.Store(true)

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	remote.mu.Lock()
	require.Len(t, remote.selectCalls, 1)
	assert.True(t, remote.selectCalls[0].full)
	assert.Zero(t, remote.selectCalls[0].since)
	remote.mu.Unlock()

	leads := env.svc.Leads()
	assert.Len(t, leads, 2)
	assert.True(t, env.svc.LastSyncTime().Equal(testStart))
}

func TestFetchRemoteLastWriteWins(t *testing.T) {
	remote := &fakeRemote{}
	env := newTestService(t, remote)
	env.online.Store(true)

	seedLead(t, env, models.Lead{ID: "lead_a", UpdatedAt: 100, CompanyName: "Old Name"})
	seedLead(t, env, models.Lead{ID: "lead_b", UpdatedAt: 500, CompanyName: "Fresh Local"})
	seedLead(t, env, models.Lead{ID: "lead_c", UpdatedAt: 100, CompanyName: "Unpushed Edit", NeedsSync: true})

	remote.rows = []LeadRow{
		remoteRow(t, models.Lead{ID: "lead_a", UpdatedAt: 200, CompanyName: "New Name"}),
		remoteRow(t, models.Lead{ID: "lead_b", UpdatedAt: 300, CompanyName: "Stale Remote"}),
		remoteRow(t, models.Lead{ID: "lead_c", UpdatedAt: 900, CompanyName: "Remote Edit"}),
	}

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	byID := make(map[string]models.Lead)
	for _, lead := range env.svc.Leads() {
		byID[lead.ID] = lead
	}
	require.Len(t, byID, 3)
	assert.Equal(t, "New Name", byID["lead_a"].CompanyName, "newer remote wins")
	assert.Equal(t, "Fresh Local", byID["lead_b"].CompanyName, "newer local wins")
	assert.Equal(t, "Unpushed Edit", byID["lead_c"].CompanyName, "dirty local beats any remote version")
	assert.True(t, byID["lead_c"].NeedsSync)
}

func TestFetchRemoteFullSyncPrunesServerDeletes(t *testing.T) {
	remote := &fakeRemote{}
	env := newTestService(t, remote)
	env.online.Store(true)

	seedLead(t, env, models.Lead{ID: "lead_gone", UpdatedAt: 100, CompanyName: "Hard Deleted"})
	seedLead(t, env, models.Lead{ID: "lead_dirty", UpdatedAt: 100, CompanyName: "Not Yet Pushed", NeedsSync: true})
	seedLead(t, env, models.Lead{ID: "lead_kept", UpdatedAt: 100, CompanyName: "Still There"})

	remote.rows = []LeadRow{
		remoteRow(t, models.Lead{ID: "lead_kept", UpdatedAt: 100, CompanyName: "Still There"}),
	}

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	byID := make(map[string]models.Lead)
	for _, lead := range env.svc.Leads() {
		byID[lead.ID] = lead
	}
	assert.NotContains(t, byID, "lead_gone", "clean rows absent from a full pull were deleted server-side")
	assert.Contains(t, byID, "lead_dirty", "an unpushed local record survives the prune")
	assert.Contains(t, byID, "lead_kept")

	// The prune reached the store too
	persisted, err := db.LoadLeads(env.svc.store)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestFetchRemoteCompactsConfirmedTombstones(t *testing.T) {
	deletedAt := int64(250)
	remote := &fakeRemote{rows: []LeadRow{
		remoteRow(t, models.Lead{ID: "lead_a", UpdatedAt: 300, DeletedAt: &deletedAt, CompanyName: "Acme"}),
	}}
	env := newTestService(t, remote)
	env.online.Store(true)

	seedLead(t, env, models.Lead{ID: "lead_a", UpdatedAt: 100, CompanyName: "Acme"})

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	assert.Empty(t, env.svc.Leads())
	env.svc.mu.Lock()
	assert.Empty(t, env.svc.leads, "confirmed tombstone is dropped, not retained hidden")
	env.svc.mu.Unlock()
}

func TestFetchRemoteThrottlesUnforcedPulls(t *testing.T) {
	remote := &fakeRemote{}
	env := newTestService(t, remote)
	env.online.Store(true)
	ctx := context.Background()

	env.svc.FetchRemote(ctx, FetchOptions{})
	assert.Equal(t, 1, remote.selectCount())

	// Within the minimum interval nothing happens
	env.clock.Advance(5 * time.Minute)
	env.svc.FetchRemote(ctx, FetchOptions{})
	assert.Equal(t, 1, remote.selectCount())

	// Force bypasses the throttle
	env.svc.FetchRemote(ctx, FetchOptions{Force: true})
	assert.Equal(t, 2, remote.selectCount())

	// Past the interval an unforced pull goes through, incrementally
	lastSync := env.svc.LastSyncTime()
	env.clock.Advance(11 * time.Minute)
	env.svc.FetchRemote(ctx, FetchOptions{})

	remote.mu.Lock()
	require.Len(t, remote.selectCalls, 3)
	assert.False(t, remote.selectCalls[2].full)
	assert.Equal(t, lastSync.UnixMilli(), remote.selectCalls[2].since)
	remote.mu.Unlock()
}

func TestFetchRemoteMorningPromotion(t *testing.T) {
	remote := &fakeRemote{}
	env := newTestService(t, remote)
	env.online.Store(true)
	ctx := context.Background()

	// Initial pull is always full and records today's full-sync checkpoint
	// (testStart is 05:00 local).
	env.svc.FetchRemote(ctx, FetchOptions{Force: true})

	// Later the same day, past the morning hour: already covered today
	env.clock.Set(testStart.Add(90 * time.Minute)) // 06:30
	env.svc.FetchRemote(ctx, FetchOptions{})

	// Next day before the morning hour: still incremental
	env.clock.Set(testStart.AddDate(0, 0, 1)) // 05:00 next day
	env.svc.FetchRemote(ctx, FetchOptions{})

	// Next day past the morning hour: promoted to full
	env.clock.Set(testStart.AddDate(0, 0, 1).Add(90 * time.Minute)) // 06:30 next day
	env.svc.FetchRemote(ctx, FetchOptions{})

	remote.mu.Lock()
	require.Len(t, remote.selectCalls, 4)
	assert.True(t, remote.selectCalls[0].full)
	assert.False(t, remote.selectCalls[1].full, "same-day pull stays incremental")
	assert.False(t, remote.selectCalls[2].full, "pre-morning pull stays incremental")
	assert.True(t, remote.selectCalls[3].full, "first pull past the morning hour goes full")
	remote.mu.Unlock()
}

func TestFetchRemoteAuthErrorTripsBreaker(t *testing.T) {
	remote := &fakeRemote{selectErr: statusErr(403)}
	env := newTestService(t, remote)
	env.online.Store(true)

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	assert.True(t, env.svc.BackendDisabled())
	assert.True(t, env.svc.LastSyncTime().IsZero(), "failed pull advances no checkpoint")

	// While tripped, further pulls don't touch the remote
	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})
	assert.Equal(t, 1, remote.selectCount())
}

func TestFetchRemoteTransientErrorRetriesLater(t *testing.T) {
	remote := &fakeRemote{selectErr: errors.New("connection refused")}
	env := newTestService(t, remote)
	env.online.Store(true)

	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})

	assert.False(t, env.svc.BackendDisabled())
	assert.True(t, env.svc.LastSyncTime().IsZero())

	// Once the remote recovers the same pull succeeds
	remote.mu.Lock()
	remote.selectErr = nil
	remote.mu.Unlock()
	env.svc.FetchRemote(context.Background(), FetchOptions{Force: true})
	assert.False(t, env.svc.LastSyncTime().IsZero())
}