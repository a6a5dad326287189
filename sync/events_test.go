// ABOUTME: Tests for domain-event derivation from lead transitions
// ABOUTME: Covers status changes, contact advances, scheduling events, and the new-lead case
package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldflow/coldflow/models"
)

var eventNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

func TestBuildLeadEventsNewLead(t *testing.T) {
	next := models.Lead{ID: "a", Status: models.StatusNew}
	assert.Empty(t, BuildLeadEvents(nil, next, eventNow))
}

func TestBuildLeadEventsStatusChange(t *testing.T) {
	previous := models.Lead{ID: "a", Status: models.StatusNew}
	next := models.Lead{ID: "a", Status: models.StatusInterested}

	events := BuildLeadEvents(&previous, next, eventNow)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventStatusChange, events[0].EventType)
	assert.Equal(t, "a", events[0].LeadID)
	require.NotNil(t, events[0].OldStatus)
	require.NotNil(t, events[0].NewStatus)
	assert.Equal(t, models.StatusNew, *events[0].OldStatus)
	assert.Equal(t, models.StatusInterested, *events[0].NewStatus)
}

func TestBuildLeadEventsContactAdvance(t *testing.T) {
	previous := models.Lead{ID: "a", LastContactDate: "2026-03-01"}
	next := models.Lead{
		ID:                 "a",
		LastContactDate:    "2026-03-14",
		LastContactPerson:  "Decisor",
		ChannelLastAttempt: "WhatsApp",
	}

	events := BuildLeadEvents(&previous, next, eventNow)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventContacted, events[0].EventType)
	assert.Equal(t, "Decisor", events[0].Meta["person"])
	assert.Equal(t, "WhatsApp", events[0].Meta["channel"])
	assert.Equal(t, false, events[0].Meta["has_time"])
}

func TestBuildLeadEventsContactBackdatedIgnored(t *testing.T) {
	previous := models.Lead{ID: "a", LastContactDate: "2026-03-14"}
	next := models.Lead{ID: "a", LastContactDate: "2026-03-01"}

	assert.Empty(t, BuildLeadEvents(&previous, next, eventNow))
}

func TestBuildLeadEventsScheduling(t *testing.T) {
	previous := models.Lead{ID: "a"}
	next := models.Lead{
		ID:                 "a",
		MeetingDate:        "2026-03-20",
		MeetingTime:        "14:30",
		CallbackDate:       "2026-03-18",
		NextAttemptDate:    "2026-03-16",
		NextAttemptChannel: "Ligação",
	}

	events := BuildLeadEvents(&previous, next, eventNow)
	require.Len(t, events, 3)

	types := make(map[string]models.LeadEvent)
	for _, e := range events {
		types[e.EventType] = e
	}
	require.Contains(t, types, models.EventMeetingScheduled)
	require.Contains(t, types, models.EventCallbackScheduled)
	require.Contains(t, types, models.EventNextAttemptSet)
	assert.Equal(t, "Ligação", types[models.EventNextAttemptSet].Meta["channel"])

	meetingAt, err := time.Parse(time.RFC3339, types[models.EventMeetingScheduled].OccurredAt)
	require.NoError(t, err)
	assert.Equal(t, 14, meetingAt.Hour())

	// Date-only callback defaults to midday
	callbackAt, err := time.Parse(time.RFC3339, types[models.EventCallbackScheduled].OccurredAt)
	require.NoError(t, err)
	assert.Equal(t, 12, callbackAt.Hour())
}

func TestBuildLeadEventsOverrideEdgeOnly(t *testing.T) {
	on := true
	previous := models.Lead{ID: "a"}
	next := models.Lead{ID: "a", NeedsNextContactOverride: &on}

	events := BuildLeadEvents(&previous, next, eventNow)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventNextContactOverride, events[0].EventType)

	// Already-set override emits nothing
	previous.NeedsNextContactOverride = &on
	assert.Empty(t, BuildLeadEvents(&previous, next, eventNow))
}

func TestBuildLeadEventsNoChange(t *testing.T) {
	lead := models.Lead{ID: "a", Status: models.StatusInterested, LastContactDate: "2026-03-01"}
	assert.Empty(t, BuildLeadEvents(&lead, lead, eventNow))
}
