// ABOUTME: Derives analytics domain events from lead field transitions
// ABOUTME: Compares previous vs next state on save and emits status/contact/scheduling events
package sync

import (
	"time"

	"github.com/coldflow/coldflow/models"
)

// parseWhen parses the loose date formats leads carry: bare "2006-01-02"
// dates and ISO timestamps with or without a zone.
func parseWhen(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isoFromDateTime builds a best-effort ISO timestamp from a date plus an
// optional time-of-day, defaulting to midday for date-only values.
func isoFromDateTime(date, timeOfDay string, now time.Time) string {
	if date == "" {
		return now.Format(time.RFC3339)
	}
	if t, ok := parseWhen(date); ok && len(date) > len("2006-01-02") {
		return t.Format(time.RFC3339)
	}
	if timeOfDay == "" {
		timeOfDay = "12:00"
	}
	if t, ok := parseWhen(date + "T" + timeOfDay); ok {
		return t.Format(time.RFC3339)
	}
	return now.Format(time.RFC3339)
}

// BuildLeadEvents emits domain events for the transitions between a lead's
// previous and next state. A nil previous lead (brand-new record) emits none.
func BuildLeadEvents(previous *models.Lead, next models.Lead, now time.Time) []models.LeadEvent {
	if previous == nil {
		return nil
	}

	var events []models.LeadEvent

	if previous.Status != next.Status {
		oldStatus := previous.Status
		newStatus := next.Status
		events = append(events, models.LeadEvent{
			LeadID:     next.ID,
			EventType:  models.EventStatusChange,
			OccurredAt: now.Format(time.RFC3339),
			OldStatus:  &oldStatus,
			NewStatus:  &newStatus,
		})
	}

	if previous.LastContactDate != next.LastContactDate && next.LastContactDate != "" {
		prevAt, prevOK := parseWhen(previous.LastContactDate)
		nextAt, nextOK := parseWhen(next.LastContactDate)
		if nextOK && (!prevOK || nextAt.After(prevAt)) {
			hasTime := len(next.LastContactDate) > len("2006-01-02")
			meta := map[string]any{
				"person":   orNil(next.LastContactPerson),
				"channel":  orNil(next.ChannelLastAttempt),
				"has_time": hasTime,
			}
			events = append(events, models.LeadEvent{
				LeadID:     next.ID,
				EventType:  models.EventContacted,
				OccurredAt: isoFromDateTime(next.LastContactDate, "", now),
				Meta:       meta,
			})
		}
	}

	if (previous.MeetingDate != next.MeetingDate || previous.MeetingTime != next.MeetingTime) && next.MeetingDate != "" {
		events = append(events, models.LeadEvent{
			LeadID:     next.ID,
			EventType:  models.EventMeetingScheduled,
			OccurredAt: isoFromDateTime(next.MeetingDate, next.MeetingTime, now),
		})
	}

	if (previous.CallbackDate != next.CallbackDate || previous.CallbackTime != next.CallbackTime) && next.CallbackDate != "" {
		events = append(events, models.LeadEvent{
			LeadID:     next.ID,
			EventType:  models.EventCallbackScheduled,
			OccurredAt: isoFromDateTime(next.CallbackDate, next.CallbackTime, now),
		})
	}

	nextAttemptChanged := previous.NextAttemptDate != next.NextAttemptDate ||
		previous.NextAttemptTime != next.NextAttemptTime ||
		previous.NextAttemptChannel != next.NextAttemptChannel
	if nextAttemptChanged && next.NextAttemptDate != "" {
		events = append(events, models.LeadEvent{
			LeadID:     next.ID,
			EventType:  models.EventNextAttemptSet,
			OccurredAt: isoFromDateTime(next.NextAttemptDate, next.NextAttemptTime, now),
			Meta:       map[string]any{"channel": orNil(next.NextAttemptChannel)},
		})
	}

	prevOverride := previous.NeedsNextContactOverride != nil && *previous.NeedsNextContactOverride
	nextOverride := next.NeedsNextContactOverride != nil && *next.NeedsNextContactOverride
	if !prevOverride && nextOverride {
		events = append(events, models.LeadEvent{
			LeadID:     next.ID,
			EventType:  models.EventNextContactOverride,
			OccurredAt: now.Format(time.RFC3339),
		})
	}

	return events
}

func orNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}
