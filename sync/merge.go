// ABOUTME: Field-level merge policy for combining duplicate leads
// ABOUTME: Sticky identity fields, prefer-incoming operational fields, and keyed contact dedupe
package sync

import (
	"encoding/json"

	"github.com/coldflow/coldflow/models"
)

// MergeContacts combines two contact lists. The dedupe key is the normalized
// phone when present, else the normalized name; contacts with neither are kept
// unmerged and appended as-is. On a key collision each field keeps the existing
// non-empty value and falls back to the incoming one.
func MergeContacts(current, incoming []models.Contact) []models.Contact {
	byKey := make(map[string]models.Contact)
	var order []string
	var noKey []models.Contact

	add := func(c models.Contact) {
		var key string
		if phone := NormalizePhone(c.Phone); phone != "" {
			key = "p:" + phone
		} else if name := NormalizeText(c.Name); name != "" {
			key = "n:" + name
		}
		if key == "" {
			noKey = append(noKey, c)
			return
		}
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = c
			order = append(order, key)
			return
		}
		if existing.Name == "" {
			existing.Name = c.Name
		}
		if existing.Phone == "" {
			existing.Phone = c.Phone
		}
		if existing.Role == "" {
			existing.Role = c.Role
		}
		byKey[key] = existing
	}

	for _, c := range current {
		add(c)
	}
	for _, c := range incoming {
		add(c)
	}

	merged := make([]models.Contact, 0, len(order)+len(noKey))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}
	return append(merged, noKey...)
}

// MergeReferences combines two reference lists, keyed by normalized link when
// present, else by platform:type. First occurrence wins.
func MergeReferences(current, incoming []models.Reference) []models.Reference {
	seen := make(map[string]struct{})
	var merged []models.Reference

	add := func(r models.Reference) {
		key := NormalizeURL(r.Link)
		if key == "" {
			key = r.Platform + ":" + r.Type
		}
		if key == ":" {
			merged = append(merged, r)
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
	}

	for _, r := range current {
		add(r)
	}
	for _, r := range incoming {
		add(r)
	}
	return merged
}

// SanitizeContacts dedupes a lead's own contact lists in place.
func SanitizeContacts(lead models.Lead) models.Lead {
	lead.Decisors = MergeContacts(lead.Decisors, nil)
	lead.Attendants = MergeContacts(lead.Attendants, nil)
	return lead
}

// mostRecentDate picks the later of two date strings by parsed timestamp.
// When either side fails to parse the current value stands.
func mostRecentDate(current, incoming string) string {
	if current == "" {
		return incoming
	}
	if incoming == "" {
		return current
	}
	tc, okc := parseWhen(current)
	ti, oki := parseWhen(incoming)
	if !okc || !oki {
		return current
	}
	if ti.After(tc) {
		return incoming
	}
	return current
}

func stickyText(current, incoming string) string {
	if current != "" {
		return current
	}
	return incoming
}

// preferIncomingText keeps the current value only when the incoming one is
// absent or blank. Operational fields use this bias so the newest action
// taken is never overwritten by stale data.
func preferIncomingText(current, incoming string) string {
	if incoming == "" {
		return current
	}
	return incoming
}

func preferIncomingFloat(current, incoming *float64) *float64 {
	if incoming == nil {
		return current
	}
	return incoming
}

func preferIncomingString(current, incoming *string) *string {
	if incoming == nil {
		return current
	}
	return incoming
}

func preferIncomingBool(current, incoming *bool) *bool {
	if incoming == nil {
		return current
	}
	return incoming
}

func unionStrings(current, incoming []string) []string {
	seen := make(map[string]struct{}, len(current)+len(incoming))
	var out []string
	for _, lists := range [][]string{current, incoming} {
		for _, v := range lists {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// MergeLeads merges incoming into existing and returns the result. Identity
// and profile fields are sticky (existing non-empty value wins) so they don't
// flap between merges; operational and scheduling fields prefer the incoming
// value because they represent the latest action taken. Counters take the max
// and lists union. The merged lead keeps the existing lead's id.
//
// preferIncomingStatus controls the status regression guard: when false, an
// incoming default "new" status never overwrites an existing status that has
// already progressed past it.
func MergeLeads(existing, incoming models.Lead, preferIncomingStatus bool) models.Lead {
	merged := existing.Clone()

	merged.CompanyName = stickyText(existing.CompanyName, incoming.CompanyName)
	merged.Segment = stickyText(existing.Segment, incoming.Segment)
	merged.Origin = stickyText(existing.Origin, incoming.Origin)
	merged.OriginLink = stickyText(existing.OriginLink, incoming.OriginLink)
	if existing.OriginRating == nil {
		merged.OriginRating = incoming.OriginRating
	}
	merged.SiteURL = stickyText(existing.SiteURL, incoming.SiteURL)
	merged.SiteState = stickyText(existing.SiteState, incoming.SiteState)
	merged.TicketPotential = stickyText(existing.TicketPotential, incoming.TicketPotential)

	merged.SitePainPoints = unionStrings(existing.SitePainPoints, incoming.SitePainPoints)
	merged.Decisors = MergeContacts(existing.Decisors, incoming.Decisors)
	merged.Attendants = MergeContacts(existing.Attendants, incoming.Attendants)
	merged.References = MergeReferences(existing.References, incoming.References)

	merged.YearsInBusiness = max(existing.YearsInBusiness, incoming.YearsInBusiness)
	merged.Attempts = max(existing.Attempts, incoming.Attempts)
	merged.LastContactDate = mostRecentDate(existing.LastContactDate, incoming.LastContactDate)

	merged.LastContactPerson = preferIncomingText(existing.LastContactPerson, incoming.LastContactPerson)
	merged.ChannelLastAttempt = preferIncomingText(existing.ChannelLastAttempt, incoming.ChannelLastAttempt)
	merged.ResultLastAttempt = preferIncomingText(existing.ResultLastAttempt, incoming.ResultLastAttempt)
	merged.Notes = preferIncomingText(existing.Notes, incoming.Notes)
	merged.DiscardReason = preferIncomingText(existing.DiscardReason, incoming.DiscardReason)

	merged.NextAttemptDate = preferIncomingText(existing.NextAttemptDate, incoming.NextAttemptDate)
	merged.NextAttemptTime = preferIncomingText(existing.NextAttemptTime, incoming.NextAttemptTime)
	merged.NextAttemptChannel = preferIncomingText(existing.NextAttemptChannel, incoming.NextAttemptChannel)
	merged.CallbackDate = preferIncomingText(existing.CallbackDate, incoming.CallbackDate)
	merged.CallbackTime = preferIncomingText(existing.CallbackTime, incoming.CallbackTime)
	merged.CallbackRequestedBy = preferIncomingText(existing.CallbackRequestedBy, incoming.CallbackRequestedBy)
	merged.CallbackRequesterName = preferIncomingText(existing.CallbackRequesterName, incoming.CallbackRequesterName)
	merged.CallbackRequesterNameManual = preferIncomingString(existing.CallbackRequesterNameManual, incoming.CallbackRequesterNameManual)
	merged.MeetingDate = preferIncomingText(existing.MeetingDate, incoming.MeetingDate)
	merged.MeetingTime = preferIncomingText(existing.MeetingTime, incoming.MeetingTime)
	merged.MeetingType = preferIncomingText(existing.MeetingType, incoming.MeetingType)
	merged.PaidValueType = preferIncomingText(existing.PaidValueType, incoming.PaidValueType)
	merged.PaidValueCustom = preferIncomingFloat(existing.PaidValueCustom, incoming.PaidValueCustom)
	merged.CustomScript = preferIncomingString(existing.CustomScript, incoming.CustomScript)
	merged.NeedsNextContactOverride = preferIncomingBool(existing.NeedsNextContactOverride, incoming.NeedsNextContactOverride)

	merged.Status = mergeStatus(existing.Status, incoming.Status, preferIncomingStatus)

	merged.Extra = mergeExtras(existing.Extra, incoming.Extra)

	return merged
}

// mergeStatus guards against a stale default status rolling back progress.
func mergeStatus(existing, incoming string, preferIncoming bool) string {
	if incoming == "" {
		return existing
	}
	if !preferIncoming && incoming == models.StatusNew && existing != "" && existing != models.StatusNew {
		return existing
	}
	return incoming
}

// mergeExtras carries both sides' unknown payload fields through the merge,
// with the existing side winning collisions.
func mergeExtras(existing, incoming map[string]json.RawMessage) map[string]json.RawMessage {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(existing)+len(incoming))
	for k, v := range incoming {
		out[k] = v
	}
	for k, v := range existing {
		out[k] = v
	}
	return out
}
