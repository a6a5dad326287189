// ABOUTME: Data model for leads and their nested contact/reference records
// ABOUTME: Defines the Lead struct, status constants, and lossless JSON round-tripping
package models

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Lead status values. StatusNew is the default a lead starts in; the merge
// policy guards against a stale StatusNew overwriting a progressed status.
const (
	StatusNew              = "Novo Lead"
	StatusNoAnswer         = "Decisor não atendeu"
	StatusCold             = "Decisor frio"
	StatusInterested       = "Decisor interessado"
	StatusProposalSent     = "Proposta enviada"
	StatusMeetingBooked    = "Reunião marcada"
	StatusProposalAccepted = "Proposta aceita – pagamento feito"
	StatusRetryIn30        = "Tentar em 30 dias"
	StatusDoNotContact     = "Não tentar mais"
)

// Lead origin values. Origin is an open string field; these are the labels
// the importer recognizes.
const (
	OriginGoogleMaps = "Google Maps"
	OriginSite       = "Site"
	OriginInstagram  = "Instagram"
	OriginFacebook   = "Facebook"
	OriginWhatsApp   = "WhatsApp"
	OriginReferral   = "Indicação"
	OriginOther      = "Outro"
)

// SegmentOther is the fallback segment label when inference finds no match.
const SegmentOther = "Outros"

// Contact is a person attached to a lead, either a decision maker or an
// attendant. Phone is the primary dedupe key, name the fallback.
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone"`
}

// Reference is a social/web proof link attached to a lead.
type Reference struct {
	Type     string `json:"type"`
	Platform string `json:"platform"`
	Link     string `json:"link"`
}

// Lead is the unit of sync. ID is client-generated and never reassigned,
// UpdatedAt (epoch ms) is the sole conflict-resolution key, DeletedAt marks
// a soft delete, and NeedsSync flags a local copy ahead of the remote.
// NeedsSync is persisted locally but stripped from remote payloads.
type Lead struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updatedAt"`
	DeletedAt *int64 `json:"deletedAt,omitempty"`

	CompanyName string    `json:"companyName"`
	Decisors    []Contact `json:"decisors,omitempty"`
	Attendants  []Contact `json:"attendants,omitempty"`

	Origin       string   `json:"origin,omitempty"`
	OriginLink   string   `json:"originLink,omitempty"`
	OriginRating *float64 `json:"originRating,omitempty"`

	References []Reference `json:"references,omitempty"`

	SiteURL         string   `json:"siteUrl,omitempty"`
	Segment         string   `json:"segment,omitempty"`
	YearsInBusiness int      `json:"yearsInBusiness,omitempty"`
	TicketPotential string   `json:"ticketPotential,omitempty"`
	SiteState       string   `json:"siteState,omitempty"`
	SitePainPoints  []string `json:"sitePainPoints,omitempty"`

	Attempts                 int    `json:"attempts,omitempty"`
	LastContactDate          string `json:"lastContactDate,omitempty"`
	LastContactPerson        string `json:"lastContactPerson,omitempty"`
	ChannelLastAttempt       string `json:"channelLastAttempt,omitempty"`
	ResultLastAttempt        string `json:"resultLastAttempt,omitempty"`
	NeedsNextContactOverride *bool  `json:"needsNextContactOverride,omitempty"`

	CallbackDate                string  `json:"callbackDate,omitempty"`
	CallbackTime                string  `json:"callbackTime,omitempty"`
	CallbackRequestedBy         string  `json:"callbackRequestedBy,omitempty"`
	CallbackRequesterName       string  `json:"callbackRequesterName,omitempty"`
	CallbackRequesterNameManual *string `json:"callbackRequesterNameManual,omitempty"`

	MeetingDate string `json:"meetingDate,omitempty"`
	MeetingTime string `json:"meetingTime,omitempty"`
	MeetingType string `json:"meetingType,omitempty"`

	NextAttemptDate    string `json:"nextAttemptDate,omitempty"`
	NextAttemptTime    string `json:"nextAttemptTime,omitempty"`
	NextAttemptChannel string `json:"nextAttemptChannel,omitempty"`

	PaidValueType   string   `json:"paidValueType,omitempty"`
	PaidValueCustom *float64 `json:"paidValueCustom,omitempty"`

	Status        string `json:"status"`
	DiscardReason string `json:"discardReason,omitempty"`
	Notes         string `json:"notes,omitempty"`

	CustomScript *string `json:"customScript,omitempty"`

	NeedsSync bool `json:"_needsSync,omitempty"`

	// Extra holds payload fields this build does not know about, so that
	// rows written by newer clients survive a local merge unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// LeadEvent is an append-only fact derived from a field transition,
// flushed to the remote events collection for analytics.
type LeadEvent struct {
	LeadID     string         `json:"lead_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at,omitempty"`
	OldStatus  *string        `json:"old_status,omitempty"`
	NewStatus  *string        `json:"new_status,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Event types emitted by the sync engine.
const (
	EventStatusChange        = "status_change"
	EventContacted           = "contacted"
	EventMeetingScheduled    = "meeting_scheduled"
	EventCallbackScheduled   = "callback_scheduled"
	EventNextAttemptSet      = "next_attempt_set"
	EventNextContactOverride = "next_contact_override"
)

// leadAlias avoids recursing into the custom (Un)MarshalJSON.
type leadAlias Lead

var knownLeadKeys = buildKnownLeadKeys()

func buildKnownLeadKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(Lead{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			keys[name] = struct{}{}
		}
	}
	return keys
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra so unknown payload fields round-trip losslessly.
func (l *Lead) UnmarshalJSON(data []byte) error {
	var alias leadAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownLeadKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}
	*l = Lead(alias)
	return nil
}

// MarshalJSON re-emits the Extra fields alongside the known ones. Known
// fields always win on a key collision.
func (l Lead) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(leadAlias(l))
	if err != nil {
		return nil, err
	}
	if len(l.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range l.Extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// Active reports whether the lead is visible to read-facing views.
func (l *Lead) Active() bool {
	return l.DeletedAt == nil
}

// Clone returns a deep copy, so callers can hand leads to listeners
// without sharing slices or pointers with the store.
func (l Lead) Clone() Lead {
	out := l
	if l.DeletedAt != nil {
		v := *l.DeletedAt
		out.DeletedAt = &v
	}
	if l.OriginRating != nil {
		v := *l.OriginRating
		out.OriginRating = &v
	}
	if l.NeedsNextContactOverride != nil {
		v := *l.NeedsNextContactOverride
		out.NeedsNextContactOverride = &v
	}
	if l.CallbackRequesterNameManual != nil {
		v := *l.CallbackRequesterNameManual
		out.CallbackRequesterNameManual = &v
	}
	if l.PaidValueCustom != nil {
		v := *l.PaidValueCustom
		out.PaidValueCustom = &v
	}
	if l.CustomScript != nil {
		v := *l.CustomScript
		out.CustomScript = &v
	}
	out.Decisors = append([]Contact(nil), l.Decisors...)
	out.Attendants = append([]Contact(nil), l.Attendants...)
	out.References = append([]Reference(nil), l.References...)
	out.SitePainPoints = append([]string(nil), l.SitePainPoints...)
	if l.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(l.Extra))
		for k, v := range l.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
