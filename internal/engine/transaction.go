package engine

import (
	"encoding/json"
	"time"

	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/pattern"
)

// Family selects the reconstructor for a transaction.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyDataCall
	FamilyIwlanDataCall
	FamilyDeactivate
	FamilyIwlanDeactivate
	FamilyImsReg
	FamilySms
	FamilyImsSms
	FamilyMtSms
	FamilyMms
	FamilySmsDelivery
	FamilyVoiceCall
)

var familyNames = map[Family]string{
	FamilyUnknown:         "unknown",
	FamilyDataCall:        "data_call",
	FamilyIwlanDataCall:   "iwlan_data_call",
	FamilyDeactivate:      "deactivate",
	FamilyIwlanDeactivate: "iwlan_deactivate",
	FamilyImsReg:          "ims_reg",
	FamilySms:             "sms",
	FamilyImsSms:          "ims_sms",
	FamilyMtSms:           "mt_sms",
	FamilyMms:             "mms",
	FamilySmsDelivery:     "sms_delivery",
	FamilyVoiceCall:       "voice_call",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return familyNames[FamilyUnknown]
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFamily resolves a family by its snake_case name.
func ParseFamily(name string) (Family, bool) {
	for f, n := range familyNames {
		if f != FamilyUnknown && n == name {
			return f, true
		}
	}
	return FamilyUnknown, false
}

// Status is the outcome of a transaction. The zero value is Incomplete.
type Status int

const (
	StatusIncomplete Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "incomplete"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Class is the error taxonomy for notes.
type Class int

const (
	// MissingEvent: a required endpoint never showed up.
	MissingEvent Class = iota + 1
	// MalformedAttribute: a numeric attribute did not parse.
	MalformedAttribute
	// Ambiguous: duplicate or orphan responses, fallback pairings.
	Ambiguous
	// OutOfBounds: duration above the family ceiling or negative.
	OutOfBounds
)

func (c Class) String() string {
	switch c {
	case MissingEvent:
		return "missing_event"
	case MalformedAttribute:
		return "malformed_attribute"
	case Ambiguous:
		return "ambiguous"
	case OutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Note is a diagnostic attached to a transaction.
type Note struct {
	Class Class  `json:"class"`
	Text  string `json:"text"`
}

// Diagnostic is a stream-level note that could not be attached to any transaction,
// such as a response with no preceding request.
type Diagnostic struct {
	Index int          `json:"index"`
	Kind  pattern.Kind `json:"kind"`
	Note
}

// Step is one record playing a role in a transaction.
type Step struct {
	Kind   pattern.Kind
	Record *model.LogRecord
	Attrs  pattern.Attrs
}

func newStep(ev *pattern.Event, tag pattern.Tag) *Step {
	return &Step{Kind: tag.Kind, Record: ev.Record, Attrs: tag.Attrs}
}

// Time returns the step's record timestamp.
func (s *Step) Time() time.Time {
	return s.Record.Timestamp
}

func (s *Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      pattern.Kind      `json:"kind"`
		Timestamp time.Time         `json:"timestamp"`
		MessageID string            `json:"message_id,omitempty"`
		Text      string            `json:"text"`
		Attrs     map[string]string `json:"attrs,omitempty"`
	}{s.Kind, s.Record.Timestamp, s.Record.MessageID, s.Record.Text, s.Attrs})
}

// CallType labels a voice call by the radio path it was set up on.
type CallType string

const (
	CallTypeVoLTE  CallType = "VoLTE"
	CallTypeVoWiFi CallType = "VoWiFi"
	CallTypeCSFB   CallType = "CSFB"
	CallTypeCS     CallType = "CS"
)

// Transaction is one reconstructed protocol exchange. Transactions are built by a
// reconstructor and never modified after it returns.
type Transaction struct {
	Family Family
	Key    string

	// Trigger is an event that precedes the request and may anchor the duration,
	// e.g. the SetPreferredDataModem of a DDS switch.
	Trigger    *Step
	Request    *Step
	Response   *Step
	Completion *Step
	// Validation is the captive-portal probe that validated an LTE data call.
	Validation *Step

	Duration  *time.Duration
	Secondary *time.Duration
	Status    Status
	Cause     *int
	// Flagged is set when Duration exceeds the family ceiling.
	Flagged bool

	Missing []pattern.Kind
	Notes   []Note
	Labels  map[string]string

	Body     string
	CallType CallType
}

func (t *Transaction) note(class Class, text string) {
	t.Notes = append(t.Notes, Note{Class: class, Text: text})
}

func (t *Transaction) missing(k pattern.Kind, text string) {
	t.Missing = append(t.Missing, k)
	t.note(MissingEvent, text)
}

func (t *Transaction) label(key, value string) {
	if value == "" {
		return
	}
	if t.Labels == nil {
		t.Labels = make(map[string]string)
	}
	t.Labels[key] = value
}

func (t *Transaction) fail(cause int) {
	t.Status = StatusFailure
	t.Cause = &cause
	t.Duration = nil
	t.Secondary = nil
	t.Completion = nil
}

// HasNote reports whether a note of the given class is attached.
func (t *Transaction) HasNote(class Class) bool {
	for _, n := range t.Notes {
		if n.Class == class {
			return true
		}
	}
	return false
}

// DurationSeconds returns the duration in seconds, if any.
func (t *Transaction) DurationSeconds() (float64, bool) {
	if t.Duration == nil {
		return 0, false
	}
	return t.Duration.Seconds(), true
}

func seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	s := d.Seconds()
	return &s
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Family                   Family            `json:"family"`
		Key                      string            `json:"key"`
		Trigger                  *Step             `json:"trigger,omitempty"`
		Request                  *Step             `json:"request"`
		Response                 *Step             `json:"response,omitempty"`
		Completion               *Step             `json:"completion,omitempty"`
		Validation               *Step             `json:"validation,omitempty"`
		DurationSeconds          *float64          `json:"duration_seconds"`
		SecondaryDurationSeconds *float64          `json:"secondary_duration_seconds"`
		Status                   Status            `json:"status"`
		Cause                    *int              `json:"cause,omitempty"`
		Flagged                  bool              `json:"flagged,omitempty"`
		Missing                  []pattern.Kind    `json:"missing,omitempty"`
		Notes                    []Note            `json:"notes,omitempty"`
		Labels                   map[string]string `json:"labels,omitempty"`
		Body                     string            `json:"body,omitempty"`
		CallType                 CallType          `json:"call_type,omitempty"`
	}{
		t.Family, t.Key, t.Trigger, t.Request, t.Response, t.Completion, t.Validation,
		seconds(t.Duration), seconds(t.Secondary), t.Status, t.Cause, t.Flagged,
		t.Missing, t.Notes, t.Labels, t.Body, t.CallType,
	})
}

// Output is what every reconstructor returns.
type Output struct {
	Family       Family
	Transactions []Transaction
	Diagnostics  []Diagnostic
}

// ByKey indexes transactions by correlation key. When a key was reused the latest
// transaction wins.
func (o *Output) ByKey() map[string]*Transaction {
	m := make(map[string]*Transaction, len(o.Transactions))
	for i := range o.Transactions {
		m[o.Transactions[i].Key] = &o.Transactions[i]
	}
	return m
}

// Completed returns the transactions that ended in success or failure.
func (o *Output) Completed() []Transaction {
	var out []Transaction
	for _, t := range o.Transactions {
		if t.Status != StatusIncomplete {
			out = append(out, t)
		}
	}
	return out
}

// Bounds holds the per-family sanity ceilings.
type Bounds map[Family]time.Duration

// DefaultBounds returns the ceilings used when the caller supplies none.
func DefaultBounds() Bounds {
	return Bounds{
		FamilyDataCall:        30 * time.Second,
		FamilyIwlanDataCall:   30 * time.Second,
		FamilyDeactivate:      30 * time.Second,
		FamilyIwlanDeactivate: 30 * time.Second,
		FamilyImsReg:          120 * time.Second,
		FamilySms:             60 * time.Second,
		FamilyImsSms:          60 * time.Second,
		FamilyMtSms:           60 * time.Second,
		FamilyMms:             120 * time.Second,
		FamilySmsDelivery:     120 * time.Second,
		FamilyVoiceCall:       60 * time.Second,
	}
}

// span measures from a to b.
func span(a, b *Step) *time.Duration {
	d := b.Time().Sub(a.Time())
	return &d
}

// seal enforces the duration bounds on a finished transaction.
func (b Bounds) seal(t *Transaction) {
	if t.Status == StatusFailure {
		t.Duration = nil
		t.Secondary = nil
		return
	}
	if t.Duration != nil && *t.Duration < 0 {
		t.Duration = nil
		t.Status = StatusIncomplete
		t.note(OutOfBounds, "negative duration discarded")
	}
	if t.Secondary != nil && *t.Secondary < 0 {
		t.Secondary = nil
		t.note(OutOfBounds, "negative secondary duration discarded")
	}
	if t.Duration == nil {
		return
	}
	if ceiling, ok := b[t.Family]; ok && ceiling > 0 && *t.Duration > ceiling {
		t.Flagged = true
		t.note(OutOfBounds, "duration "+t.Duration.String()+" exceeds ceiling "+ceiling.String())
	}
}

func (b Bounds) sealAll(txs []Transaction) {
	for i := range txs {
		b.seal(&txs[i])
	}
}

func diag(ev *pattern.Event, kind pattern.Kind, class Class, text string) Diagnostic {
	return Diagnostic{Index: ev.Index, Kind: kind, Note: Note{Class: class, Text: text}}
}

// malformed turns a tag's malformed attributes into notes.
func malformed(t *Transaction, tag pattern.Tag) {
	for _, name := range tag.Malformed {
		t.note(MalformedAttribute, tag.Kind.String()+": attribute "+name+" did not parse")
	}
}
