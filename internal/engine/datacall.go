package engine

import (
	"slices"
	"strconv"
	"strings"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// SetupOptions selects which RIL data calls are reconstructed.
type SetupOptions struct {
	// APN filters requests by access point name. Empty accepts every request.
	APN string
	// DDSSwitch measures durations from the preceding SetPreferredDataModem and
	// accepts requests on any slot.
	DDSSwitch bool
	// DDSSlot is the slot currently providing mobile data; -1 accepts any slot.
	DDSSlot int
	Bounds  Bounds
}

type setupState int

const (
	setupRequested setupState = iota + 1
	setupResponded
	setupValidating
)

type openSetup struct {
	idx   int
	state setupState
	cid   int
	cidOK bool
	ims   bool
}

type setupReconstructor struct {
	opts  SetupOptions
	out   Output
	open  map[string]*openSetup
	dds   *Step
	last  string
	valid *openSetup
}

// ReconstructSetupDataCall pairs SETUP_DATA_CALL requests and responses by message
// id and closes each transaction on the UNSOL_DATA_CALL_LIST_CHANGED that names
// its cid. Non-IMS calls additionally pick up the captive-portal validation.
func ReconstructSetupDataCall(events []pattern.Event, opts SetupOptions) Output {
	r := &setupReconstructor{
		opts: opts,
		out:  Output{Family: FamilyDataCall},
		open: make(map[string]*openSetup),
	}
	for i := range events {
		r.feed(&events[i])
	}
	return r.finish()
}

func (r *setupReconstructor) feed(ev *pattern.Event) {
	for _, tag := range ev.Tags {
		switch tag.Kind {
		case pattern.SetPreferredDataModem:
			r.dds = newStep(ev, tag)
		case pattern.SetupDataCallRequest:
			r.request(ev, tag)
		case pattern.SetupDataCallResponse:
			r.response(ev, tag)
		case pattern.UnsolDataCallListChanged:
			r.unsol(ev, tag)
		case pattern.IsCaptivePortalSuccess:
			r.captivePortal(ev, tag)
		}
	}
}

func (r *setupReconstructor) acceptAPN(ev *pattern.Event, tag pattern.Tag) bool {
	if r.opts.APN == "" {
		return true
	}
	if apn, ok := tag.Attrs.Get("apn"); ok {
		return strings.EqualFold(apn, r.opts.APN)
	}
	return strings.Contains(ev.Record.Text, r.opts.APN)
}

func (r *setupReconstructor) acceptSlot(tag pattern.Tag) bool {
	if r.opts.DDSSwitch || r.opts.DDSSlot < 0 {
		return true
	}
	slot, ok := tag.Attrs.Int("slot")
	return !ok || slot == r.opts.DDSSlot
}

func (r *setupReconstructor) request(ev *pattern.Event, tag pattern.Tag) {
	if tag.AmbiguousID {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "request without message id ignored"))
		return
	}
	if !r.acceptAPN(ev, tag) || !r.acceptSlot(tag) {
		return
	}
	id := ev.Record.MessageID
	if prev, ok := r.open[id]; ok {
		r.abandon(prev, "superseded by a new request with the same message id")
	}

	t := Transaction{
		Family:  FamilyDataCall,
		Key:     id,
		Request: newStep(ev, tag),
		Trigger: r.dds,
	}
	apn, _ := tag.Attrs.Get("apn")
	if apn == "" {
		apn = r.opts.APN
	}
	t.label("apn", apn)
	if phone, ok := tag.Attrs.Get("phone"); ok {
		t.label("phone", phone)
	}
	malformed(&t, tag)
	r.dds = nil

	r.out.Transactions = append(r.out.Transactions, t)
	r.open[id] = &openSetup{
		idx:   len(r.out.Transactions) - 1,
		state: setupRequested,
		ims:   strings.EqualFold(apn, "ims"),
	}
}

func (r *setupReconstructor) response(ev *pattern.Event, tag pattern.Tag) {
	if tag.AmbiguousID {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without message id ignored"))
		return
	}
	id := ev.Record.MessageID
	o, ok := r.open[id]
	if !ok {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without a preceding request for id "+id))
		return
	}
	t := &r.out.Transactions[o.idx]
	if o.state != setupRequested {
		t.note(Ambiguous, "duplicate response ignored")
		return
	}
	t.Response = newStep(ev, tag)
	malformed(t, tag)

	if ifname, ok := tag.Attrs.Get("ifname"); ok {
		t.label("ifname", ifname)
	}
	if slices.Contains(tag.Malformed, "cause") {
		t.note(Ambiguous, "unexpected response cause; transaction left incomplete")
		delete(r.open, id)
		return
	}
	cause, causeOK := tag.Attrs.Int("cause")
	if causeOK && cause != 0 {
		t.fail(cause)
		delete(r.open, id)
		return
	}
	if !causeOK {
		t.note(Ambiguous, "response cause missing")
	}

	o.cid, o.cidOK = tag.Attrs.Int("cid")
	if o.cidOK {
		t.label("cid", strconv.Itoa(o.cid))
	}
	o.state = setupResponded
	r.last = id
}

func (r *setupReconstructor) unsol(ev *pattern.Event, tag pattern.Tag) {
	o, ok := r.open[r.last]
	if !ok || o.state != setupResponded || !o.cidOK {
		return
	}
	if !pattern.MentionsCID(ev.Record.Text, o.cid) {
		return
	}
	t := &r.out.Transactions[o.idx]
	t.Completion = newStep(ev, tag)
	from := t.Request
	if r.opts.DDSSwitch {
		if t.Trigger != nil {
			from = t.Trigger
		} else {
			t.note(MissingEvent, "no SetPreferredDataModem before request; measured from request")
		}
	}
	t.Duration = span(from, t.Completion)
	t.Status = StatusSuccess
	delete(r.open, r.last)

	if o.ims {
		return
	}
	o.state = setupValidating
	r.valid = o
}

func (r *setupReconstructor) captivePortal(ev *pattern.Event, tag pattern.Tag) {
	if r.valid == nil {
		return
	}
	t := &r.out.Transactions[r.valid.idx]
	t.Validation = newStep(ev, tag)
	t.Secondary = span(t.Response, t.Validation)
	r.valid = nil
}

func (r *setupReconstructor) abandon(o *openSetup, why string) {
	t := &r.out.Transactions[o.idx]
	t.Status = StatusIncomplete
	t.note(Ambiguous, why)
	r.noteMissing(t, o)
}

func (r *setupReconstructor) noteMissing(t *Transaction, o *openSetup) {
	switch o.state {
	case setupRequested:
		t.missing(pattern.SetupDataCallResponse, "no SetupDataCallResponse")
	case setupResponded:
		if o.cidOK {
			t.missing(pattern.UnsolDataCallListChanged, "no UnsolDataCallListChanged mentioning cid "+strconv.Itoa(o.cid))
		} else {
			t.missing(pattern.UnsolDataCallListChanged, "response carried no usable cid")
		}
	}
}

func (r *setupReconstructor) finish() Output {
	for _, o := range r.open {
		r.noteMissing(&r.out.Transactions[o.idx], o)
	}
	bounds(r.opts.Bounds).sealAll(r.out.Transactions)
	return r.out
}

func bounds(b Bounds) Bounds {
	if b == nil {
		return DefaultBounds()
	}
	return b
}
