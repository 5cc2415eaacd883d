package engine

import (
	"slices"
	"strconv"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// IwlanOptions configures the IWLAN reconstructors.
type IwlanOptions struct {
	// Strict refuses to pair a legacy response that carries no serial with the most
	// recent open request. The response is reported as a diagnostic instead.
	Strict bool
	Bounds Bounds
}

// iwlanFlow names the kinds of one IWLAN exchange.
type iwlanFlow struct {
	family   Family
	request  pattern.Kind
	response pattern.Kind
	// ack is an optional second completion that is preferred for the duration.
	ack pattern.Kind
}

var (
	iwlanSetupFlow = iwlanFlow{
		family:   FamilyIwlanDataCall,
		request:  pattern.IwlanSetupRequest,
		response: pattern.IwlanSetupResponse,
	}
	iwlanDeactivateFlow = iwlanFlow{
		family:   FamilyIwlanDeactivate,
		request:  pattern.IwlanDeactivateRequest,
		response: pattern.IwlanDeactivateResponse,
		ack:      pattern.IwlanSendAck,
	}
)

type iwlanReconstructor struct {
	flow iwlanFlow
	opts IwlanOptions
	out  Output

	// legacy dialect
	bySerial map[int]int
	lastOpen int

	// whi dialect
	queue   []int
	whiSeen int
}

// ReconstructSetupDataCallOnIwlan pairs IWLAN setup requests with their responses.
// Legacy records pair by serial; whi records pair positionally.
func ReconstructSetupDataCallOnIwlan(events []pattern.Event, opts IwlanOptions) Output {
	return runIwlan(events, iwlanSetupFlow, opts)
}

// ReconstructDeactivateDataCallOnIwlan pairs IWLAN deactivation requests with their
// responses and, in the legacy dialect, the ACK sent for the request serial.
func ReconstructDeactivateDataCallOnIwlan(events []pattern.Event, opts IwlanOptions) Output {
	return runIwlan(events, iwlanDeactivateFlow, opts)
}

// HasKinds reports whether any event carries one of kinds.
func HasKinds(events []pattern.Event, kinds ...pattern.Kind) bool {
	for i := range events {
		for _, tag := range events[i].Tags {
			if slices.Contains(kinds, tag.Kind) {
				return true
			}
		}
	}
	return false
}

func runIwlan(events []pattern.Event, flow iwlanFlow, opts IwlanOptions) Output {
	r := &iwlanReconstructor{
		flow:     flow,
		opts:     opts,
		out:      Output{Family: flow.family},
		bySerial: make(map[int]int),
		lastOpen: -1,
	}
	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch {
			case tag.Kind == flow.request && tag.Dialect == pattern.DialectWhi:
				r.whiRequest(ev, tag)
			case tag.Kind == flow.response && tag.Dialect == pattern.DialectWhi:
				r.whiResponse(ev, tag)
			case tag.Kind == flow.request:
				r.legacyRequest(ev, tag)
			case tag.Kind == flow.response:
				r.legacyResponse(ev, tag)
			case flow.ack != pattern.KindUnknown && tag.Kind == flow.ack:
				r.legacyAck(ev, tag)
			}
		}
	}
	return r.finish()
}

func (r *iwlanReconstructor) open(ev *pattern.Event, tag pattern.Tag, key string) int {
	t := Transaction{
		Family:  r.flow.family,
		Key:     key,
		Request: newStep(ev, tag),
	}
	t.label("dialect", tag.Dialect.String())
	if cid, ok := tag.Attrs.Get("cid"); ok {
		t.label("cid", cid)
	}
	if slot, ok := tag.Attrs.Get("slot"); ok {
		t.label("slot", slot)
	}
	malformed(&t, tag)
	r.out.Transactions = append(r.out.Transactions, t)
	return len(r.out.Transactions) - 1
}

func (r *iwlanReconstructor) legacyRequest(ev *pattern.Event, tag pattern.Tag) {
	serial, ok := tag.Attrs.Int("serial")
	key := "legacy@" + strconv.Itoa(ev.Index)
	if ok {
		key = strconv.Itoa(serial)
		if prev, dup := r.bySerial[serial]; dup && r.out.Transactions[prev].Response == nil {
			t := &r.out.Transactions[prev]
			t.note(Ambiguous, "superseded by a new request with the same serial")
			t.missing(r.flow.response, "no "+r.flow.response.String())
		}
	}
	idx := r.open(ev, tag, key)
	if ok {
		r.bySerial[serial] = idx
	} else {
		r.out.Transactions[idx].note(MissingEvent, "request carries no serial")
	}
	r.lastOpen = idx
}

func (r *iwlanReconstructor) legacyResponse(ev *pattern.Event, tag pattern.Tag) {
	idx, fallback, ok := r.lookupLegacy(ev, tag)
	if !ok {
		return
	}
	t := &r.out.Transactions[idx]
	if t.Response != nil || t.Status == StatusFailure {
		t.note(Ambiguous, "duplicate response ignored")
		return
	}
	if fallback {
		t.note(Ambiguous, "response without serial paired with the most recent open request")
	}
	t.Response = newStep(ev, tag)
	malformed(t, tag)
	if r.lastOpen == idx {
		r.lastOpen = -1
	}

	if slices.Contains(tag.Malformed, "cause") {
		r.close(idx)
		return
	}
	if cause, ok := tag.Attrs.Int("cause"); ok && cause != 0 {
		t.fail(cause)
		r.close(idx)
		return
	}
	if t.Completion == nil {
		t.Duration = span(t.Request, t.Response)
	}
	t.Status = StatusSuccess
	if r.flow.ack == pattern.KindUnknown || t.Completion != nil {
		r.close(idx)
	}
}

func (r *iwlanReconstructor) legacyAck(ev *pattern.Event, tag pattern.Tag) {
	serial, ok := tag.Attrs.Int("serial")
	if !ok {
		return
	}
	idx, ok := r.bySerial[serial]
	if !ok {
		// ACKs are sent for every request kind; only ours are of interest.
		return
	}
	t := &r.out.Transactions[idx]
	if t.Completion != nil {
		return
	}
	t.Completion = newStep(ev, tag)
	t.Duration = span(t.Request, t.Completion)
	t.Status = StatusSuccess
	if t.Response != nil {
		r.close(idx)
	}
}

// lookupLegacy finds the open request a legacy response belongs to.
func (r *iwlanReconstructor) lookupLegacy(ev *pattern.Event, tag pattern.Tag) (idx int, fallback, ok bool) {
	if serial, has := tag.Attrs.Int("serial"); has {
		idx, ok = r.bySerial[serial]
		if !ok {
			r.out.Diagnostics = append(r.out.Diagnostics,
				diag(ev, tag.Kind, Ambiguous, "response without an open request for serial "+strconv.Itoa(serial)))
		}
		return idx, false, ok
	}
	if r.lastOpen < 0 {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without serial and no open request"))
		return 0, false, false
	}
	if r.opts.Strict {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without serial rejected"))
		return 0, false, false
	}
	return r.lastOpen, true, true
}

func (r *iwlanReconstructor) close(idx int) {
	for serial, i := range r.bySerial {
		if i == idx {
			delete(r.bySerial, serial)
			return
		}
	}
}

func (r *iwlanReconstructor) whiRequest(ev *pattern.Event, tag pattern.Tag) {
	idx := r.open(ev, tag, "whi-"+strconv.Itoa(r.whiSeen))
	r.whiSeen++
	r.queue = append(r.queue, idx)
}

func (r *iwlanReconstructor) whiResponse(ev *pattern.Event, tag pattern.Tag) {
	if len(r.queue) == 0 {
		r.out.Diagnostics = append(r.out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without an open request"))
		return
	}
	idx := r.queue[0]
	r.queue = r.queue[1:]
	t := &r.out.Transactions[idx]
	t.Response = newStep(ev, tag)
	t.Duration = span(t.Request, t.Response)
	t.Status = StatusSuccess
}

func (r *iwlanReconstructor) finish() Output {
	for i := range r.out.Transactions {
		t := &r.out.Transactions[i]
		if t.Status == StatusIncomplete && t.Response == nil && t.Completion == nil && !slices.Contains(t.Missing, r.flow.response) {
			t.missing(r.flow.response, "no "+r.flow.response.String())
		}
	}
	bounds(r.opts.Bounds).sealAll(r.out.Transactions)
	return r.out
}
