package engine

import (
	"strconv"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// DeactivateOptions configures the RIL deactivation reconstructor.
type DeactivateOptions struct {
	Bounds Bounds
}

type openDeactivate struct {
	idx       int
	cid       int
	cidOK     bool
	responded bool
}

// ReconstructDeactivateDataCall pairs DEACTIVATE_DATA_CALL requests and responses by
// message id. A transaction completes on the first UNSOL_DATA_CALL_LIST_CHANGED after
// the response that mentions the request's cid.
func ReconstructDeactivateDataCall(events []pattern.Event, opts DeactivateOptions) Output {
	out := Output{Family: FamilyDeactivate}
	open := make(map[string]*openDeactivate)
	// awaiting holds responded transactions in response order.
	var awaiting []*openDeactivate

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case pattern.DeactivateDataCallRequest:
				if tag.AmbiguousID {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "request without message id ignored"))
					continue
				}
				id := ev.Record.MessageID
				if prev, ok := open[id]; ok {
					t := &out.Transactions[prev.idx]
					t.note(Ambiguous, "superseded by a new request with the same message id")
					t.missing(pattern.DeactivateDataCallResponse, "no DeactivateDataCallResponse")
				}
				t := Transaction{Family: FamilyDeactivate, Key: id, Request: newStep(ev, tag)}
				malformed(&t, tag)
				o := &openDeactivate{}
				o.cid, o.cidOK = tag.Attrs.Int("cid")
				if o.cidOK {
					t.label("cid", strconv.Itoa(o.cid))
				} else {
					t.note(MissingEvent, "request carries no cid")
				}
				out.Transactions = append(out.Transactions, t)
				o.idx = len(out.Transactions) - 1
				open[id] = o

			case pattern.DeactivateDataCallResponse:
				if tag.AmbiguousID {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without message id ignored"))
					continue
				}
				id := ev.Record.MessageID
				o, ok := open[id]
				if !ok {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without a preceding request for id "+id))
					continue
				}
				t := &out.Transactions[o.idx]
				if o.responded {
					t.note(Ambiguous, "duplicate response ignored")
					continue
				}
				t.Response = newStep(ev, tag)
				malformed(t, tag)
				o.responded = true
				delete(open, id)
				if o.cidOK {
					awaiting = append(awaiting, o)
				}

			case pattern.UnsolDataCallListChanged:
				for j, o := range awaiting {
					if !pattern.MentionsCID(ev.Record.Text, o.cid) {
						continue
					}
					t := &out.Transactions[o.idx]
					t.Completion = newStep(ev, tag)
					t.Duration = span(t.Request, t.Completion)
					t.Status = StatusSuccess
					awaiting = append(awaiting[:j], awaiting[j+1:]...)
					break
				}
			}
		}
	}

	for i := range out.Transactions {
		t := &out.Transactions[i]
		if t.Status != StatusIncomplete {
			continue
		}
		switch {
		case t.Response == nil:
			if !t.HasNote(Ambiguous) {
				t.missing(pattern.DeactivateDataCallResponse, "no DeactivateDataCallResponse")
			}
		default:
			t.missing(pattern.UnsolDataCallListChanged, "no UnsolDataCallListChanged mentioning the deactivated cid")
		}
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}
