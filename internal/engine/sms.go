package engine

import (
	"slices"
	"strconv"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// MtBodyPending is the body of an MT arrival whose content has not been seen yet.
const MtBodyPending = "MT SMS body not yet found"

// imsSendStatusOK is the dispatcher's status for an accepted message.
const imsSendStatusOK = 1

// SmsOptions configures the SMS reconstructors.
type SmsOptions struct {
	// OverIms reads MT arrivals from the IMS dispatcher instead of RIL.
	OverIms bool
	Bounds  Bounds
}

// fifo is a queue of open transaction indices.
type fifo []int

func (q *fifo) push(i int) { *q = append(*q, i) }

func (q *fifo) pop() (int, bool) {
	if len(*q) == 0 {
		return 0, false
	}
	i := (*q)[0]
	*q = (*q)[1:]
	return i, true
}

// ReconstructMoSms rebuilds outbound SMS sent over RIL. The body of the most recent
// smsSendTextMessage is carried into the next request. SEND_SMS responses close the
// open transaction in log order and a later delivery report completes it.
func ReconstructMoSms(events []pattern.Event, opts SmsOptions) Output {
	out := Output{Family: FamilySms}
	var body string
	open, awaiting := -1, -1

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case pattern.SmsSendText:
				body, _ = tag.Attrs.Get("body")

			case pattern.SmsSendRequest:
				if open >= 0 {
					// Further parts of a multipart message.
					continue
				}
				t := Transaction{
					Family:  FamilySms,
					Key:     "sms-" + strconv.Itoa(len(out.Transactions)),
					Request: newStep(ev, tag),
					Body:    body,
				}
				if phone, ok := tag.Attrs.Get("phone"); ok {
					t.label("phone", phone)
				}
				body = ""
				out.Transactions = append(out.Transactions, t)
				open = len(out.Transactions) - 1

			case pattern.SmsSendResponse:
				if open < 0 {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "response without an open request"))
					continue
				}
				t := &out.Transactions[open]
				if msg, bad := tag.Attrs.Get("error"); bad {
					t.note(Ambiguous, "error response ignored: "+msg)
					continue
				}
				t.Response = newStep(ev, tag)
				malformed(t, tag)
				if ref, ok := tag.Attrs.Get("message_ref"); ok {
					t.label("message_ref", ref)
				}
				t.Duration = span(t.Request, t.Response)
				t.Status = StatusSuccess
				awaiting, open = open, -1

			case pattern.SmsDeliverSuccess:
				if awaiting < 0 {
					continue
				}
				t := &out.Transactions[awaiting]
				t.Completion = newStep(ev, tag)
				t.Secondary = span(t.Request, t.Completion)
				awaiting = -1

			case pattern.SmsDeliverFailure:
				if awaiting < 0 {
					continue
				}
				t := &out.Transactions[awaiting]
				t.Status = StatusFailure
				t.label("delivery", "failed")
				awaiting = -1
			}
		}
	}
	if open >= 0 {
		out.Transactions[open].missing(pattern.SmsSendResponse, "no SmsSendResponse")
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}

// ReconstructMoSmsIms rebuilds outbound SMS sent through the IMS dispatcher. The
// dispatcher logs no correlation id, so the n-th result closes the n-th send.
// Reordering records, even among equal timestamps, changes the pairs formed.
func ReconstructMoSmsIms(events []pattern.Event, opts SmsOptions) Output {
	out := Output{Family: FamilyImsSms}
	var (
		body string
		q    fifo
	)

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case pattern.SmsSendText:
				body, _ = tag.Attrs.Get("body")

			case pattern.ImsSmsSendRequest:
				t := Transaction{
					Family:  FamilyImsSms,
					Key:     "ims-sms-" + strconv.Itoa(len(out.Transactions)),
					Request: newStep(ev, tag),
					Body:    body,
				}
				if slot, ok := tag.Attrs.Get("slot"); ok {
					t.label("slot", slot)
				}
				body = ""
				out.Transactions = append(out.Transactions, t)
				q.push(len(out.Transactions) - 1)

			case pattern.ImsSmsSendResponse:
				idx, ok := q.pop()
				if !ok {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "result without an open send"))
					continue
				}
				t := &out.Transactions[idx]
				t.Response = newStep(ev, tag)
				malformed(t, tag)
				if token, ok := tag.Attrs.Get("token"); ok {
					t.label("token", token)
				}
				if slices.Contains(tag.Malformed, "status") {
					continue
				}
				status, ok := tag.Attrs.Int("status")
				switch {
				case !ok:
					t.note(Ambiguous, "result carries no status; assumed accepted")
				case status != imsSendStatusOK:
					t.fail(status)
					continue
				}
				t.Duration = span(t.Request, t.Response)
				t.Status = StatusSuccess
			}
		}
	}
	for _, idx := range q {
		out.Transactions[idx].missing(pattern.ImsSmsSendResponse, "no ImsSmsSendResponse")
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}

// ReconstructMtSms rebuilds inbound SMS. Each arrival starts with a pending body
// that the first following received-content record fills in.
func ReconstructMtSms(events []pattern.Event, opts SmsOptions) Output {
	arrival := pattern.UnsolResponseNewSms
	if opts.OverIms {
		arrival = pattern.ImsSmsReceived
	}
	out := Output{Family: FamilyMtSms}
	var unresolved fifo

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case arrival:
				t := Transaction{
					Family:  FamilyMtSms,
					Key:     "mt-sms-" + strconv.Itoa(len(out.Transactions)),
					Request: newStep(ev, tag),
					Body:    MtBodyPending,
				}
				out.Transactions = append(out.Transactions, t)
				unresolved.push(len(out.Transactions) - 1)

			case pattern.SmsReceivedContent:
				idx, ok := unresolved.pop()
				if !ok {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "received content without a pending arrival"))
					continue
				}
				t := &out.Transactions[idx]
				t.Completion = newStep(ev, tag)
				t.Body, _ = tag.Attrs.Get("body")
				t.Duration = span(t.Request, t.Completion)
				t.Status = StatusSuccess
			}
		}
	}
	for _, idx := range unresolved {
		out.Transactions[idx].missing(pattern.SmsReceivedContent, "no SmsReceivedContent")
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}
