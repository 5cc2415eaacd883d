package engine

import "github.com/coffersTech/nanotel/internal/pattern"

// CorrelateSmsDelivery joins sender transactions with receiver arrivals by body.
// For every MO transaction the first unclaimed MT transaction, in arrival order,
// with an identical body and an arrival strictly after the MO request is taken.
// The delivery time is MT arrival minus MO request.
func CorrelateSmsDelivery(mo, mt Output, b Bounds) Output {
	out := Output{Family: FamilySmsDelivery}
	claimed := make([]bool, len(mt.Transactions))

	for _, send := range mo.Transactions {
		t := Transaction{
			Family:  FamilySmsDelivery,
			Key:     send.Key,
			Request: send.Request,
			Body:    send.Body,
		}
		if send.Body == "" {
			t.note(MissingEvent, "sent message body unknown")
			t.Missing = append(t.Missing, pattern.SmsSendText)
			out.Transactions = append(out.Transactions, t)
			continue
		}
		for j := range mt.Transactions {
			recv := &mt.Transactions[j]
			if claimed[j] || recv.Body != send.Body || recv.Request == nil {
				continue
			}
			if !recv.Request.Time().After(send.Request.Time()) {
				continue
			}
			claimed[j] = true
			t.Completion = recv.Request
			t.Duration = span(t.Request, t.Completion)
			t.Status = StatusSuccess
			t.label("mt_key", recv.Key)
			break
		}
		if t.Completion == nil {
			t.missing(pattern.UnsolResponseNewSms, "no matching arrival on the receiving device")
		}
		out.Transactions = append(out.Transactions, t)
	}
	bounds(b).sealAll(out.Transactions)
	return out
}
