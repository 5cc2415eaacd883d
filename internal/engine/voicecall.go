package engine

import (
	"strconv"
	"strings"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// VoiceOptions configures the call-setup reconstructor.
type VoiceOptions struct {
	Bounds Bounds
}

// ReconstructCallSetup rebuilds mobile-originated call setups. Each dial is closed by
// the next alerting indication and labelled with the radio path it was placed on:
// IMS dials are VoWiFi when MMTel last connected over WLAN and VoLTE otherwise; RIL
// dials are CSFB when the data RAT was LTE or NR and CS otherwise.
func ReconstructCallSetup(events []pattern.Event, opts VoiceOptions) Output {
	out := Output{Family: FamilyVoiceCall}
	var (
		lastRAT   string
		overWLAN  bool
		alerting  fifo
		byMessage = make(map[string]int)
	)

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case pattern.DataRatChanged:
				lastRAT, _ = tag.Attrs.Get("rat")
			case pattern.ImsMmTelConnected4g:
				overWLAN = false
			case pattern.ImsMmTelConnectedIwlan:
				overWLAN = true

			case pattern.DialRequest:
				if tag.AmbiguousID {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "dial without message id ignored"))
					continue
				}
				t := Transaction{
					Family:   FamilyVoiceCall,
					Key:      ev.Record.MessageID,
					Request:  newStep(ev, tag),
					CallType: CallTypeCS,
				}
				if isPacketRAT(lastRAT) {
					t.CallType = CallTypeCSFB
				}
				t.label("rat", lastRAT)
				out.Transactions = append(out.Transactions, t)
				byMessage[t.Key] = len(out.Transactions) - 1
				alerting.push(len(out.Transactions) - 1)

			case pattern.DialResponse:
				if tag.AmbiguousID {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "dial response without message id ignored"))
					continue
				}
				idx, ok := byMessage[ev.Record.MessageID]
				if !ok {
					out.Diagnostics = append(out.Diagnostics, diag(ev, tag.Kind, Ambiguous, "dial response without a preceding dial"))
					continue
				}
				delete(byMessage, ev.Record.MessageID)
				out.Transactions[idx].Response = newStep(ev, tag)

			case pattern.ImsDialRequest:
				t := Transaction{
					Family:   FamilyVoiceCall,
					Key:      "ims-dial-" + strconv.Itoa(len(out.Transactions)),
					Request:  newStep(ev, tag),
					CallType: CallTypeVoLTE,
				}
				if overWLAN {
					t.CallType = CallTypeVoWiFi
				}
				out.Transactions = append(out.Transactions, t)
				alerting.push(len(out.Transactions) - 1)

			case pattern.CallAlerting:
				idx, ok := alerting.pop()
				if !ok {
					// Incoming calls alert too.
					continue
				}
				t := &out.Transactions[idx]
				t.Completion = newStep(ev, tag)
				t.Duration = span(t.Request, t.Completion)
				t.Status = StatusSuccess
			}
		}
	}
	for _, idx := range alerting {
		out.Transactions[idx].missing(pattern.CallAlerting, "no CallAlerting")
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}

func isPacketRAT(rat string) bool {
	rat = strings.ToUpper(rat)
	return strings.HasPrefix(rat, "LTE") || strings.HasPrefix(rat, "NR")
}
