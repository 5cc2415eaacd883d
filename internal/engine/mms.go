package engine

import "github.com/coffersTech/nanotel/internal/pattern"

// MmsOptions configures the MMS reconstructor.
type MmsOptions struct {
	Bounds Bounds
}

// ReconstructMms groups MmsService records by request id. Within a group the
// duration runs from the first network request to the first 200 OK after it.
// Records that carry no request id are not attributed to any group.
func ReconstructMms(events []pattern.Event, opts MmsOptions) Output {
	out := Output{Family: FamilyMms}
	groups := make(map[string]int)

	for i := range events {
		ev := &events[i]
		for _, tag := range ev.Tags {
			switch tag.Kind {
			case pattern.MmsSendRequest, pattern.MmsDownloadRequest,
				pattern.MmsStartNewNetworkRequest, pattern.Mms200Ok:
			default:
				continue
			}
			id, ok := tag.Attrs.Get("id")
			if !ok || id == "" {
				continue
			}
			idx, ok := groups[id]
			if !ok {
				out.Transactions = append(out.Transactions, Transaction{Family: FamilyMms, Key: id})
				idx = len(out.Transactions) - 1
				groups[id] = idx
			}
			t := &out.Transactions[idx]

			switch tag.Kind {
			case pattern.MmsSendRequest, pattern.MmsDownloadRequest:
				if t.Trigger == nil {
					t.Trigger = newStep(ev, tag)
					if tag.Kind == pattern.MmsSendRequest {
						t.label("direction", "send")
					} else {
						t.label("direction", "download")
					}
				}
			case pattern.MmsStartNewNetworkRequest:
				if t.Request == nil {
					t.Request = newStep(ev, tag)
				}
			case pattern.Mms200Ok:
				switch {
				case t.Request == nil:
					t.note(Ambiguous, "200 OK before the network request ignored")
				case t.Response == nil:
					t.Response = newStep(ev, tag)
					t.Duration = span(t.Request, t.Response)
					t.Status = StatusSuccess
				}
			}
		}
	}

	for i := range out.Transactions {
		t := &out.Transactions[i]
		if t.Request == nil {
			t.missing(pattern.MmsStartNewNetworkRequest, "no MmsStartNewNetworkRequest")
		}
		if t.Response == nil {
			t.missing(pattern.Mms200Ok, "no Mms200Ok")
		}
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}
