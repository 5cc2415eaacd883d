package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/coffersTech/nanotel/internal/pattern"
)

var ErrInvalidSlot = errors.New("invalid slot")

// CheckSlot rejects anything but SIM slot 0 or 1.
func CheckSlot(slot int) error {
	if slot != 0 && slot != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// IMS registration triggers.
const (
	TriggerReboot  = "reboot"
	TriggerAPM     = "apm"
	TriggerWifiOff = "wifi_off"
)

// Radio access technologies an IMS registration can complete on.
const (
	RAT4G    = "4g"
	RATIwlan = "iwlan"
)

// Interval is one search window. Both ends are inclusive.
type Interval struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

func (iv Interval) contains(ts time.Time) bool {
	return !ts.Before(iv.Begin) && !ts.After(iv.End)
}

// ImsRegOptions selects the registration flavour and the cycles to scan.
type ImsRegOptions struct {
	Slot      int
	RAT       string
	Trigger   string
	Intervals []Interval
	// UseCst ends each cycle on IMS_REGISTERED instead of the MMTel connection.
	UseCst bool
	Bounds Bounds
}

// CycleFailure describes a cycle that is missing an endpoint.
type CycleFailure struct {
	Cycle    int            `json:"cycle"`
	Interval Interval       `json:"interval"`
	Missing  []pattern.Kind `json:"missing,omitempty"`
	Reason   string         `json:"reason"`
}

// ImsRegOutput holds one transaction per interval, in interval order.
type ImsRegOutput struct {
	Output
	Failures []CycleFailure
	// Violation is set when the options do not describe a known registration flavour.
	// No cycles are scanned in that case.
	Violation string
}

type regKey struct {
	trigger, rat string
}

type regKinds struct {
	start, end pattern.Kind
}

var regTable = map[regKey]regKinds{
	{TriggerReboot, RAT4G}:    {pattern.EnableApnIms, pattern.ImsMmTelConnected4g},
	{TriggerReboot, RATIwlan}: {pattern.EnableApnIms, pattern.ImsMmTelConnectedIwlan},
	{TriggerAPM, RAT4G}:       {pattern.RadioOn4g, pattern.ImsMmTelConnected4g},
	{TriggerAPM, RATIwlan}:    {pattern.RadioOnIwlan, pattern.ImsMmTelConnectedIwlan},
	{TriggerWifiOff, RAT4G}:   {pattern.WifiOff, pattern.ImsMmTelConnected4g},
}

// RegKinds returns the start and end kinds for a registration flavour.
func RegKinds(opts ImsRegOptions) (start, end pattern.Kind, err error) {
	if err := CheckSlot(opts.Slot); err != nil {
		return 0, 0, err
	}
	k, ok := regTable[regKey{opts.Trigger, opts.RAT}]
	if !ok {
		return 0, 0, fmt.Errorf("no registration flow for trigger %q on rat %q", opts.Trigger, opts.RAT)
	}
	if opts.UseCst {
		k.end = pattern.ImsRegisteredCst
	}
	return k.start, k.end, nil
}

// ReconstructImsReg scans each interval independently for the earliest start event
// and the earliest end event at or after it.
func ReconstructImsReg(events []pattern.Event, opts ImsRegOptions) ImsRegOutput {
	out := ImsRegOutput{Output: Output{Family: FamilyImsReg}}
	start, end, err := RegKinds(opts)
	if err != nil {
		out.Violation = err.Error()
		return out
	}

	for n, iv := range opts.Intervals {
		t := Transaction{Family: FamilyImsReg, Key: "cycle-" + strconv.Itoa(n)}
		t.label("trigger", opts.Trigger)
		t.label("rat", opts.RAT)
		t.label("slot", strconv.Itoa(opts.Slot))

		if iv.End.Before(iv.Begin) {
			t.note(MissingEvent, "interval ends before it begins")
			out.Failures = append(out.Failures, CycleFailure{Cycle: n, Interval: iv, Reason: "invalid interval"})
			out.Transactions = append(out.Transactions, t)
			continue
		}

		from := sort.Search(len(events), func(i int) bool {
			return !events[i].Record.Timestamp.Before(iv.Begin)
		})
		var first, last *Step
		for i := from; i < len(events) && iv.contains(events[i].Record.Timestamp); i++ {
			ev := &events[i]
			if first == nil {
				if tag, ok := slotTag(ev, start, opts.Slot); ok {
					first = newStep(ev, tag)
				}
			}
			if last == nil && first != nil {
				if tag, ok := slotTag(ev, end, opts.Slot); ok {
					last = newStep(ev, tag)
					break
				}
			}
		}
		if first == nil {
			for i := from; i < len(events) && iv.contains(events[i].Record.Timestamp); i++ {
				if tag, ok := slotTag(&events[i], end, opts.Slot); ok {
					last = newStep(&events[i], tag)
					break
				}
			}
		}

		t.Request = first
		t.Completion = last
		var missing []pattern.Kind
		if first == nil {
			t.missing(start, "no "+start.String()+" in interval")
			missing = append(missing, start)
		}
		if last == nil {
			t.missing(end, "no "+end.String()+" in interval")
			missing = append(missing, end)
		}
		if len(missing) == 0 {
			t.Duration = span(first, last)
			t.Status = StatusSuccess
		} else {
			out.Failures = append(out.Failures, CycleFailure{
				Cycle:    n,
				Interval: iv,
				Missing:  missing,
				Reason:   missingReason(missing),
			})
		}
		out.Transactions = append(out.Transactions, t)
	}
	bounds(opts.Bounds).sealAll(out.Transactions)
	return out
}

// slotTag returns the tag of kind k when it applies to slot. Kinds that do not
// name a slot apply to every slot.
func slotTag(ev *pattern.Event, k pattern.Kind, slot int) (pattern.Tag, bool) {
	tag, ok := ev.Tag(k)
	if !ok {
		return tag, false
	}
	if s, has := tag.Attrs.Int("slot"); has && s != slot {
		return tag, false
	}
	return tag, true
}

func missingReason(kinds []pattern.Kind) string {
	s := "missing "
	for i, k := range kinds {
		if i > 0 {
			s += " and "
		}
		s += k.String()
	}
	return s
}
