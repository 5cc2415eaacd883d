package telparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Query names accepted by Run.
const (
	QuerySetupDataCall             = "setup_data_call"
	QuerySetupDataCallOnIwlan      = "setup_data_call_on_iwlan"
	QueryDeactivateDataCall        = "deactivate_data_call"
	QueryDeactivateDataCallOnIwlan = "deactivate_data_call_on_iwlan"
	QueryImsReg                    = "ims_reg"
	QueryMoSms                     = "mo_sms"
	QueryMoSmsIwlan                = "mo_sms_iwlan"
	QueryMtSms                     = "mt_sms"
	QueryMtSmsIwlan                = "mt_sms_iwlan"
	QuerySmsDeliveryTime           = "sms_delivery_time"
	QueryMms                       = "mms"
	QueryCallSetup                 = "call_setup"
)

var (
	ErrUnknownQuery = errors.New("unknown query")
	ErrPeerRequired = errors.New("query needs the peer device's records")
	ErrBadParam     = errors.New("bad query parameter")
)

// Queries lists every query name in a stable order.
func Queries() []string {
	return []string{
		QuerySetupDataCall,
		QuerySetupDataCallOnIwlan,
		QueryDeactivateDataCall,
		QueryDeactivateDataCallOnIwlan,
		QueryImsReg,
		QueryMoSms,
		QueryMoSmsIwlan,
		QueryMtSms,
		QueryMtSmsIwlan,
		QuerySmsDeliveryTime,
		QueryMms,
		QueryCallSetup,
	}
}

// Input is what Run analyzes. Records come from the device under test; Peer from
// the other device of a two-device query.
type Input struct {
	Records []LogRecord
	Peer    []LogRecord
	// HasPeer marks the peer as supplied even when it holds no records, so a
	// silent peer device yields unmatched transactions instead of ErrPeerRequired.
	HasPeer bool
	// Params carry query options by name: apn, dds_switch, dds_slot, slot, rat,
	// trigger, use_cst, intervals and over_ims.
	Params map[string]string
	// Subscription applies to queries that check slots.
	Subscription *Subscription
}

// Report groups the results of one query. Two-device queries return one result
// per side plus the correlation.
type Report struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Violation returns the first precondition violation in the report.
func (r *Report) Violation() string {
	for _, res := range r.Results {
		if res.Violation != "" {
			return res.Violation
		}
	}
	return ""
}

// Run dispatches a query by name. Errors report bad names or parameters; data
// problems are carried on the results.
func Run(query string, in Input, opts Options) (Report, error) {
	rep := Report{Query: query}
	p := params(in.Params)

	switch query {
	case QuerySetupDataCall:
		sc := SetupDataCallOptions{APN: p.str("apn"), Subscription: in.Subscription}
		var err error
		if sc.DDSSwitch, err = p.boolean("dds_switch"); err != nil {
			return rep, err
		}
		if v, ok := in.Params["dds_slot"]; ok {
			slot, err := strconv.Atoi(v)
			if err != nil {
				return rep, fmt.Errorf("%w: dds_slot %q", ErrBadParam, v)
			}
			sub := Subscription{}
			if in.Subscription != nil {
				sub = *in.Subscription
			}
			sub.DDSSlot = slot
			sc.Subscription = &sub
		}
		rep.Results = append(rep.Results, ParseSetupDataCall(in.Records, sc, opts))

	case QuerySetupDataCallOnIwlan:
		rep.Results = append(rep.Results, ParseSetupDataCallOnIwlan(in.Records, opts))
	case QueryDeactivateDataCall:
		rep.Results = append(rep.Results, ParseDeactivateDataCall(in.Records, opts))
	case QueryDeactivateDataCallOnIwlan:
		rep.Results = append(rep.Results, ParseDeactivateDataCallOnIwlan(in.Records, opts))

	case QueryImsReg:
		ro := ImsRegOptions{
			RAT:          p.str("rat"),
			Trigger:      p.str("trigger"),
			Subscription: in.Subscription,
		}
		var err error
		if ro.Slot, err = p.integer("slot"); err != nil {
			return rep, err
		}
		if ro.UseCst, err = p.boolean("use_cst"); err != nil {
			return rep, err
		}
		if ro.Intervals, err = ParseIntervals(p.str("intervals")); err != nil {
			return rep, fmt.Errorf("%w: intervals: %v", ErrBadParam, err)
		}
		rep.Results = append(rep.Results, ParseImsReg(in.Records, ro, opts))

	case QueryMoSms:
		rep.Results = append(rep.Results, ParseMoSms(in.Records, opts))
	case QueryMoSmsIwlan:
		rep.Results = append(rep.Results, ParseMoSmsIwlan(in.Records, opts))
	case QueryMtSms:
		rep.Results = append(rep.Results, ParseMtSms(in.Records, opts))
	case QueryMtSmsIwlan:
		rep.Results = append(rep.Results, ParseMtSmsIwlan(in.Records, opts))

	case QuerySmsDeliveryTime:
		if !in.HasPeer && in.Peer == nil {
			return rep, ErrPeerRequired
		}
		overIms, err := p.boolean("over_ims")
		if err != nil {
			return rep, err
		}
		d := ParseSmsDeliveryTime(in.Records, in.Peer, overIms, opts)
		rep.Results = append(rep.Results, d.MO, d.MT, d.Delivery)

	case QueryMms:
		m := ParseMms(in.Records, in.Peer, opts)
		rep.Results = append(rep.Results, m.Sent, m.Received)

	case QueryCallSetup:
		rep.Results = append(rep.Results, ParseCallSetup(in.Records, opts))

	default:
		return rep, fmt.Errorf("%w: %q", ErrUnknownQuery, query)
	}
	return rep, nil
}

type params map[string]string

func (p params) str(name string) string {
	return strings.TrimSpace(p[name])
}

func (p params) boolean(name string) (bool, error) {
	v := p.str(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s %q", ErrBadParam, name, v)
	}
	return b, nil
}

func (p params) integer(name string) (int, error) {
	v := p.str(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadParam, name, v)
	}
	return n, nil
}

// ParseIntervals reads comma-separated "begin/end" pairs. Each end is an RFC 3339
// time or Unix milliseconds.
func ParseIntervals(s string) ([]Interval, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Interval
	for _, part := range strings.Split(s, ",") {
		begin, end, ok := strings.Cut(strings.TrimSpace(part), "/")
		if !ok {
			return nil, fmt.Errorf("interval %q: want begin/end", part)
		}
		b, err := parseInstant(begin)
		if err != nil {
			return nil, err
		}
		e, err := parseInstant(end)
		if err != nil {
			return nil, err
		}
		out = append(out, Interval{Begin: b, End: e})
	}
	return out, nil
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("instant %q: %w", s, err)
	}
	return t, nil
}
