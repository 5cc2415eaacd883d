package telparse

import (
	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/pattern"
)

// SetupDataCallOptions selects the RIL data calls to reconstruct.
type SetupDataCallOptions struct {
	// APN filters requests; empty accepts all.
	APN string
	// DDSSwitch measures each call from the preceding SetPreferredDataModem and
	// accepts calls on any slot.
	DDSSwitch bool
	// Subscription restricts requests to the DDS slot. Nil accepts every slot.
	Subscription *Subscription
}

// ParseSetupDataCall reconstructs RIL data-call setups.
func ParseSetupDataCall(records []LogRecord, sc SetupDataCallOptions, opts Options) Result {
	const query = QuerySetupDataCall
	slot := -1
	if sc.Subscription != nil && !sc.DDSSwitch {
		if err := engine.CheckSlot(sc.Subscription.DDSSlot); err != nil {
			return violation(query, engine.FamilyDataCall, "dds slot: "+err.Error())
		}
		slot = sc.Subscription.DDSSlot
	}
	out := engine.ReconstructSetupDataCall(tag(records), engine.SetupOptions{
		APN:       sc.APN,
		DDSSwitch: sc.DDSSwitch,
		DDSSlot:   slot,
		Bounds:    opts.bounds(),
	})
	return finish(query, out, opts)
}

// ParseSetupDataCallOnIwlan reconstructs IWLAN data-call setups. Logs without any
// IWLAN setup records are read as RIL setups of the ims APN.
func ParseSetupDataCallOnIwlan(records []LogRecord, opts Options) Result {
	const query = QuerySetupDataCallOnIwlan
	events := tag(records)
	if !engine.HasKinds(events, pattern.IwlanSetupRequest, pattern.IwlanSetupResponse) {
		out := engine.ReconstructSetupDataCall(events, engine.SetupOptions{
			APN:     "ims",
			DDSSlot: -1,
			Bounds:  opts.bounds(),
		})
		return finish(query, out, opts)
	}
	out := engine.ReconstructSetupDataCallOnIwlan(events, engine.IwlanOptions{Strict: opts.Strict, Bounds: opts.bounds()})
	return finish(query, out, opts)
}

// ParseDeactivateDataCall reconstructs RIL data-call deactivations.
func ParseDeactivateDataCall(records []LogRecord, opts Options) Result {
	out := engine.ReconstructDeactivateDataCall(tag(records), engine.DeactivateOptions{Bounds: opts.bounds()})
	return finish(QueryDeactivateDataCall, out, opts)
}

// ParseDeactivateDataCallOnIwlan reconstructs IWLAN deactivations. Logs without
// IWLAN deactivation records are read as RIL deactivations.
func ParseDeactivateDataCallOnIwlan(records []LogRecord, opts Options) Result {
	const query = QueryDeactivateDataCallOnIwlan
	events := tag(records)
	if !engine.HasKinds(events, pattern.IwlanDeactivateRequest, pattern.IwlanDeactivateResponse) {
		out := engine.ReconstructDeactivateDataCall(events, engine.DeactivateOptions{Bounds: opts.bounds()})
		return finish(query, out, opts)
	}
	out := engine.ReconstructDeactivateDataCallOnIwlan(events, engine.IwlanOptions{Strict: opts.Strict, Bounds: opts.bounds()})
	return finish(query, out, opts)
}

// ImsRegOptions selects the registration flavour and the cycles to scan.
type ImsRegOptions struct {
	Slot      int
	RAT       string // 4g or iwlan
	Trigger   string // reboot, apm or wifi_off
	Intervals []Interval
	// UseCst ends each cycle on IMS_REGISTERED.
	UseCst bool
	// Subscription, when given, must list an operator for Slot.
	Subscription *Subscription
}

// ParseImsReg measures IMS registration once per interval. Cycles missing an
// endpoint are listed in Failures.
func ParseImsReg(records []LogRecord, ro ImsRegOptions, opts Options) Result {
	const query = QueryImsReg
	if err := engine.CheckSlot(ro.Slot); err != nil {
		return violation(query, engine.FamilyImsReg, err.Error())
	}
	if sub := ro.Subscription; sub != nil && len(sub.Operators) > 0 && ro.Slot >= len(sub.Operators) {
		return violation(query, engine.FamilyImsReg, "slot has no subscription")
	}

	out := engine.ReconstructImsReg(tag(records), engine.ImsRegOptions{
		Slot:      ro.Slot,
		RAT:       ro.RAT,
		Trigger:   ro.Trigger,
		Intervals: ro.Intervals,
		UseCst:    ro.UseCst,
		Bounds:    opts.bounds(),
	})
	if out.Violation != "" {
		return violation(query, engine.FamilyImsReg, out.Violation)
	}
	res := finish(query, out.Output, opts)
	res.Failures = out.Failures
	return res
}

// ParseMoSms reconstructs outbound SMS sent over RIL.
func ParseMoSms(records []LogRecord, opts Options) Result {
	out := engine.ReconstructMoSms(tag(records), engine.SmsOptions{Bounds: opts.bounds()})
	return finish(QueryMoSms, out, opts)
}

// ParseMoSmsIwlan reconstructs outbound SMS sent through the IMS dispatcher.
// Sends and results pair by position, so reordering records changes the pairs.
func ParseMoSmsIwlan(records []LogRecord, opts Options) Result {
	out := engine.ReconstructMoSmsIms(tag(records), engine.SmsOptions{Bounds: opts.bounds()})
	return finish(QueryMoSmsIwlan, out, opts)
}

// ParseMtSms reconstructs inbound SMS received over RIL.
func ParseMtSms(records []LogRecord, opts Options) Result {
	out := engine.ReconstructMtSms(tag(records), engine.SmsOptions{Bounds: opts.bounds()})
	return finish(QueryMtSms, out, opts)
}

// ParseMtSmsIwlan reconstructs inbound SMS received through the IMS dispatcher.
func ParseMtSmsIwlan(records []LogRecord, opts Options) Result {
	out := engine.ReconstructMtSms(tag(records), engine.SmsOptions{OverIms: true, Bounds: opts.bounds()})
	return finish(QueryMtSmsIwlan, out, opts)
}

// SmsDeliveryResult holds both sides and their correlation.
type SmsDeliveryResult struct {
	MO       Result `json:"mo"`
	MT       Result `json:"mt"`
	Delivery Result `json:"delivery"`
}

// ParseSmsDeliveryTime reconstructs the sender's and the receiver's SMS and joins
// them by body. The delivery time is MT arrival minus MO request.
func ParseSmsDeliveryTime(mo, mt []LogRecord, overIms bool, opts Options) SmsDeliveryResult {
	sms := engine.SmsOptions{OverIms: overIms, Bounds: opts.bounds()}
	var moOut engine.Output
	if overIms {
		moOut = engine.ReconstructMoSmsIms(tag(mo), sms)
	} else {
		moOut = engine.ReconstructMoSms(tag(mo), sms)
	}
	mtOut := engine.ReconstructMtSms(tag(mt), sms)
	delivery := engine.CorrelateSmsDelivery(moOut, mtOut, opts.bounds())

	return SmsDeliveryResult{
		MO:       finish(QuerySmsDeliveryTime, moOut, opts),
		MT:       finish(QuerySmsDeliveryTime, mtOut, opts),
		Delivery: finish(QuerySmsDeliveryTime, delivery, opts),
	}
}

// MmsResult holds the sending and the receiving side.
type MmsResult struct {
	Sent     Result `json:"sent"`
	Received Result `json:"received"`
}

// ParseMms reconstructs MMS on both devices. Either slice may be empty.
func ParseMms(mo, mt []LogRecord, opts Options) MmsResult {
	mms := engine.MmsOptions{Bounds: opts.bounds()}
	return MmsResult{
		Sent:     finish(QueryMms, engine.ReconstructMms(tag(mo), mms), opts),
		Received: finish(QueryMms, engine.ReconstructMms(tag(mt), mms), opts),
	}
}

// ParseCallSetup reconstructs mobile-originated call setups and labels each call
// VoLTE, VoWiFi, CSFB or CS.
func ParseCallSetup(records []LogRecord, opts Options) Result {
	out := engine.ReconstructCallSetup(tag(records), engine.VoiceOptions{Bounds: opts.bounds()})
	return finish(QueryCallSetup, out, opts)
}
