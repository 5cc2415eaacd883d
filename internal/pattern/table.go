package pattern

import "regexp"

// Extractor pulls one named attribute out of a record's text. The value is the
// first non-empty capture group of Pattern.
type Extractor struct {
	Name    string
	Pattern *regexp.Regexp
	Numeric bool
}

// Rule ties an event kind to the text it is recognised by.
type Rule struct {
	Kind    Kind
	Dialect Dialect
	// Contains is a literal that must appear in the text before Match is tried.
	Contains string
	Match    *regexp.Regexp
	Attrs    []Extractor
	// NeedsID marks kinds that are paired by message id.
	NeedsID bool
}

func num(name, expr string) Extractor {
	return Extractor{Name: name, Pattern: regexp.MustCompile(expr), Numeric: true}
}

func str(name, expr string) Extractor {
	return Extractor{Name: name, Pattern: regexp.MustCompile(expr)}
}

var (
	phoneAttr  = str("phone", `\[(PHONE\d+)\]`)
	phoneSlot  = num("slot", `\[PHONE(\d+)\]`)
	causeAttr  = num("cause", `\bcause\s*[:=]\s*([^\s,}\]]+)`)
	cidAttr    = num("cid", `\bcid\s*[:=]\s*([^\s,}\]]+)`)
	serialAttr = num("serial", `(?:\[(\d+)\]\s*[<>]|[Ss]erial\s*[:=]?\s*(\d+))`)
	mmsIDAttr  = str("id", `(?:Send|Download)Request@(\w+)`)
)

// rules is the single auditable table of everything the analyzer recognises.
// Rules are evaluated in order and a record may match several of them.
var rules = []Rule{
	// RIL data call.
	{
		Kind:     SetPreferredDataModem,
		Contains: "SET_PREFERRED_DATA_MODEM",
		Match:    regexp.MustCompile(`>\s*SET_PREFERRED_DATA_MODEM\b`),
		Attrs:    []Extractor{num("modem", `modemId\s*=\s*(\d+)`)},
	},
	{
		Kind:     SetupDataCallRequest,
		Contains: "SETUP_DATA_CALL",
		Match:    regexp.MustCompile(`>\s*SETUP_DATA_CALL\b`),
		Attrs: []Extractor{
			str("apn", `(?:\bapn=|DataProfile=\d+/\d+/\d+/)([\w.\-]+)`),
			phoneAttr,
			phoneSlot,
		},
		NeedsID: true,
	},
	{
		Kind:     SetupDataCallResponse,
		Contains: "SETUP_DATA_CALL",
		Match:    regexp.MustCompile(`<\s*SETUP_DATA_CALL\b`),
		Attrs: []Extractor{
			causeAttr,
			cidAttr,
			str("ifname", `\bifname\s*[:=]\s*([^\s,}\]]+)`),
			phoneAttr,
			phoneSlot,
		},
		NeedsID: true,
	},
	{
		Kind:     UnsolDataCallListChanged,
		Contains: "UNSOL_DATA_CALL_LIST_CHANGED",
		Match:    regexp.MustCompile(`UNSOL_DATA_CALL_LIST_CHANGED`),
	},
	{
		Kind:     DeactivateDataCallRequest,
		Contains: "DEACTIVATE_DATA_CALL",
		Match:    regexp.MustCompile(`>\s*DEACTIVATE_DATA_CALL\b`),
		Attrs: []Extractor{
			cidAttr,
			num("reason", `\breason\s*=\s*(\d+)`),
			phoneAttr,
			phoneSlot,
		},
		NeedsID: true,
	},
	{
		Kind:     DeactivateDataCallResponse,
		Contains: "DEACTIVATE_DATA_CALL",
		Match:    regexp.MustCompile(`<\s*DEACTIVATE_DATA_CALL\b`),
		Attrs:    []Extractor{phoneAttr, phoneSlot},
		NeedsID:  true,
	},
	{
		Kind:     IsCaptivePortalSuccess,
		Contains: "isCaptivePortal",
		Match:    regexp.MustCompile(`isCaptivePortal: isSuccessful\(\)=true`),
	},

	// IWLAN, legacy dialect.
	{
		Kind:     IwlanSetupRequest,
		Dialect:  DialectLegacy,
		Contains: "IWlanDataService",
		Match:    regexp.MustCompile(`IWlanDataService.*>\s*REQUEST_SETUP_DATA_CALL`),
		Attrs:    []Extractor{serialAttr},
	},
	{
		Kind:     IwlanSetupResponse,
		Dialect:  DialectLegacy,
		Contains: "IWlanDataService",
		Match:    regexp.MustCompile(`IWlanDataService.*setupDataCallResponse`),
		Attrs:    []Extractor{serialAttr, causeAttr, cidAttr},
	},
	{
		Kind:     IwlanDeactivateRequest,
		Dialect:  DialectLegacy,
		Contains: "IWlanDataService",
		Match:    regexp.MustCompile(`IWlanDataService.*>\s*REQUEST_DEACTIVATE_DATA_CALL`),
		Attrs:    []Extractor{serialAttr, cidAttr},
	},
	{
		Kind:     IwlanDeactivateResponse,
		Dialect:  DialectLegacy,
		Contains: "IWlanDataService",
		Match:    regexp.MustCompile(`IWlanDataService.*deactivateDataCallResponse`),
		Attrs:    []Extractor{serialAttr, causeAttr},
	},
	{
		Kind:     IwlanSendAck,
		Dialect:  DialectLegacy,
		Contains: "IWlanDataService",
		Match:    regexp.MustCompile(`IWlanDataService.*send ACK for serial`),
		Attrs:    []Extractor{num("serial", `send ACK for serial\s*[:=]?\s*(\d+)`)},
	},

	// IWLAN, whi dialect. No serials.
	{
		Kind:     IwlanSetupRequest,
		Dialect:  DialectWhi,
		Contains: "IwlanDataService[",
		Match:    regexp.MustCompile(`IwlanDataService\[\d+\]: Setup data call`),
		Attrs:    []Extractor{num("slot", `IwlanDataService\[(\d+)\]`)},
	},
	{
		Kind:     IwlanSetupResponse,
		Dialect:  DialectWhi,
		Contains: "IwlanDataService[",
		Match:    regexp.MustCompile(`IwlanDataService\[\d+\]: Tunnel opened!`),
		Attrs:    []Extractor{num("slot", `IwlanDataService\[(\d+)\]`)},
	},
	{
		Kind:     IwlanDeactivateRequest,
		Dialect:  DialectWhi,
		Contains: "IwlanDataService[",
		Match:    regexp.MustCompile(`IwlanDataService\[\d+\]: Deactivate data call`),
		Attrs:    []Extractor{num("slot", `IwlanDataService\[(\d+)\]`)},
	},
	{
		Kind:     IwlanDeactivateResponse,
		Dialect:  DialectWhi,
		Contains: "IwlanDataService[",
		Match:    regexp.MustCompile(`IwlanDataService\[\d+\]: Tunnel closed!`),
		Attrs:    []Extractor{num("slot", `IwlanDataService\[(\d+)\]`)},
	},

	// IMS registration.
	{
		Kind:     EnableApnIms,
		Contains: "onEnableApn",
		Match:    regexp.MustCompile(`(?:DCT-C|DNC)-\d+\s*:\s*onEnableApn: apnType=ims`),
		Attrs:    []Extractor{num("slot", `(?:DCT-C|DNC)-(\d+)`)},
	},
	{
		Kind:     RadioOn4g,
		Contains: "EVENT_RADIO_ON",
		Match:    regexp.MustCompile(`GsmCdmaPhone: \[\d+\] Event EVENT_RADIO_ON Received`),
		Attrs:    []Extractor{num("slot", `GsmCdmaPhone: \[(\d+)\]`)},
	},
	{
		Kind:     RadioOnIwlan,
		Contains: "Switching to new default network",
		Match:    regexp.MustCompile(`Switching to new default network.*WIFI CONNECTED`),
	},
	{
		Kind:     WifiOff,
		Contains: "setWifiEnabled",
		Match:    regexp.MustCompile(`setWifiEnabled.*enable=false`),
	},
	{
		Kind:     ImsMmTelConnected4g,
		Contains: "onImsMmTelConnected",
		Match:    regexp.MustCompile(`ImsPhone: \[\d+\].*onImsMmTelConnected imsRadioTech=LTE`),
		Attrs:    []Extractor{num("slot", `ImsPhone: \[(\d+)\]`)},
	},
	{
		Kind:     ImsMmTelConnectedIwlan,
		Contains: "onImsMmTelConnected",
		Match:    regexp.MustCompile(`ImsPhone: \[\d+\].*onImsMmTelConnected imsRadioTech=WLAN`),
		Attrs:    []Extractor{num("slot", `ImsPhone: \[(\d+)\]`)},
	},
	{
		Kind:     ImsRegisteredCst,
		Contains: "IMS_REGISTERED",
		Match:    regexp.MustCompile(`\bIMS_REGISTERED\b`),
		Attrs:    []Extractor{num("slot", `\bslot(?:Id)?\s*[=:]\s*(\d+)`)},
	},

	// SMS over RIL.
	{
		Kind:     SmsSendText,
		Contains: "smsSendTextMessage",
		Match:    regexp.MustCompile(`smsSendTextMessage.+: .+`),
		Attrs:    []Extractor{str("body", `smsSendTextMessage.+: (.+)`)},
	},
	{
		Kind:     SmsSendRequest,
		Contains: "SEND_SMS",
		Match:    regexp.MustCompile(`>\s*SEND_SMS(?:_EXPECT_MORE)?\b`),
		Attrs:    []Extractor{phoneAttr, phoneSlot},
	},
	{
		Kind:     SmsSendResponse,
		Contains: "SEND_SMS",
		Match:    regexp.MustCompile(`<\s*SEND_SMS(?:_EXPECT_MORE)?\b`),
		Attrs: []Extractor{
			num("message_ref", `[mM]essageRef\s*=\s*(-?\d+)`),
			str("error", `\berror\b:?\s*(.*)$`),
			phoneAttr,
			phoneSlot,
		},
	},
	{
		Kind:     SmsDeliverSuccess,
		Contains: "SmsDeliverSuccess",
		Match:    regexp.MustCompile(`sl4a.*SmsDeliverSuccess`),
	},
	{
		Kind:     SmsDeliverFailure,
		Contains: "SmsDeliverFailure",
		Match:    regexp.MustCompile(`sl4a.*SmsDeliverFailure`),
	},
	{
		Kind:     UnsolResponseNewSms,
		Contains: "UNSOL_RESPONSE_NEW_SMS",
		Match:    regexp.MustCompile(`<\s*UNSOL_RESPONSE_NEW_SMS\b`),
		Attrs:    []Extractor{phoneAttr, phoneSlot},
	},
	{
		Kind:     SmsReceivedContent,
		Contains: "SmsReceived",
		Match:    regexp.MustCompile(`sl4a.*?SmsReceived.*?"Text":"(.*?)"`),
		Attrs:    []Extractor{str("body", `sl4a.*?SmsReceived.*?"Text":"(.*?)"`)},
	},

	// SMS over IMS.
	{
		Kind:     ImsSmsSendRequest,
		Contains: "ImsSmsDispatcher",
		Match:    regexp.MustCompile(`ImsSmsDispatcher \[\d+\]: sendSms:\s+mRetryCount`),
		Attrs:    []Extractor{num("slot", `ImsSmsDispatcher \[(\d+)\]`)},
	},
	{
		Kind:     ImsSmsSendResponse,
		Contains: "ImsSmsDispatcher",
		Match:    regexp.MustCompile(`ImsSmsDispatcher \[\d+\]: onSendSmsResult token`),
		Attrs: []Extractor{
			num("slot", `ImsSmsDispatcher \[(\d+)\]`),
			num("token", `onSendSmsResult token\s*[:=]?\s*(\d+)`),
			num("status", `\bstatus\s*[:=]\s*(\d+)`),
		},
	},
	{
		Kind:     ImsSmsReceived,
		Contains: "ImsSmsDispatcher",
		Match:    regexp.MustCompile(`ImsSmsDispatcher \[\d+\]: SMS received`),
		Attrs:    []Extractor{num("slot", `ImsSmsDispatcher \[(\d+)\]`)},
	},

	// MMS. The progress lines carry the request id too, so a record can be both a
	// request-id carrier and a progress event.
	{
		Kind:     MmsSendRequest,
		Contains: "MmsService",
		Match:    regexp.MustCompile(`MmsService:.*SendRequest@\w+`),
		Attrs:    []Extractor{mmsIDAttr},
	},
	{
		Kind:     MmsDownloadRequest,
		Contains: "MmsService",
		Match:    regexp.MustCompile(`MmsService:.*DownloadRequest@\w+`),
		Attrs:    []Extractor{mmsIDAttr},
	},
	{
		Kind:     MmsStartNewNetworkRequest,
		Contains: "MmsService",
		Match:    regexp.MustCompile(`MmsService:.*start new network request`),
		Attrs:    []Extractor{mmsIDAttr},
	},
	{
		Kind:     Mms200Ok,
		Contains: "MmsService",
		Match:    regexp.MustCompile(`MmsService:.*\b200 OK\b`),
		Attrs:    []Extractor{mmsIDAttr},
	},

	// Voice call setup.
	{
		Kind:     DialRequest,
		Contains: "DIAL",
		Match:    regexp.MustCompile(`>\s*DIAL\b`),
		Attrs:    []Extractor{phoneAttr, phoneSlot},
		NeedsID:  true,
	},
	{
		Kind:     DialResponse,
		Contains: "DIAL",
		Match:    regexp.MustCompile(`<\s*DIAL\b`),
		Attrs:    []Extractor{phoneAttr, phoneSlot},
		NeedsID:  true,
	},
	{
		Kind:     ImsDialRequest,
		Contains: "ImsPhoneCallTracker",
		Match:    regexp.MustCompile(`ImsPhoneCallTracker: dial\b`),
	},
	{
		Kind:  CallAlerting,
		Match: regexp.MustCompile(`(?:GsmCdmaCallTracker|ImsPhoneCallTracker|ImsPhoneConnection).*(?:\bALERTING\b|onCallProgressing)`),
	},
	{
		Kind:     DataRatChanged,
		Contains: "mRilDataRadioTechnology",
		Match:    regexp.MustCompile(`mRilDataRadioTechnology=\d+\(\w+\)`),
		Attrs:    []Extractor{str("rat", `mRilDataRadioTechnology=\d+\((\w+)\)`)},
	},
}

// RuleInfo is a read-only description of one rule.
type RuleInfo struct {
	Kind    Kind     `json:"kind"`
	Dialect string   `json:"dialect,omitempty"`
	Pattern string   `json:"pattern"`
	Attrs   []string `json:"attrs,omitempty"`
	NeedsID bool     `json:"needs_id,omitempty"`
}

// Table describes the rule table in evaluation order.
func Table() []RuleInfo {
	out := make([]RuleInfo, 0, len(rules))
	for _, r := range rules {
		info := RuleInfo{
			Kind:    r.Kind,
			Dialect: r.Dialect.String(),
			Pattern: r.Match.String(),
			NeedsID: r.NeedsID,
		}
		for _, a := range r.Attrs {
			info.Attrs = append(info.Attrs, a.Name)
		}
		out = append(out, info)
	}
	return out
}
