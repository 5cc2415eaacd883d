package pattern

import "strings"

// TaxonomyVersion identifies the revision of the rule table. Bump it whenever a
// pattern changes: the patterns are the contract with the upstream log producer.
const TaxonomyVersion = "3"

// Kind is an event kind from the closed taxonomy.
type Kind int

const (
	KindUnknown Kind = iota

	// Data-call over RIL.
	SetPreferredDataModem
	SetupDataCallRequest
	SetupDataCallResponse
	UnsolDataCallListChanged
	DeactivateDataCallRequest
	DeactivateDataCallResponse
	IsCaptivePortalSuccess

	// Data-call over IWLAN, both dialects.
	IwlanSetupRequest
	IwlanSetupResponse
	IwlanDeactivateRequest
	IwlanDeactivateResponse
	IwlanSendAck

	// IMS registration.
	EnableApnIms
	RadioOn4g
	RadioOnIwlan
	WifiOff
	ImsMmTelConnected4g
	ImsMmTelConnectedIwlan
	ImsRegisteredCst

	// SMS over RIL.
	SmsSendText
	SmsSendRequest
	SmsSendResponse
	SmsDeliverSuccess
	SmsDeliverFailure
	UnsolResponseNewSms
	SmsReceivedContent

	// SMS over the IMS dispatcher.
	ImsSmsSendRequest
	ImsSmsSendResponse
	ImsSmsReceived

	// MMS.
	MmsSendRequest
	MmsDownloadRequest
	MmsStartNewNetworkRequest
	Mms200Ok

	// Voice call setup.
	DialRequest
	DialResponse
	ImsDialRequest
	CallAlerting
	DataRatChanged

	kindCount
)

var kindNames = [...]string{
	KindUnknown:                "Unknown",
	SetPreferredDataModem:      "SetPreferredDataModem",
	SetupDataCallRequest:       "SetupDataCallRequest",
	SetupDataCallResponse:      "SetupDataCallResponse",
	UnsolDataCallListChanged:   "UnsolDataCallListChanged",
	DeactivateDataCallRequest:  "DeactivateDataCallRequest",
	DeactivateDataCallResponse: "DeactivateDataCallResponse",
	IsCaptivePortalSuccess:     "IsCaptivePortalSuccess",
	IwlanSetupRequest:          "IwlanSetupRequest",
	IwlanSetupResponse:         "IwlanSetupResponse",
	IwlanDeactivateRequest:     "IwlanDeactivateRequest",
	IwlanDeactivateResponse:    "IwlanDeactivateResponse",
	IwlanSendAck:               "IwlanSendAck",
	EnableApnIms:               "EnableApnIms",
	RadioOn4g:                  "RadioOn4g",
	RadioOnIwlan:               "RadioOnIwlan",
	WifiOff:                    "WifiOff",
	ImsMmTelConnected4g:        "ImsMmTelConnected4g",
	ImsMmTelConnectedIwlan:     "ImsMmTelConnectedIwlan",
	ImsRegisteredCst:           "ImsRegisteredCst",
	SmsSendText:                "SmsSendText",
	SmsSendRequest:             "SmsSendRequest",
	SmsSendResponse:            "SmsSendResponse",
	SmsDeliverSuccess:          "SmsDeliverSuccess",
	SmsDeliverFailure:          "SmsDeliverFailure",
	UnsolResponseNewSms:        "UnsolResponseNewSms",
	SmsReceivedContent:         "SmsReceivedContent",
	ImsSmsSendRequest:          "ImsSmsSendRequest",
	ImsSmsSendResponse:         "ImsSmsSendResponse",
	ImsSmsReceived:             "ImsSmsReceived",
	MmsSendRequest:             "MmsSendRequest",
	MmsDownloadRequest:         "MmsDownloadRequest",
	MmsStartNewNetworkRequest:  "MmsStartNewNetworkRequest",
	Mms200Ok:                   "Mms200Ok",
	DialRequest:                "DialRequest",
	DialResponse:               "DialResponse",
	ImsDialRequest:             "ImsDialRequest",
	CallAlerting:               "CallAlerting",
	DataRatChanged:             "DataRatChanged",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind resolves a kind by name, case-insensitively.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(1); k < kindCount; k++ {
		if strings.EqualFold(kindNames[k], name) {
			return k, true
		}
	}
	return KindUnknown, false
}

// Dialect distinguishes the two IWLAN log vocabularies.
type Dialect int

const (
	DialectNone Dialect = iota
	DialectLegacy
	DialectWhi
)

func (d Dialect) String() string {
	switch d {
	case DialectLegacy:
		return "legacy"
	case DialectWhi:
		return "whi"
	default:
		return ""
	}
}
