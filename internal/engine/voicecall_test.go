package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

func TestCallSetupTypes(t *testing.T) {
	out := ReconstructCallSetup(tagged(
		rec(0, "", "ServiceStateTracker: mRilDataRadioTechnology=14(LTE)"),
		rec(100, "0200", "RILJ: [0200]> DIAL [PHONE0]"),
		rec(150, "0200", "RILJ: [0200]< DIAL [PHONE0]"),
		rec(900, "", "GsmCdmaCallTracker: state ALERTING"),
		rec(1000, "", "ServiceStateTracker: mRilDataRadioTechnology=3(UMTS)"),
		rec(1100, "0201", "RILJ: [0201]> DIAL [PHONE0]"),
		rec(1600, "", "GsmCdmaCallTracker: state ALERTING"),
		rec(2000, "", "ImsPhone: [0] onImsMmTelConnected imsRadioTech=LTE"),
		rec(2100, "", "ImsPhoneCallTracker: dial clir=0"),
		rec(2500, "", "ImsPhoneCallTracker: onCallProgressing"),
		rec(3000, "", "ImsPhone: [0] onImsMmTelConnected imsRadioTech=WLAN"),
		rec(3100, "", "ImsPhoneCallTracker: dial clir=0"),
	), VoiceOptions{})

	require.Len(t, out.Transactions, 4)
	csfb, cs, volte, vowifi := out.Transactions[0], out.Transactions[1], out.Transactions[2], out.Transactions[3]

	assert.Equal(t, CallTypeCSFB, csfb.CallType)
	assert.Equal(t, "LTE", csfb.Labels["rat"])
	assert.NotNil(t, csfb.Response)
	assert.Equal(t, ms(800), *csfb.Duration)

	assert.Equal(t, CallTypeCS, cs.CallType)
	assert.Equal(t, ms(500), *cs.Duration)

	assert.Equal(t, CallTypeVoLTE, volte.CallType)
	assert.Equal(t, ms(400), *volte.Duration)

	assert.Equal(t, CallTypeVoWiFi, vowifi.CallType)
	assert.Equal(t, StatusIncomplete, vowifi.Status)
	assert.Equal(t, []pattern.Kind{pattern.CallAlerting}, vowifi.Missing)
}

func TestCallSetupIgnoresIncomingAlerting(t *testing.T) {
	out := ReconstructCallSetup(tagged(
		rec(0, "", "GsmCdmaCallTracker: state ALERTING"),
		rec(10, "", "RILJ: [0202]> DIAL"),
	), VoiceOptions{})

	require.Len(t, out.Transactions, 0)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pattern.DialRequest, out.Diagnostics[0].Kind)
}

func TestIsPacketRAT(t *testing.T) {
	assert.True(t, isPacketRAT("LTE_CA"))
	assert.True(t, isPacketRAT("nr"))
	assert.False(t, isPacketRAT("UMTS"))
	assert.False(t, isPacketRAT(""))
}
