package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

const (
	setupResp = "RILJ: [0087]< SETUP_DATA_CALL DataCallResponse: { cause=0 cid=7 ifname=rmnet0 } [PHONE0]"
	unsolCid7 = "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED [DataCallResponse: { cid=7 active=2 }]"
)

func anySlot() SetupOptions {
	return SetupOptions{DDSSlot: -1}
}

func TestSetupDataCallSuccess(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet [PHONE0]"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
	), SetupOptions{APN: "internet", DDSSlot: 0})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusSuccess, tx.Status)
	require.NotNil(t, tx.Duration)
	assert.Equal(t, ms(350), *tx.Duration)
	assert.Nil(t, tx.Secondary)
	assert.Equal(t, "7", tx.Labels["cid"])
	assert.Equal(t, "rmnet0", tx.Labels["ifname"])
	assert.Empty(t, out.Diagnostics)

	s := Summarize(out, 0)
	require.NotNil(t, s.Mean)
	assert.Equal(t, ms(350), *s.Mean)
	assert.Nil(t, s.MeanSecondary)
}

func TestSetupDataCallFailure(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(1000, "B", "RILJ: [0090]> SETUP_DATA_CALL apn=internet"),
		rec(1100, "B", "RILJ: [0090]< SETUP_DATA_CALL DataCallResponse: { cause=29 cid=-1 }"),
	), anySlot())

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusFailure, tx.Status)
	require.NotNil(t, tx.Cause)
	assert.Equal(t, 29, *tx.Cause)
	assert.Nil(t, tx.Duration)

	s := Summarize(out, 0)
	assert.Nil(t, s.Mean)
	assert.Equal(t, 1, s.Failure)
	assert.Equal(t, map[int]int{29: 1}, s.Causes)
}

func TestSetupDataCallUnexpectedCause(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "C", "RILJ: [0091]> SETUP_DATA_CALL apn=internet"),
		rec(200, "C", "RILJ: [0091]< SETUP_DATA_CALL DataCallResponse: { cause=MISSING_UNKNOWN_APN cid=7 }"),
		rec(350, "", unsolCid7),
	), anySlot())

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusIncomplete, tx.Status)
	assert.Nil(t, tx.Cause)
	assert.Nil(t, tx.Duration)
	assert.Nil(t, tx.Completion)
	assert.True(t, tx.HasNote(MalformedAttribute))
	assert.True(t, tx.HasNote(Ambiguous))

	s := Summarize(out, 0)
	assert.Equal(t, 0, s.Success)
	assert.Equal(t, 1, s.Incomplete)
	assert.Nil(t, s.Mean)
}

func TestSetupDataCallImsWithoutApnFilter(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=ims"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
		rec(500, "", "NetworkMonitor: isCaptivePortal: isSuccessful()=true"),
	), anySlot())

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Nil(t, tx.Validation)
	assert.Nil(t, tx.Secondary)
}

func TestSetupDataCallCaptivePortal(t *testing.T) {
	recs := tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
		rec(500, "", "NetworkMonitor: isCaptivePortal: isSuccessful()=true"),
	)

	out := ReconstructSetupDataCall(recs, SetupOptions{APN: "internet", DDSSlot: -1})
	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	require.NotNil(t, tx.Validation)
	require.NotNil(t, tx.Secondary)
	assert.Equal(t, ms(300), *tx.Secondary)
	assert.Equal(t, ms(350), *tx.Duration)

	// IMS calls end on the UNSOL; the captive-portal probe belongs to something else.
	recs = tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=ims"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
		rec(500, "", "NetworkMonitor: isCaptivePortal: isSuccessful()=true"),
	)
	out = ReconstructSetupDataCall(recs, SetupOptions{APN: "ims", DDSSlot: -1})
	require.Len(t, out.Transactions, 1)
	assert.Nil(t, out.Transactions[0].Validation)
	assert.Nil(t, out.Transactions[0].Secondary)
}

func TestSetupDataCallResponseWithoutRequest(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(200, "Z", setupResp),
	), anySlot())

	assert.Empty(t, out.Transactions)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pattern.SetupDataCallResponse, out.Diagnostics[0].Kind)
	assert.Equal(t, Ambiguous, out.Diagnostics[0].Class)
}

func TestSetupDataCallDuplicateID(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(100, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
	), anySlot())

	require.Len(t, out.Transactions, 2)
	first, second := out.Transactions[0], out.Transactions[1]
	assert.Equal(t, StatusIncomplete, first.Status)
	assert.True(t, first.HasNote(Ambiguous))
	assert.Contains(t, first.Missing, pattern.SetupDataCallResponse)

	assert.Equal(t, StatusSuccess, second.Status)
	assert.Equal(t, ms(250), *second.Duration)
}

func TestSetupDataCallDDSSwitch(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "0050", "RILJ: [0050]> SET_PREFERRED_DATA_MODEM modemId = 1"),
		rec(100, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet [PHONE1]"),
		rec(200, "A", setupResp),
		rec(400, "", unsolCid7),
	), SetupOptions{DDSSwitch: true, DDSSlot: 0})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	require.NotNil(t, tx.Trigger)
	assert.Equal(t, pattern.SetPreferredDataModem, tx.Trigger.Kind)
	assert.Equal(t, ms(400), *tx.Duration)
}

func TestSetupDataCallSlotFilter(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet [PHONE0]"),
		rec(200, "A", setupResp),
	), SetupOptions{DDSSlot: 1})

	assert.Empty(t, out.Transactions)
	assert.Len(t, out.Diagnostics, 1)
}

func TestSetupDataCallMissingUnsol(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "A", setupResp),
		rec(350, "", "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED [DataCallResponse: { cid=8 }]"),
	), anySlot())

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusIncomplete, tx.Status)
	assert.Nil(t, tx.Duration)
	assert.Equal(t, []pattern.Kind{pattern.UnsolDataCallListChanged}, tx.Missing)
}

func TestSetupDataCallCeiling(t *testing.T) {
	out := ReconstructSetupDataCall(tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
	), SetupOptions{DDSSlot: -1, Bounds: Bounds{FamilyDataCall: ms(100)}})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.True(t, tx.Flagged)
	assert.True(t, tx.HasNote(OutOfBounds))
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, 1, Summarize(out, 0).Flagged)
}

func TestSetupDataCallCountsAndDeterminism(t *testing.T) {
	events := tagged(
		rec(0, "A", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(100, "B", "RILJ: [0088]> SETUP_DATA_CALL apn=internet"),
		rec(150, "B", "RILJ: [0088]< SETUP_DATA_CALL DataCallResponse: { cause=33 }"),
		rec(200, "A", setupResp),
		rec(350, "", unsolCid7),
		rec(400, "C", "RILJ: [0089]> SETUP_DATA_CALL apn=internet"),
	)

	out := ReconstructSetupDataCall(events, anySlot())
	s := Summarize(out, 0)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, s.Total, s.Success+s.Failure+s.Incomplete)
	assert.Equal(t, 1, s.Success)
	assert.Equal(t, 1, s.Failure)
	assert.Equal(t, 1, s.Incomplete)

	again := ReconstructSetupDataCall(events, anySlot())
	assert.Equal(t, out, again)
}

func TestSetupDataCallEmpty(t *testing.T) {
	out := ReconstructSetupDataCall(nil, anySlot())
	assert.Empty(t, out.Transactions)
	assert.Empty(t, out.Diagnostics)

	s := Summarize(out, 0)
	assert.Zero(t, s.Total)
	assert.Nil(t, s.Mean)
	assert.Nil(t, s.MeanSecondary)
}
