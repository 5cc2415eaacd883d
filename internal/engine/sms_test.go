package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

const (
	sendText    = "SmsManager: smsSendTextMessage dest=+15551234: hello"
	sendSms     = "RILJ: [0100]> SEND_SMS [PHONE0]"
	sendSmsResp = "RILJ: [0100]< SEND_SMS { messageRef = 12 } [PHONE0]"
	newSms      = "RILJ: [UNSL]< UNSOL_RESPONSE_NEW_SMS [PHONE0]"
)

func TestMoSms(t *testing.T) {
	out := ReconstructMoSms(tagged(
		rec(5000, "", sendText),
		rec(5010, "0100", sendSms),
		rec(5120, "0100", sendSmsResp),
		rec(6010, "", "sl4a: onEvent SmsDeliverSuccess"),
	), SmsOptions{})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, "sms-0", tx.Key)
	assert.Equal(t, "hello", tx.Body)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, ms(110), *tx.Duration)
	require.NotNil(t, tx.Secondary)
	assert.Equal(t, ms(1000), *tx.Secondary)
	assert.Equal(t, "12", tx.Labels["message_ref"])
}

func TestMoSmsDeliveryFailure(t *testing.T) {
	out := ReconstructMoSms(tagged(
		rec(0, "", sendText),
		rec(10, "0100", sendSms),
		rec(120, "0100", sendSmsResp),
		rec(900, "", "sl4a: onEvent SmsDeliverFailure"),
	), SmsOptions{})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusFailure, tx.Status)
	assert.Equal(t, "failed", tx.Labels["delivery"])
	assert.Nil(t, tx.Duration)
	assert.Nil(t, tx.Cause)
}

func TestMoSmsErrorResponse(t *testing.T) {
	out := ReconstructMoSms(tagged(
		rec(10, "0100", sendSms),
		rec(50, "0100", "RILJ: [0100]< SEND_SMS error: GENERIC_FAILURE"),
		rec(60, "0101", "RILJ: [0101]> SEND_SMS_EXPECT_MORE"),
	), SmsOptions{})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusIncomplete, tx.Status)
	assert.True(t, tx.HasNote(Ambiguous))
	assert.Equal(t, []pattern.Kind{pattern.SmsSendResponse}, tx.Missing)
	assert.Empty(t, tx.Body)
}

func TestMoSmsResponseWithoutRequest(t *testing.T) {
	out := ReconstructMoSms(tagged(rec(50, "0100", sendSmsResp)), SmsOptions{})
	assert.Empty(t, out.Transactions)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pattern.SmsSendResponse, out.Diagnostics[0].Kind)
}

func TestMoSmsIms(t *testing.T) {
	out := ReconstructMoSmsIms(tagged(
		rec(0, "", sendText),
		rec(10, "", "ImsSmsDispatcher [0]: sendSms:  mRetryCount=0"),
		rec(20, "", "ImsSmsDispatcher [0]: sendSms:  mRetryCount=0"),
		rec(30, "", "ImsSmsDispatcher [0]: sendSms:  mRetryCount=0"),
		rec(100, "", "ImsSmsDispatcher [0]: onSendSmsResult token=1 status=1"),
		rec(150, "", "ImsSmsDispatcher [0]: onSendSmsResult token=2 status=2"),
	), SmsOptions{})

	require.Len(t, out.Transactions, 3)
	first, second, third := out.Transactions[0], out.Transactions[1], out.Transactions[2]

	assert.Equal(t, "ims-sms-0", first.Key)
	assert.Equal(t, "hello", first.Body)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, ms(90), *first.Duration)
	assert.Equal(t, "1", first.Labels["token"])

	assert.Equal(t, StatusFailure, second.Status)
	assert.Equal(t, 2, *second.Cause)
	assert.Nil(t, second.Duration)

	assert.Equal(t, StatusIncomplete, third.Status)
	assert.Equal(t, []pattern.Kind{pattern.ImsSmsSendResponse}, third.Missing)
}

func TestMoSmsImsResultWithoutStatus(t *testing.T) {
	out := ReconstructMoSmsIms(tagged(
		rec(100, "", "ImsSmsDispatcher [0]: onSendSmsResult token=7"),
		rec(200, "", "ImsSmsDispatcher [0]: sendSms:  mRetryCount=0"),
		rec(260, "", "ImsSmsDispatcher [0]: onSendSmsResult token=8"),
	), SmsOptions{})

	require.Len(t, out.Diagnostics, 1)
	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, ms(60), *tx.Duration)
	assert.True(t, tx.HasNote(Ambiguous))
}

func TestMtSms(t *testing.T) {
	out := ReconstructMtSms(tagged(
		rec(5300, "", newSms),
		rec(5305, "", `sl4a: onEvent SmsReceived {"Text":"hello"}`),
		rec(7000, "", newSms),
	), SmsOptions{})

	require.Len(t, out.Transactions, 2)
	first, second := out.Transactions[0], out.Transactions[1]
	assert.Equal(t, "mt-sms-0", first.Key)
	assert.Equal(t, "hello", first.Body)
	assert.Equal(t, ms(5), *first.Duration)

	assert.Equal(t, MtBodyPending, second.Body)
	assert.Equal(t, StatusIncomplete, second.Status)
	assert.Equal(t, []pattern.Kind{pattern.SmsReceivedContent}, second.Missing)
}

func TestMtSmsOverIms(t *testing.T) {
	events := tagged(
		rec(100, "", newSms),
		rec(200, "", "ImsSmsDispatcher [0]: SMS received"),
		rec(260, "", `sl4a: onEvent SmsReceived {"Text":"hi"}`),
	)

	out := ReconstructMtSms(events, SmsOptions{OverIms: true})
	require.Len(t, out.Transactions, 1)
	assert.Equal(t, ms(60), *out.Transactions[0].Duration)
	assert.Equal(t, "hi", out.Transactions[0].Body)

	ril := ReconstructMtSms(events, SmsOptions{})
	require.Len(t, ril.Transactions, 1)
	assert.Equal(t, ms(160), *ril.Transactions[0].Duration)
}

func TestMtSmsContentWithoutArrival(t *testing.T) {
	out := ReconstructMtSms(tagged(
		rec(0, "", `sl4a: onEvent SmsReceived {"Text":"hi"}`),
	), SmsOptions{})
	assert.Empty(t, out.Transactions)
	assert.Len(t, out.Diagnostics, 1)
}
