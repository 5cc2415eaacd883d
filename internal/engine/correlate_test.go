package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

func TestCorrelateSmsDelivery(t *testing.T) {
	mo := ReconstructMoSms(tagged(
		rec(5000, "", sendText),
		rec(5010, "0100", sendSms),
		rec(5120, "0100", sendSmsResp),
	), SmsOptions{})
	mt := ReconstructMtSms(tagged(
		rec(5300, "", newSms),
		rec(5305, "", `sl4a: onEvent SmsReceived {"Text":"hello"}`),
	), SmsOptions{})

	require.Len(t, mo.Transactions, 1)
	assert.Equal(t, ms(110), *mo.Transactions[0].Duration)

	out := CorrelateSmsDelivery(mo, mt, nil)
	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, FamilySmsDelivery, tx.Family)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, ms(290), *tx.Duration)
	assert.Equal(t, "mt-sms-0", tx.Labels["mt_key"])
}

func TestCorrelateSmsDeliveryClaimsOnce(t *testing.T) {
	mo := ReconstructMoSms(tagged(
		rec(0, "", sendText),
		rec(10, "0100", sendSms),
		rec(50, "0100", sendSmsResp),
		rec(100, "", sendText),
		rec(110, "0101", "RILJ: [0101]> SEND_SMS"),
		rec(150, "0101", "RILJ: [0101]< SEND_SMS { messageRef = 13 }"),
	), SmsOptions{})
	mt := ReconstructMtSms(tagged(
		rec(5, "", newSms),
		rec(6, "", `sl4a: onEvent SmsReceived {"Text":"hello"}`),
		rec(300, "", newSms),
		rec(301, "", `sl4a: onEvent SmsReceived {"Text":"hello"}`),
	), SmsOptions{})

	out := CorrelateSmsDelivery(mo, mt, nil)
	require.Len(t, out.Transactions, 2)

	// The arrival at 5ms precedes every send and is never taken.
	first, second := out.Transactions[0], out.Transactions[1]
	assert.Equal(t, "mt-sms-1", first.Labels["mt_key"])
	assert.Equal(t, ms(290), *first.Duration)
	assert.Equal(t, StatusIncomplete, second.Status)
	assert.Equal(t, []pattern.Kind{pattern.UnsolResponseNewSms}, second.Missing)
}

func TestCorrelateSmsDeliveryUnknownBody(t *testing.T) {
	mo := ReconstructMoSms(tagged(
		rec(10, "0100", sendSms),
		rec(50, "0100", sendSmsResp),
	), SmsOptions{})
	mt := ReconstructMtSms(tagged(
		rec(300, "", newSms),
		rec(301, "", `sl4a: onEvent SmsReceived {"Text":"hello"}`),
	), SmsOptions{})

	out := CorrelateSmsDelivery(mo, mt, nil)
	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, StatusIncomplete, tx.Status)
	assert.Equal(t, []pattern.Kind{pattern.SmsSendText}, tx.Missing)
	assert.True(t, tx.HasNote(MissingEvent))
}
