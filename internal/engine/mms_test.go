package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/pattern"
)

func TestMmsSend(t *testing.T) {
	out := ReconstructMms(tagged(
		rec(0, "", "MmsService: SendRequest@R1: start new network request"),
		rec(2500, "", "MmsService: SendRequest@R1: HTTP 200 OK"),
	), MmsOptions{})

	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, "R1", tx.Key)
	assert.Equal(t, "send", tx.Labels["direction"])
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, 2500*time.Millisecond, *tx.Duration)
	assert.Empty(t, tx.Missing)
}

func TestMmsGroupsByRequestID(t *testing.T) {
	out := ReconstructMms(tagged(
		rec(0, "", "MmsService: DownloadRequest@D7: execute"),
		rec(10, "", "MmsService: SendRequest@S1: start new network request"),
		rec(20, "", "MmsService: DownloadRequest@D7: 200 OK too early"),
		rec(100, "", "MmsService: DownloadRequest@D7: start new network request"),
		rec(900, "", "MmsService: DownloadRequest@D7: HTTP 200 OK"),
		rec(950, "", "MmsService: DownloadRequest@D7: HTTP 200 OK"),
		rec(960, "", "MmsService: HTTP 200 OK"),
	), MmsOptions{})

	require.Len(t, out.Transactions, 2)
	byKey := out.ByKey()

	d := byKey["D7"]
	assert.Equal(t, "download", d.Labels["direction"])
	assert.Equal(t, ms(800), *d.Duration)
	assert.True(t, d.HasNote(Ambiguous))

	s := byKey["S1"]
	assert.Equal(t, StatusIncomplete, s.Status)
	assert.Equal(t, []pattern.Kind{pattern.Mms200Ok}, s.Missing)
}
