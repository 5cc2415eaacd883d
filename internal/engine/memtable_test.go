package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/pkg/nanoql"
)

func TestMemTableAppendAndRecords(t *testing.T) {
	mt := NewMemTable()
	mt.AppendAll([]model.LogRecord{
		rec(0, "0087", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "0087", setupResp),
		rec(350, "", unsolCid7),
	})

	assert.Equal(t, 3, mt.Len())
	assert.Equal(t, at(0).UnixMilli(), mt.MinTimestamp())
	assert.Equal(t, at(350).UnixMilli(), mt.MaxTimestamp())
	assert.Positive(t, mt.GetSize())

	all := mt.Records(Filter{})
	require.Len(t, all, 3)
	assert.True(t, all[1].Timestamp.Equal(at(200)))
	assert.Equal(t, "0087", all[1].MessageID)

	window := mt.Records(Filter{MinTime: at(100).UnixMilli(), Query: "UNSOL"})
	require.Len(t, window, 1)
	assert.Equal(t, unsolCid7, window[0].Text)

	mt.Reset()
	assert.Zero(t, mt.Len())
	assert.Zero(t, mt.GetSize())
	assert.Zero(t, mt.MinTimestamp())
}

func TestFilterOverlaps(t *testing.T) {
	f := Filter{MinTime: 100, MaxTime: 200}
	assert.True(t, f.Overlaps(50, 150))
	assert.True(t, f.Overlaps(150, 300))
	assert.False(t, f.Overlaps(10, 99))
	assert.False(t, f.Overlaps(201, 400))
	assert.True(t, Filter{}.Overlaps(0, 1))
}

func TestFlushMemTable(t *testing.T) {
	dir := t.TempDir()
	mt := NewMemTable()

	path, err := FlushMemTable(mt, dir, func(string, *MemTable) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, path)

	mt.Append(rec(0, "", "a"))
	mt.Append(rec(10, "", "b"))

	var written int
	path, err = FlushMemTable(mt, dir, func(name string, m *MemTable) error {
		written = m.Len()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, filepath.Join(dir, CaptureName(at(0).UnixMilli(), at(10).UnixMilli())), path)
	assert.Zero(t, mt.Len())

	mt.Append(rec(0, "", "a"))
	boom := errors.New("disk full")
	_, err = FlushMemTable(mt, dir, func(string, *MemTable) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mt.Len())
}

func TestFilterRecords(t *testing.T) {
	recs := []model.LogRecord{
		rec(0, "0087", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		rec(200, "0087", setupResp),
		rec(350, "", unsolCid7),
		rec(400, "", "ActivityManager: noise"),
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"kind:SetupDataCallRequest", 1},
		{"kind:SetupDataCallRequest OR kind:UnsolDataCallListChanged", 2},
		{"id:0087 AND NOT kind:SetupDataCallResponse", 1},
		{`text:"cid=7"`, 2},
		{"ts>=200 ts<400", 2},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := FilterRecords(recs, tt.query)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	for _, bad := range []string{"(kind:SmsSendRequest", "kind:SetupDataCalRequest"} {
		_, err := FilterRecords(recs, bad)
		var se *nanoql.SyntaxError
		assert.ErrorAs(t, err, &se, bad)
	}
}
