package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/model"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func record(ms int, id, text string) model.LogRecord {
	return model.LogRecord{Timestamp: base.Add(time.Duration(ms) * time.Millisecond), Text: text, MessageID: id}
}

// writeCapture flushes recs into dir the way the pack command does.
func writeCapture(t *testing.T, dir string, recs ...model.LogRecord) string {
	t.Helper()
	w, err := NewColumnWriter()
	require.NoError(t, err)
	defer w.Close()

	mt := engine.NewMemTable()
	mt.AppendAll(recs)
	path, err := engine.FlushMemTable(mt, dir, w.WriteSnapshot)
	require.NoError(t, err)
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeCapture(t, dir,
		record(0, "0087", "RILJ: [0087]> SETUP_DATA_CALL apn=internet"),
		record(200, "0087", "RILJ: [0087]< SETUP_DATA_CALL cause=0 cid=7"),
		record(350, "", "RILJ: [UNSL]< UNSOL_DATA_CALL_LIST_CHANGED"),
	)

	footer, err := ReadFooter(path)
	require.NoError(t, err)
	assert.Equal(t, 3, footer.RowCount)
	assert.Equal(t, base.UnixMilli(), footer.MinTs)
	assert.Equal(t, base.Add(350*time.Millisecond).UnixMilli(), footer.MaxTs)

	r, err := NewColumnReader()
	require.NoError(t, err)
	defer r.Close()

	recs, err := r.ReadSnapshot(path, engine.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "0087", recs[1].MessageID)
	assert.Equal(t, "RILJ: [0087]< SETUP_DATA_CALL cause=0 cid=7", recs[1].Text)
	assert.True(t, recs[2].Timestamp.Equal(base.Add(350*time.Millisecond)))
	assert.Empty(t, recs[2].MessageID)

	recs, err = r.ReadSnapshot(path, engine.Filter{Query: "UNSOL"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = r.ReadSnapshot(path, engine.Filter{MinTime: base.Add(time.Hour).UnixMilli()})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture_1_2.nano")
	require.NoError(t, os.WriteFile(path, []byte("NOTNANO!and some more bytes to pass the size check"), 0o644))

	r, err := NewColumnReader()
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadSnapshot(path, engine.Filter{})
	assert.ErrorIs(t, err, ErrInvalidHeader)

	short := filepath.Join(t.TempDir(), "short.nano")
	require.NoError(t, os.WriteFile(short, MagicHeader, 0o644))
	_, err = ReadFooter(short)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCatalogReadMergesCaptures(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir,
		record(1000, "", "second file, first row"),
		record(3000, "", "second file, second row"),
	)
	writeCapture(t, dir,
		record(0, "", "first file"),
		record(2000, "", "first file, late row"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	c, err := OpenCatalog(dir, nil)
	require.NoError(t, err)
	defer c.Close()

	files, err := c.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	recs, err := c.Read(engine.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for i := 1; i < len(recs); i++ {
		assert.False(t, recs[i].Timestamp.Before(recs[i-1].Timestamp))
	}
	assert.Equal(t, "first file", recs[0].Text)

	recs, err = c.Read(engine.Filter{MinTime: base.Add(2500 * time.Millisecond).UnixMilli()})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "second file, second row", recs[0].Text)
}

func TestCatalogMissingDir(t *testing.T) {
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	defer c.Close()

	recs, err := c.Read(engine.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCatalogPurge(t *testing.T) {
	dir := t.TempDir()
	old := writeCapture(t, dir, record(0, "", "old"))
	writeCapture(t, dir, record(int(48*time.Hour/time.Millisecond), "", "recent"))

	c, err := OpenCatalog(dir, nil)
	require.NoError(t, err)
	defer c.Close()

	now := base.Add(49 * time.Hour)
	removed, err := c.Purge(now, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = c.Purge(now, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)

	files, err := c.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestParseTsFromFilename(t *testing.T) {
	minTs, maxTs, err := parseTsFromFilename("/data/capture_100_200.nano")
	require.NoError(t, err)
	assert.Equal(t, int64(100), minTs)
	assert.Equal(t, int64(200), maxTs)

	for _, bad := range []string{"capture_1.nano", "capture_a_b.nano", "snapshot_1_2.nano", "capture_1_2.bin"} {
		_, _, err := parseTsFromFilename(bad)
		assert.Error(t, err, bad)
	}
}
