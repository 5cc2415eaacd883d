package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/klauspost/compress/zstd"
)

// Capture file header
var MagicHeader = []byte("NANOTEL1")

type ColumnWriter struct {
	encoder *zstd.Encoder
}

func NewColumnWriter() (*ColumnWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnWriter{encoder: enc}, nil
}

// Close releases the encoder.
func (cw *ColumnWriter) Close() error {
	return cw.encoder.Close()
}

// WriteSnapshot writes the MemTable to a .nano capture file.
// Layout: header, timestamp column, message id column, text column, footer.
func (cw *ColumnWriter) WriteSnapshot(filename string, mt *engine.MemTable) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := f.Write(MagicHeader); err != nil {
		return err
	}

	rowCount := uint32(len(mt.TsCol))
	if rowCount == 0 {
		return cw.writeFooter(f, 0, 0, 0)
	}

	minTs := mt.TsCol[0]
	maxTs := mt.TsCol[rowCount-1]

	if err := cw.writeInt64Col(f, mt.TsCol); err != nil {
		return fmt.Errorf("timestamp column: %w", err)
	}
	if err := cw.writeStringCol(f, mt.IDCol); err != nil {
		return fmt.Errorf("message id column: %w", err)
	}
	if err := cw.writeStringCol(f, mt.TextCol); err != nil {
		return fmt.Errorf("text column: %w", err)
	}

	return cw.writeFooter(f, rowCount, minTs, maxTs)
}

func (cw *ColumnWriter) writeInt64Col(f *os.File, data []int64) error {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return cw.compressAndWrite(f, buf)
}

func (cw *ColumnWriter) writeStringCol(f *os.File, data []string) error {
	buf := new(bytes.Buffer)
	// Serialize: [Len uint32][Bytes]...
	var n [4]byte
	for _, s := range data {
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		buf.Write(n[:])
		buf.WriteString(s)
	}
	return cw.compressAndWrite(f, buf.Bytes())
}

func (cw *ColumnWriter) compressAndWrite(f *os.File, raw []byte) error {
	compressed := cw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	// Compressed size (uint32), then data
	if err := binary.Write(f, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}
	_, err := f.Write(compressed)
	return err
}

func (cw *ColumnWriter) writeFooter(f *os.File, rowCount uint32, minTs, maxTs int64) error {
	// RowCount (4) + MinTs (8) + MaxTs (8)
	if err := binary.Write(f, binary.LittleEndian, rowCount); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, minTs); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, maxTs)
}
