package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/model"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrInvalidHeader = errors.New("invalid .nano file header")
	ErrCorrupt       = errors.New("corrupt .nano file")
)

const (
	headerSize = 8
	footerSize = 20
)

// RecordIterator provides a row-by-row view of a capture.
type RecordIterator interface {
	Next() bool
	Record() model.LogRecord
	Error() error
	Close() error
}

type ColumnReader struct {
	decoder *zstd.Decoder
}

func NewColumnReader() (*ColumnReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnReader{decoder: dec}, nil
}

// Close releases the decoder.
func (cr *ColumnReader) Close() {
	cr.decoder.Close()
}

// Footer is the capture summary stored at the end of each file.
type Footer struct {
	RowCount int
	MinTs    int64
	MaxTs    int64
}

// NewIterator creates a new iterator for a .nano file with filtering.
func (cr *ColumnReader) NewIterator(filename string, filter engine.Filter) (RecordIterator, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	it := &FileIterator{
		reader: cr,
		file:   f,
		filter: filter,
	}

	if err := it.init(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return it, nil
}

type FileIterator struct {
	reader *ColumnReader
	file   *os.File
	filter engine.Filter

	timestamps []int64
	ids        []string
	texts      []string

	rowCount int
	cursor   int
	curr     model.LogRecord
	err      error
}

func readFooter(f *os.File) (Footer, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return Footer{}, err
	}
	if !bytes.Equal(header, MagicHeader) {
		return Footer{}, ErrInvalidHeader
	}

	info, err := f.Stat()
	if err != nil {
		return Footer{}, err
	}
	if info.Size() < headerSize+footerSize {
		return Footer{}, fmt.Errorf("%w: file too small", ErrCorrupt)
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		return Footer{}, err
	}
	return Footer{
		RowCount: int(binary.LittleEndian.Uint32(footer[0:4])),
		MinTs:    int64(binary.LittleEndian.Uint64(footer[4:12])),
		MaxTs:    int64(binary.LittleEndian.Uint64(footer[12:20])),
	}, nil
}

func (it *FileIterator) init() error {
	footer, err := readFooter(it.file)
	if err != nil {
		return err
	}
	it.rowCount = footer.RowCount
	it.cursor = -1

	// File-level pruning on the footer range
	if it.rowCount > 0 && !it.filter.Overlaps(footer.MinTs, footer.MaxTs) {
		it.rowCount = 0
		return nil
	}
	if it.rowCount == 0 {
		return nil
	}

	// Columns are stored as whole compressed blocks.
	tsData, err := it.reader.readAndDecompress(it.file)
	if err != nil {
		return err
	}
	it.timestamps = bytesToInt64Slice(tsData)

	idData, err := it.reader.readAndDecompress(it.file)
	if err != nil {
		return err
	}
	it.ids = bytesToStringSlice(idData)

	textData, err := it.reader.readAndDecompress(it.file)
	if err != nil {
		return err
	}
	it.texts = bytesToStringSlice(textData)

	if it.rowCount != len(it.timestamps) || it.rowCount != len(it.ids) || it.rowCount != len(it.texts) {
		return fmt.Errorf("%w: column length mismatch", ErrCorrupt)
	}

	return nil
}

func (it *FileIterator) Next() bool {
	for {
		it.cursor++
		if it.cursor >= it.rowCount {
			return false
		}

		ts := it.timestamps[it.cursor]
		text := it.texts[it.cursor]
		if !it.filter.Contains(ts, text) {
			continue
		}

		it.curr = model.LogRecord{
			Timestamp: time.UnixMilli(ts),
			Text:      text,
			MessageID: it.ids[it.cursor],
		}
		return true
	}
}

func (it *FileIterator) Record() model.LogRecord {
	return it.curr
}

func (it *FileIterator) Error() error {
	return it.err
}

func (it *FileIterator) Close() error {
	return it.file.Close()
}

// ReadSnapshot reads a .nano file and returns the records matching the filter.
func (cr *ColumnReader) ReadSnapshot(filename string, filter engine.Filter) ([]model.LogRecord, error) {
	it, err := cr.NewIterator(filename, filter)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var recs []model.LogRecord
	for it.Next() {
		recs = append(recs, it.Record())
	}
	return recs, it.Error()
}

// ReadFooter returns the summary of a capture without decompressing its columns.
func ReadFooter(filename string) (Footer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Footer{}, err
	}
	defer f.Close()
	return readFooter(f)
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (cr *ColumnReader) readAndDecompress(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	return cr.decoder.DecodeAll(compressed, nil)
}

// bytesToInt64Slice converts a byte slice to []int64 (LittleEndian).
func bytesToInt64Slice(data []byte) []int64 {
	count := len(data) / 8
	result := make([]int64, count)
	for i := 0; i < count; i++ {
		result[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return result
}

// bytesToStringSlice converts a byte slice to []string.
// Format: [Len uint32][Bytes]...
func bytesToStringSlice(data []byte) []string {
	var result []string
	for len(data) >= 4 {
		n := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if n > len(data) {
			break
		}
		result = append(result, string(data[:n]))
		data = data[n:]
	}
	return result
}
