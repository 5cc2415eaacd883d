package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coffersTech/nanotel/internal/model"
)

// MemTable buffers log records in columnar form before they are written to a
// capture file. Columns are exported for access by the storage package.
type MemTable struct {
	mu sync.RWMutex

	TsCol   []int64  // Unix milliseconds
	IDCol   []string // RIL serial, empty when absent
	TextCol []string

	// SizeBytes is the estimated memory usage in bytes.
	SizeBytes int64
}

// NewMemTable initializes a MemTable with pre-allocated capacity.
func NewMemTable() *MemTable {
	cap := 4096
	return &MemTable{
		TsCol:   make([]int64, 0, cap),
		IDCol:   make([]string, 0, cap),
		TextCol: make([]string, 0, cap),
	}
}

// Append adds a record.
func (mt *MemTable) Append(rec model.LogRecord) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.TsCol = append(mt.TsCol, rec.UnixMilli())
	mt.IDCol = append(mt.IDCol, rec.MessageID)
	mt.TextCol = append(mt.TextCol, rec.Text)

	atomic.AddInt64(&mt.SizeBytes, int64(len(rec.Text)+len(rec.MessageID)+8))
}

// AppendAll adds records in order.
func (mt *MemTable) AppendAll(recs []model.LogRecord) {
	for _, r := range recs {
		mt.Append(r)
	}
}

// GetSize returns the estimated memory usage in bytes.
func (mt *MemTable) GetSize() int64 {
	return atomic.LoadInt64(&mt.SizeBytes)
}

// Len returns the number of rows.
func (mt *MemTable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return len(mt.TsCol)
}

// Reset clears all column data for memory reuse.
func (mt *MemTable) Reset() {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.TsCol = mt.TsCol[:0]
	mt.IDCol = mt.IDCol[:0]
	mt.TextCol = mt.TextCol[:0]
	atomic.StoreInt64(&mt.SizeBytes, 0)
}

// MinTimestamp returns the first timestamp. Records are appended in time order.
func (mt *MemTable) MinTimestamp() int64 {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if len(mt.TsCol) == 0 {
		return 0
	}
	return mt.TsCol[0]
}

// MaxTimestamp returns the last timestamp.
func (mt *MemTable) MaxTimestamp() int64 {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if len(mt.TsCol) == 0 {
		return 0
	}
	return mt.TsCol[len(mt.TsCol)-1]
}

// Records returns the rows as log records, oldest first, restricted to filter.
func (mt *MemTable) Records(filter Filter) []model.LogRecord {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	var out []model.LogRecord
	for i, ts := range mt.TsCol {
		if !filter.Contains(ts, mt.TextCol[i]) {
			continue
		}
		out = append(out, model.LogRecord{
			Timestamp: time.UnixMilli(ts),
			Text:      mt.TextCol[i],
			MessageID: mt.IDCol[i],
		})
	}
	return out
}
