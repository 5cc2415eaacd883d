package model

import "time"

// LogRecord is one time-stamped line emitted by a device log reader.
// Records are immutable once produced; the analyzer only borrows them.
type LogRecord struct {
	Timestamp time.Time
	Text      string
	// MessageID is the RIL serial (or other opaque correlation id) carried by the
	// line. Empty when the producer could not attach one.
	MessageID string
}

// HasMessageID reports whether the record carries a correlation id.
func (r *LogRecord) HasMessageID() bool {
	return r.MessageID != ""
}

// UnixMilli returns the record timestamp in milliseconds since the epoch.
func (r *LogRecord) UnixMilli() int64 {
	return r.Timestamp.UnixMilli()
}
