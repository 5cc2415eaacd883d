package engine

import (
	"time"

	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/pattern"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// at returns t0 plus ms milliseconds.
func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func rec(ms int, id, text string) model.LogRecord {
	return model.LogRecord{Timestamp: at(ms), Text: text, MessageID: id}
}

func tagged(recs ...model.LogRecord) []pattern.Event {
	return pattern.TagAll(recs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
