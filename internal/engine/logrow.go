package engine

import "strings"

// Filter defines criteria for record retrieval from captures.
type Filter struct {
	MinTime int64  `json:"min_time"` // Unix ms, 0 for unbounded
	MaxTime int64  `json:"max_time"`
	Query   string `json:"q"` // Plain substring of the record text
}

// Contains reports whether a row passes the filter.
func (f Filter) Contains(ts int64, text string) bool {
	if f.MinTime > 0 && ts < f.MinTime {
		return false
	}
	if f.MaxTime > 0 && ts > f.MaxTime {
		return false
	}
	return f.Query == "" || strings.Contains(text, f.Query)
}

// Overlaps reports whether a file spanning [minTs, maxTs] can hold matching rows.
func (f Filter) Overlaps(minTs, maxTs int64) bool {
	if f.MinTime > 0 && maxTs < f.MinTime {
		return false
	}
	if f.MaxTime > 0 && minTs > f.MaxTime {
		return false
	}
	return true
}
