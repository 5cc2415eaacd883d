package engine

import (
	"fmt"

	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/pattern"
	"github.com/coffersTech/nanotel/internal/pkg/nanoql"
)

// recordView exposes a LogRecord to the filter language. Tags are computed on
// first use of kind:.
type recordView struct {
	rec    *model.LogRecord
	tags   []pattern.Tag
	tagged bool
}

func (v *recordView) UnixMilli() int64  { return v.rec.UnixMilli() }
func (v *recordView) Text() string      { return v.rec.Text }
func (v *recordView) MessageID() string { return v.rec.MessageID }

func (v *recordView) HasKind(k pattern.Kind) bool {
	if !v.tagged {
		v.tags = pattern.Match(v.rec)
		v.tagged = true
	}
	for _, t := range v.tags {
		if t.Kind == k {
			return true
		}
	}
	return false
}

// MatchNanoQL evaluates a compiled filter against one record.
func MatchNanoQL(node nanoql.Node, rec *model.LogRecord) bool {
	if node == nil {
		return true
	}
	return nanoql.Match(node, &recordView{rec: rec})
}

// ParseNanoQL compiles a filter. Unknown fields and event kinds are errors.
// Returns nil if query is blank.
func ParseNanoQL(query string) (nanoql.Node, error) {
	return nanoql.Parse(query)
}

// FilterRecords keeps the records matching query, preserving order. An empty
// query returns records unchanged.
func FilterRecords(records []model.LogRecord, query string) ([]model.LogRecord, error) {
	node, err := ParseNanoQL(query)
	if err != nil {
		return nil, fmt.Errorf("parse filter %q: %w", query, err)
	}
	if node == nil {
		return records, nil
	}
	var out []model.LogRecord
	for i := range records {
		if MatchNanoQL(node, &records[i]) {
			out = append(out, records[i])
		}
	}
	return out, nil
}
