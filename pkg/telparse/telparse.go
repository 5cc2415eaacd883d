// Package telparse reconstructs telephony transactions from device logs.
//
// Every entry point takes an ordered slice of records plus options and returns a
// typed result holding the transactions, stream diagnostics and aggregate
// statistics. Nothing here performs I/O or keeps state between calls.
package telparse

import (
	"log/slog"
	"time"

	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/pattern"
)

// Re-exported so callers need not import internal packages.
type (
	LogRecord    = model.LogRecord
	Transaction  = engine.Transaction
	Diagnostic   = engine.Diagnostic
	Summary      = engine.Summary
	Bounds       = engine.Bounds
	Interval     = engine.Interval
	CycleFailure = engine.CycleFailure
)

// Options are shared by every entry point.
type Options struct {
	// Strict turns MissingEvent and MalformedAttribute notes into a precondition
	// violation on the result.
	Strict bool
	// Bounds overrides the per-family duration ceilings.
	Bounds Bounds
	// Logger receives notes at debug level. Nil discards them.
	Logger *slog.Logger
	// HistogramBucket is the latency histogram bucket width.
	HistogramBucket time.Duration
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) bounds() Bounds {
	if o.Bounds != nil {
		return o.Bounds
	}
	return engine.DefaultBounds()
}

// Subscription is the subscription info of the device under test.
type Subscription struct {
	DDSSlot    int
	VoiceSubID int
	Operators  []string
}

// Result is what every entry point returns for one device and one family.
type Result struct {
	Query           string         `json:"query"`
	TaxonomyVersion string         `json:"taxonomy_version"`
	Family          engine.Family  `json:"family"`
	Transactions    []Transaction  `json:"transactions"`
	Diagnostics     []Diagnostic   `json:"diagnostics,omitempty"`
	Failures        []CycleFailure `json:"failures,omitempty"`
	Summary         Summary        `json:"summary"`
	// Violation is a human-readable precondition failure. When set the result
	// holds no transactions unless strict mode raised it.
	Violation string `json:"violation,omitempty"`
}

// Completed returns the transactions that ended in success or failure.
func (r *Result) Completed() []Transaction {
	out := engine.Output{Transactions: r.Transactions}
	return out.Completed()
}

// Mean returns the mean duration, or nil when no transaction has one.
func (r *Result) Mean() *time.Duration {
	return r.Summary.Mean
}

// violation builds a single-failure result.
func violation(query string, family engine.Family, reason string) Result {
	return Result{
		Query:           query,
		TaxonomyVersion: pattern.TaxonomyVersion,
		Family:          family,
		Summary:         engine.Summarize(engine.Output{Family: family}, 0),
		Violation:       reason,
	}
}

// finish summarizes out, reports its notes and applies strict mode.
func finish(query string, out engine.Output, opts Options) Result {
	res := Result{
		Query:           query,
		TaxonomyVersion: pattern.TaxonomyVersion,
		Family:          out.Family,
		Transactions:    out.Transactions,
		Diagnostics:     out.Diagnostics,
		Summary:         engine.Summarize(out, opts.HistogramBucket),
	}

	log := opts.logger().With(slog.String("query", query))
	for _, t := range out.Transactions {
		for _, n := range t.Notes {
			log.Debug("transaction note",
				slog.String("key", t.Key),
				slog.String("class", n.Class.String()),
				slog.String("text", n.Text))
		}
	}
	for _, d := range out.Diagnostics {
		log.Debug("stream diagnostic",
			slog.Int("index", d.Index),
			slog.String("kind", d.Kind.String()),
			slog.String("class", d.Class.String()),
			slog.String("text", d.Text))
	}

	if opts.Strict {
		for _, t := range out.Transactions {
			if t.HasNote(engine.MissingEvent) || t.HasNote(engine.MalformedAttribute) {
				res.Violation = "strict mode: transaction " + t.Key + " is missing an event or has a malformed attribute"
				break
			}
		}
	}
	return res
}

func tag(records []LogRecord) []pattern.Event {
	return pattern.TagAll(records)
}
