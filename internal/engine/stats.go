package engine

import (
	"encoding/json"
	"sort"
	"time"
)

// DefaultHistogramBucket is the bucket width used when the caller picks none.
const DefaultHistogramBucket = 100 * time.Millisecond

// Summary aggregates one family's transactions.
type Summary struct {
	Family     Family
	Total      int
	Success    int
	Failure    int
	Incomplete int
	// Flagged counts transactions whose duration exceeded the family ceiling.
	Flagged int
	// Causes is the failure-cause histogram. Failures without a cause are not counted.
	Causes map[int]int

	Mean          *time.Duration
	MeanSecondary *time.Duration
	Min           *time.Duration
	Max           *time.Duration
	Median        *time.Duration
	P90           *time.Duration

	Histogram []HistogramPoint
}

// Summarize computes the aggregate statistics of out. Means are nil when no
// transaction carries a duration.
func Summarize(out Output, bucket time.Duration) Summary {
	s := Summary{
		Family: out.Family,
		Total:  len(out.Transactions),
		Causes: make(map[int]int),
	}

	var durations, secondary []time.Duration
	for _, t := range out.Transactions {
		switch t.Status {
		case StatusSuccess:
			s.Success++
		case StatusFailure:
			s.Failure++
			if t.Cause != nil {
				s.Causes[*t.Cause]++
			}
		default:
			s.Incomplete++
		}
		if t.Flagged {
			s.Flagged++
		}
		if t.Duration != nil {
			durations = append(durations, *t.Duration)
		}
		if t.Secondary != nil {
			secondary = append(secondary, *t.Secondary)
		}
	}

	s.Mean = mean(durations)
	s.MeanSecondary = mean(secondary)
	if len(durations) > 0 {
		sorted := append([]time.Duration(nil), durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.Min = &sorted[0]
		s.Max = &sorted[len(sorted)-1]
		s.Median = median(sorted)
		s.P90 = percentile(sorted, 90)
	}
	if bucket <= 0 {
		bucket = DefaultHistogramBucket
	}
	s.Histogram = ComputeHistogram(durations, bucket)
	return s
}

// MeanDuration returns the mean of the non-null durations, or nil.
func MeanDuration(txs []Transaction) *time.Duration {
	var ds []time.Duration
	for _, t := range txs {
		if t.Duration != nil {
			ds = append(ds, *t.Duration)
		}
	}
	return mean(ds)
}

func mean(ds []time.Duration) *time.Duration {
	if len(ds) == 0 {
		return nil
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	m := sum / time.Duration(len(ds))
	return &m
}

func median(sorted []time.Duration) *time.Duration {
	n := len(sorted)
	m := sorted[n/2]
	if n%2 == 0 {
		m = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return &m
}

// percentile uses the nearest-rank method.
func percentile(sorted []time.Duration, p int) *time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	v := sorted[rank-1]
	return &v
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Family               Family           `json:"family"`
		Total                int              `json:"total"`
		Success              int              `json:"success"`
		Failure              int              `json:"failure"`
		Incomplete           int              `json:"incomplete"`
		Flagged              int              `json:"flagged"`
		Causes               map[int]int      `json:"causes,omitempty"`
		MeanSeconds          *float64         `json:"mean_seconds"`
		MeanSecondarySeconds *float64         `json:"mean_secondary_seconds"`
		MinSeconds           *float64         `json:"min_seconds,omitempty"`
		MaxSeconds           *float64         `json:"max_seconds,omitempty"`
		MedianSeconds        *float64         `json:"median_seconds,omitempty"`
		P90Seconds           *float64         `json:"p90_seconds,omitempty"`
		Histogram            []HistogramPoint `json:"histogram,omitempty"`
	}{
		s.Family, s.Total, s.Success, s.Failure, s.Incomplete, s.Flagged, s.Causes,
		seconds(s.Mean), seconds(s.MeanSecondary), seconds(s.Min), seconds(s.Max),
		seconds(s.Median), seconds(s.P90), s.Histogram,
	})
}
