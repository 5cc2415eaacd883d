package engine

import (
	"sort"
	"time"
)

type HistogramPoint struct {
	Start float64 `json:"start_seconds"`
	Count int     `json:"count"`
}

// ComputeHistogram aggregates durations into fixed-width buckets. Empty buckets
// are omitted.
func ComputeHistogram(durations []time.Duration, interval time.Duration) []HistogramPoint {
	if interval <= 0 || len(durations) == 0 {
		return nil
	}

	// bucket index -> count
	buckets := make(map[int64]int)
	for _, d := range durations {
		if d < 0 {
			continue
		}
		buckets[int64(d/interval)]++
	}

	var points []HistogramPoint
	for b, c := range buckets {
		points = append(points, HistogramPoint{
			Start: (time.Duration(b) * interval).Seconds(),
			Count: c,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Start < points[j].Start
	})

	return points
}
