package statistics

import "sort"

// DurationSummary aggregates per-check build durations for a pipeline run.
type DurationSummary struct {
	MinMs    int64 `json:"min_ms"`
	MaxMs    int64 `json:"max_ms"`
	MeanMs   int64 `json:"mean_ms"`
	MedianMs int64 `json:"median_ms"`
	TotalMs  int64 `json:"total_ms"`
}

// SummarizeDurations computes aggregate duration statistics over the given
// per-check durations in milliseconds. Returns nil when no durations exist,
// so callers can omit the summary from serialized output.
func SummarizeDurations(durationsMs []int64) *DurationSummary {
	n := len(durationsMs)
	if n == 0 {
		return nil
	}

	sorted := make([]int64, n)
	copy(sorted, durationsMs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total int64
	for _, d := range sorted {
		total += d
	}

	var median int64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return &DurationSummary{
		MinMs:    sorted[0],
		MaxMs:    sorted[n-1],
		MeanMs:   total / int64(n),
		MedianMs: median,
		TotalMs:  total,
	}
}
