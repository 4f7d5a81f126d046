package detector

import "math"

// history holds the most recent heartbeat inter-arrival intervals for one
// peer, in milliseconds, plus running sum and sum-of-squares so mean and
// variance are O(1) to query after every push.
//
// Storage is a fixed ring buffer: once the window is full the oldest sample
// is evicted and its exact contribution subtracted from the running sums, so
// the aggregates always describe exactly the intervals resident in the
// window.
type history struct {
	intervals  []float64 // ring storage, len == window capacity
	next       int       // write cursor, wraps around
	count      int       // resident samples, <= len(intervals)
	sum        float64
	squaredSum float64
}

func newHistory(maxSampleSize int) *history {
	return &history{intervals: make([]float64, maxSampleSize)}
}

// push records an interval. Negative input is clamped to zero so a
// misbehaving clock can never corrupt the aggregates.
func (h *history) push(interval float64) {
	if interval < 0 {
		interval = 0
	}
	if h.count == len(h.intervals) {
		oldest := h.intervals[h.next]
		h.sum -= oldest
		h.squaredSum -= oldest * oldest
		h.count--
	}
	h.intervals[h.next] = interval
	h.next = (h.next + 1) % len(h.intervals)
	h.count++
	h.sum += interval
	h.squaredSum += interval * interval
}

// mean of the resident intervals. Undefined for an empty window; the
// detector seeds the window at construction so count is always >= 1 here.
func (h *history) mean() float64 {
	return h.sum / float64(h.count)
}

// variance of the resident intervals. Clamped at zero: the single-pass
// sum-of-squares form can go slightly negative through cancellation when
// intervals are large and tightly clustered.
func (h *history) variance() float64 {
	m := h.mean()
	v := h.squaredSum/float64(h.count) - m*m
	if v < 0 {
		return 0
	}
	return v
}

func (h *history) stdDeviation() float64 {
	return math.Sqrt(h.variance())
}
