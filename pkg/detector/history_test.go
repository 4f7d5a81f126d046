package detector

import (
	"math"
	"testing"
)

func TestHistoryRunningStats(t *testing.T) {
	h := newHistory(10)
	for _, v := range []float64{1000, 1000, 1000} {
		h.push(v)
	}
	if got := h.mean(); got != 1000 {
		t.Fatalf("mean = %v, want 1000", got)
	}
	if got := h.variance(); got != 0 {
		t.Fatalf("variance = %v, want 0", got)
	}

	h.push(2000)
	if got := h.mean(); got != 1250 {
		t.Fatalf("mean after push = %v, want 1250", got)
	}
	// {1000,1000,1000,2000}: E[x^2]=1.75e6, mean^2=1.5625e6
	if got := h.variance(); math.Abs(got-187500) > 1e-6 {
		t.Fatalf("variance after push = %v, want 187500", got)
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := newHistory(3)
	for _, v := range []float64{100, 200, 300} {
		h.push(v)
	}
	if got := h.mean(); got != 200 {
		t.Fatalf("mean = %v, want 200", got)
	}

	h.push(400) // evicts 100
	if got := h.mean(); got != 300 {
		t.Fatalf("mean after first eviction = %v, want 300", got)
	}
	h.push(500) // evicts 200
	if got := h.mean(); got != 400 {
		t.Fatalf("mean after second eviction = %v, want 400", got)
	}
	if h.count != 3 {
		t.Fatalf("count = %d, want 3 (window must stay bounded)", h.count)
	}
	// {300,400,500}: E[x^2]=166666.67, mean^2=160000
	if got := h.variance(); math.Abs(got-6666.666666) > 1e-3 {
		t.Fatalf("variance after evictions = %v, want ~6666.67", got)
	}
}

func TestHistoryClampsNegativeInput(t *testing.T) {
	h := newHistory(4)
	h.push(-50)
	if got := h.mean(); got != 0 {
		t.Fatalf("mean after negative push = %v, want 0", got)
	}
	h.push(0) // zero is a legal interval
	if h.count != 2 {
		t.Fatalf("count = %d, want 2", h.count)
	}
	if got := h.variance(); got != 0 {
		t.Fatalf("variance = %v, want 0", got)
	}
}

func TestHistoryVarianceNeverNegative(t *testing.T) {
	// Large, tightly clustered samples provoke cancellation in the
	// single-pass variance; it must clamp at zero, never go negative.
	h := newHistory(8)
	for i := 0; i < 8; i++ {
		h.push(1e9 + 0.0001*float64(i%2))
	}
	if got := h.variance(); got < 0 {
		t.Fatalf("variance = %v, want >= 0", got)
	}
	if got := h.stdDeviation(); math.IsNaN(got) {
		t.Fatalf("stdDeviation is NaN")
	}
}
