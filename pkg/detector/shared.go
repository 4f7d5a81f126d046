package detector

import (
	"sync"
	"time"
)

// Shared is a Detector safe for concurrent use by multiple goroutines. A
// single mutex guards the whole detector state, so concurrent heartbeats
// never interleave the aggregate updates and a concurrent phi query always
// observes a consistent (mean, variance, timestamp) snapshot.
type Shared struct {
	mu sync.Mutex
	d  *Detector
}

// NewShared builds a Shared detector or reports the first configuration
// error.
func NewShared(cfg Config) (*Shared, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Shared{d: d}, nil
}

// Heartbeat notifies the detector that a heartbeat arrived at the given
// time.
func (s *Shared) Heartbeat(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.Heartbeat(now)
}

// Phi returns the current suspicion level.
func (s *Shared) Phi(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Phi(now)
}

// IsAvailable reports whether the peer is considered up at the given time.
func (s *Shared) IsAvailable(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.IsAvailable(now)
}

// IsMonitoring reports whether at least one heartbeat has been observed.
func (s *Shared) IsMonitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.IsMonitoring()
}

// Threshold returns the configured suspicion cutoff.
func (s *Shared) Threshold() float64 {
	return s.d.threshold
}
