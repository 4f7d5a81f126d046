package detector

import (
	"errors"
	"math"
	"time"
)

// Configuration errors reported by Config.Validate and New.
var (
	ErrThreshold              = errors.New("threshold must be > 0")
	ErrMaxSampleSize          = errors.New("max sample size must be > 0")
	ErrMinStdDeviation        = errors.New("min std deviation must be > 0")
	ErrAcceptablePause        = errors.New("acceptable heartbeat pause must be >= 0")
	ErrFirstHeartbeatEstimate = errors.New("first heartbeat estimate must be > 0")
)

// Config tunes a Detector.
type Config struct {
	// Threshold is the phi value above which the peer is declared
	// unavailable. A low threshold is prone to wrong suspicions but detects
	// a real crash quickly; a high threshold makes fewer mistakes but needs
	// more time to detect actual crashes.
	Threshold float64

	// MaxSampleSize is the number of inter-arrival samples used to estimate
	// mean and standard deviation.
	MaxSampleSize int

	// MinStdDeviation is a floor on the standard deviation used when
	// calculating phi. Too low a value makes the detector oversensitive to
	// sudden but normal jitter in heartbeat arrivals.
	MinStdDeviation time.Duration

	// AcceptableHeartbeatPause is the pause duration tolerated before a
	// silence counts toward suspicion, to survive occasional GC stalls or
	// network drops.
	AcceptableHeartbeatPause time.Duration

	// FirstHeartbeatEstimate bootstraps the statistics before any real
	// interval has been observed, with a rather high standard deviation
	// since the environment is unknown in the beginning.
	FirstHeartbeatEstimate time.Duration
}

// DefaultConfig returns the commonly used tuning: threshold 8.0, a window of
// 100 samples, 100ms deviation floor, 3s acceptable pause, 1s first estimate.
func DefaultConfig() Config {
	return Config{
		Threshold:                8.0,
		MaxSampleSize:            100,
		MinStdDeviation:          100 * time.Millisecond,
		AcceptableHeartbeatPause: 3 * time.Second,
		FirstHeartbeatEstimate:   time.Second,
	}
}

// Validate rejects configurations the detector cannot operate with.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return ErrThreshold
	}
	if c.MaxSampleSize <= 0 {
		return ErrMaxSampleSize
	}
	if c.MinStdDeviation <= 0 {
		return ErrMinStdDeviation
	}
	if c.AcceptableHeartbeatPause < 0 {
		return ErrAcceptablePause
	}
	if c.FirstHeartbeatEstimate <= 0 {
		return ErrFirstHeartbeatEstimate
	}
	return nil
}

// Detector is the single-owner phi accrual failure detector for one
// monitored peer. It carries no locking: the owner serializes Heartbeat and
// query calls itself, or wraps the detector in Shared.
//
// Timestamps passed to Heartbeat are expected in non-decreasing order; a
// regression (clock skew) is absorbed by clamping, never by reordering.
type Detector struct {
	threshold         float64
	minStdDeviationMS float64
	acceptablePauseMS float64
	history           *history
	lastTimestamp     time.Time // zero until the first heartbeat
}

// New builds a Detector or reports the first configuration error.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Seed the window with two synthetic samples around the first
	// heartbeat estimate so mean and variance are defined before any real
	// interval arrives.
	estimateMS := millis(cfg.FirstHeartbeatEstimate)
	spreadMS := estimateMS / 4
	h := newHistory(cfg.MaxSampleSize)
	h.push(estimateMS - spreadMS)
	h.push(estimateMS + spreadMS)

	return &Detector{
		threshold:         cfg.Threshold,
		minStdDeviationMS: millis(cfg.MinStdDeviation),
		acceptablePauseMS: millis(cfg.AcceptableHeartbeatPause),
		history:           h,
	}, nil
}

// Heartbeat notifies the detector that a heartbeat arrived from the
// monitored peer at the given time.
func (d *Detector) Heartbeat(now time.Time) {
	if d.lastTimestamp.IsZero() {
		// First heartbeat: the construction-time seed stands in for real
		// history, only the timestamp needs recording.
		d.lastTimestamp = now
		return
	}

	interval := now.Sub(d.lastTimestamp)
	if interval < 0 {
		interval = 0
	}
	// The first heartbeat after a failure ends a pause rather than
	// describing one; feeding it to the window would skew the stats.
	if d.IsAvailable(now) {
		d.history.push(millis(interval))
	}
	d.lastTimestamp = now
}

// Phi returns the current suspicion level. It is 0 before any heartbeat has
// been observed (an unmonitored peer is given the benefit of the doubt),
// non-negative, and grows without bound the longer the peer stays silent.
func (d *Detector) Phi(now time.Time) float64 {
	if d.lastTimestamp.IsZero() {
		return 0
	}

	elapsed := millis(now.Sub(d.lastTimestamp))
	if elapsed < 0 {
		elapsed = 0
	}
	mean := d.history.mean() + d.acceptablePauseMS
	stdDeviation := math.Max(d.history.stdDeviation(), d.minStdDeviationMS)

	return phi(elapsed, mean, stdDeviation)
}

// IsAvailable reports whether the peer is considered up and healthy at the
// given time: Phi(now) below the configured threshold.
func (d *Detector) IsAvailable(now time.Time) bool {
	return d.Phi(now) < d.threshold
}

// IsMonitoring reports whether at least one heartbeat has been observed.
func (d *Detector) IsMonitoring() bool {
	return !d.lastTimestamp.IsZero()
}

// Threshold returns the configured suspicion cutoff.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// phi maps the elapsed silence onto the -log10 suspicion scale using the
// logistic approximation of the normal tail from the Hayashibara paper. The
// approximation is monotone in timeDiff and bounded in (0,1) before the
// underflow guard.
func phi(timeDiff, mean, stdDeviation float64) float64 {
	y := (timeDiff - mean) / stdDeviation
	e := math.Exp(-y * (1.5976 + 0.070566*y*y))

	var p float64
	if timeDiff > mean {
		p = e / (1.0 + e)
	} else {
		p = 1.0 - 1.0/(1.0+e)
	}
	if p <= 0 {
		// exp underflows for very long silences; saturate instead of
		// returning +Inf so phi stays a large finite value.
		p = math.SmallestNonzeroFloat64
	}
	return -math.Log10(p)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
