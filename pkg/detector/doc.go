// Package detector implements the phi accrual failure detector described by
// Hayashibara et al. in "The Phi Accrual Failure Detector". Instead of a
// binary up/down verdict it accrues a continuous suspicion level (phi) from
// the distribution of observed heartbeat inter-arrival times, so the caller
// picks the trade-off between fast detection and false suspicion with a
// single threshold.
//
// The value of phi is -log10(1 - F(timeSinceLastHeartbeat)) where F is the
// cumulative distribution function of a normal distribution whose mean and
// standard deviation are estimated from a sliding window of recent
// inter-arrival times.
//
// Typical usage:
//
//	d, _ := detector.New(detector.DefaultConfig())
//	d.Heartbeat(time.Now())      // on every heartbeat from the peer
//	d.IsAvailable(time.Now())    // whenever a verdict is needed
//
// Detector carries no internal synchronization and belongs to a single
// owner. Shared provides the same contract behind a mutex for detectors
// touched by multiple goroutines.
package detector
