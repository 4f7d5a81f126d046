package monitor

import "time"

// PeerID identifies a monitored peer, usually a UUID or host:port string.
type PeerID string

// State is the monitor's verdict for one peer, derived from its phi level.
type State uint8

const (
	StateAlive State = iota
	StateSuspect
	StateDead
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateSuspect:
		return "suspect"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// PeerStatus is a point-in-time report for one peer.
type PeerStatus struct {
	ID            PeerID    `json:"id"`
	Phi           float64   `json:"phi"`
	State         string    `json:"state"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}
