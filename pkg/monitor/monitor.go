// Package monitor tracks liveness for a set of peers, one phi accrual
// detector per peer. It turns raw heartbeat observations into per-peer
// suspicion levels and alive/suspect/dead verdicts, and emits callbacks when
// a peer is presumed dead.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sdryden/phiwatch/internal/telemetry"
	"github.com/sdryden/phiwatch/pkg/detector"
)

// FailureDetector is the liveness contract the membership layer consumes.
type FailureDetector interface {
	Observe(id PeerID, now time.Time) // called when a heartbeat/ack arrives
	Phi(id PeerID, now time.Time) float64
	Remove(id PeerID)
}

// Config tunes a Monitor.
type Config struct {
	// Detector is the per-peer phi accrual tuning.
	Detector detector.Config

	// DeadMultiplier scales the detector threshold to the level at which a
	// suspect peer is declared dead. Must be >= 1.
	DeadMultiplier float64

	// CheckInterval is how often Run re-evaluates peer states.
	CheckInterval time.Duration

	// Logger receives state transition events. Optional.
	Logger *zap.Logger
}

// DefaultConfig returns a Monitor tuning built on the detector defaults.
func DefaultConfig() Config {
	return Config{
		Detector:       detector.DefaultConfig(),
		DeadMultiplier: 2.0,
		CheckInterval:  time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if c.DeadMultiplier < 1 {
		return fmt.Errorf("dead multiplier must be >= 1, got %v", c.DeadMultiplier)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be > 0, got %v", c.CheckInterval)
	}
	return nil
}

type peer struct {
	det          *detector.Shared
	lastSeen     time.Time
	state        State
	reportedDead bool
}

// Monitor owns one shared detector per peer behind a single lock. Unknown
// peers are created on first observation and given the benefit of the doubt
// on queries.
type Monitor struct {
	cfg Config
	log *zap.Logger

	mu      sync.RWMutex
	peers   map[PeerID]*peer
	deadCBs []func(PeerID)
}

var _ FailureDetector = (*Monitor)(nil)

// New builds a Monitor or reports the first configuration error.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		cfg:   cfg,
		log:   log,
		peers: make(map[PeerID]*peer),
	}, nil
}

// Observe feeds a heartbeat from the given peer into its detector, creating
// the detector on first sight.
func (m *Monitor) Observe(id PeerID, now time.Time) {
	m.mu.Lock()
	p, ok := m.peers[id]
	if !ok {
		det, err := detector.NewShared(m.cfg.Detector)
		if err != nil {
			// Config was validated at construction; this cannot happen.
			m.mu.Unlock()
			m.log.Error("detector construction failed", zap.String("peer", string(id)), zap.Error(err))
			return
		}
		p = &peer{det: det, state: StateAlive}
		m.peers[id] = p
		m.log.Info("tracking new peer", zap.String("peer", string(id)))
	}
	p.lastSeen = now
	p.reportedDead = false
	m.mu.Unlock()

	p.det.Heartbeat(now)
	telemetry.HeartbeatsTotal.WithLabelValues(string(id)).Inc()
}

// Phi returns the suspicion level for the peer, 0 for unknown peers.
func (m *Monitor) Phi(id PeerID, now time.Time) float64 {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return p.det.Phi(now)
}

// IsAvailable reports whether the peer is considered up; unknown peers are
// assumed alive.
func (m *Monitor) IsAvailable(id PeerID, now time.Time) bool {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	return p.det.IsAvailable(now)
}

// State returns the current verdict for the peer. Unknown peers are alive.
func (m *Monitor) State(id PeerID, now time.Time) State {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return StateAlive
	}
	return m.verdict(p.det.Phi(now))
}

// Remove stops tracking a peer, e.g. when membership evicts it.
func (m *Monitor) Remove(id PeerID) {
	m.mu.Lock()
	_, ok := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()
	if ok {
		telemetry.RemovePeer(string(id))
		m.log.Info("stopped tracking peer", zap.String("peer", string(id)))
	}
}

// Peers returns the tracked peer IDs in stable order.
func (m *Monitor) Peers() []PeerID {
	m.mu.RLock()
	ids := make([]PeerID, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OnDead registers a callback fired at most once per dead transition; a new
// heartbeat from the peer re-arms it.
func (m *Monitor) OnDead(cb func(PeerID)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, cb)
	m.mu.Unlock()
}

// Snapshot reports every tracked peer as of now, sorted by ID.
func (m *Monitor) Snapshot(now time.Time) []PeerStatus {
	m.mu.RLock()
	out := make([]PeerStatus, 0, len(m.peers))
	for id, p := range m.peers {
		phi := p.det.Phi(now)
		out = append(out, PeerStatus{
			ID:            id,
			Phi:           phi,
			State:         m.verdict(phi).String(),
			LastHeartbeat: p.lastSeen,
		})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate runs one state sweep: recomputes each peer's verdict, updates
// metrics, logs transitions, and fires dead callbacks for fresh dead
// transitions.
func (m *Monitor) Evaluate(now time.Time) {
	type transition struct {
		id   PeerID
		from State
		to   State
	}
	var dead []PeerID
	var transitions []transition

	m.mu.Lock()
	callbacks := make([]func(PeerID), len(m.deadCBs))
	copy(callbacks, m.deadCBs)
	for id, p := range m.peers {
		phi := p.det.Phi(now)
		next := m.verdict(phi)

		telemetry.PeerPhi.WithLabelValues(string(id)).Set(phi)
		telemetry.PeerState.WithLabelValues(string(id)).Set(float64(next))

		if next != p.state {
			transitions = append(transitions, transition{id: id, from: p.state, to: next})
			telemetry.StateTransitionsTotal.WithLabelValues(p.state.String(), next.String()).Inc()
			p.state = next
		}
		if next == StateDead && !p.reportedDead {
			p.reportedDead = true
			dead = append(dead, id)
		}
	}
	m.mu.Unlock()

	for _, tr := range transitions {
		m.log.Info("peer state changed",
			zap.String("peer", string(tr.id)),
			zap.String("from", tr.from.String()),
			zap.String("to", tr.to.String()))
	}
	for _, id := range dead {
		for _, cb := range callbacks {
			cb(id)
		}
	}
}

// Run evaluates peer states on the configured interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evaluate(time.Now())
		}
	}
}

func (m *Monitor) verdict(phi float64) State {
	switch {
	case phi < m.cfg.Detector.Threshold:
		return StateAlive
	case phi < m.cfg.Detector.Threshold*m.cfg.DeadMultiplier:
		return StateSuspect
	default:
		return StateDead
	}
}
