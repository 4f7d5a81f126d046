// Package node ties the liveness monitor to a process identity: it serves
// the HTTP heartbeat/status surface and broadcasts this node's own
// heartbeats to its peers.
package node

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sdryden/phiwatch/pkg/monitor"
)

type Node struct {
	id       string
	addr     string // advertised host:port
	interval time.Duration
	mon      *monitor.Monitor
	log      *zap.Logger
	client   *http.Client

	mu    sync.RWMutex
	peers map[string]string // peer id -> host:port
}

// New builds a node around an existing monitor. interval is the cadence of
// outgoing heartbeats.
func New(id, addr string, mon *monitor.Monitor, interval time.Duration, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		id:       id,
		addr:     NormalizeHostPort(addr, defaultPort),
		interval: interval,
		mon:      mon,
		log:      log,
		client:   &http.Client{Timeout: 2 * time.Second},
		peers:    make(map[string]string),
	}
}

func (n *Node) ID() string   { return n.id }
func (n *Node) Addr() string { return n.addr }

// Monitor exposes the underlying liveness monitor.
func (n *Node) Monitor() *monitor.Monitor { return n.mon }

// AddPeer records a peer address. The node never tracks itself.
func (n *Node) AddPeer(id, addr string) {
	if id == n.id {
		return
	}
	hp := NormalizeHostPort(addr, defaultPort)
	n.mu.Lock()
	n.peers[id] = hp
	n.mu.Unlock()
	n.log.Info("peer added", zap.String("peer", id), zap.String("addr", hp))
}

// RemovePeer drops a peer's address and stops monitoring it.
func (n *Node) RemovePeer(id string) {
	n.mu.Lock()
	_, ok := n.peers[id]
	delete(n.peers, id)
	n.mu.Unlock()
	if ok {
		n.mon.Remove(monitor.PeerID(id))
		n.log.Info("peer removed", zap.String("peer", id))
	}
}

// PeerAddrs returns a copy of the current peer address table.
func (n *Node) PeerAddrs() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]string, len(n.peers))
	for id, addr := range n.peers {
		out[id] = addr
	}
	return out
}
