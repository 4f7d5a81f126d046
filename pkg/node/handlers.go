package node

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sdryden/phiwatch/pkg/monitor"
)

// Healthz returns 200 OK to indicate the process itself is alive. Peer
// verdicts live under /peers.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes a JSON payload with this node's identity, process ID, current
// time, and tracked peer count.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		ID    string    `json:"id"`
		PID   int       `json:"pid"`
		Now   time.Time `json:"now"`
		Peers int       `json:"peers"`
	}
	data, _ := json.Marshal(resp{
		ID:    n.id,
		PID:   os.Getpid(),
		Now:   time.Now(),
		Peers: len(n.PeerAddrs()),
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Peers writes the monitor's per-peer snapshot: phi, verdict, and last
// heartbeat time for every tracked peer.
func (n *Node) Peers(w http.ResponseWriter, _ *http.Request) {
	data, err := json.Marshal(n.mon.Snapshot(time.Now()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Heartbeat accepts POST /heartbeat/{id} and feeds the observation into the
// monitor.
func (n *Node) Heartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/heartbeat/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}
	n.mon.Observe(monitor.PeerID(id), time.Now())
	w.WriteHeader(http.StatusNoContent)
}
