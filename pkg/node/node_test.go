package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sdryden/phiwatch/pkg/monitor"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	mon, err := monitor.New(monitor.DefaultConfig())
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	return New("self", "127.0.0.1:8080", mon, 50*time.Millisecond, nil)
}

func TestNormalizeHostPort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://node1", "node1:8080"},
		{"https://node1:9000", "node1:9000"},
		{"node1:9000", "node1:9000"},
		{"node1", "node1:8080"},
	}
	for _, tt := range tests {
		if got := NormalizeHostPort(tt.in, "8080"); got != tt.want {
			t.Fatalf("NormalizeHostPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddPeerSkipsSelfAndNormalizes(t *testing.T) {
	n := newTestNode(t)

	n.AddPeer("self", "127.0.0.1:8080")
	if got := n.PeerAddrs(); len(got) != 0 {
		t.Fatalf("node added itself as a peer: %v", got)
	}

	n.AddPeer("n2", "http://node2")
	if got := n.PeerAddrs()["n2"]; got != "node2:8080" {
		t.Fatalf("peer addr = %q, want node2:8080", got)
	}
}

func TestRemovePeerStopsMonitoring(t *testing.T) {
	n := newTestNode(t)
	n.AddPeer("n2", "node2:8080")
	n.Monitor().Observe("n2", time.Now())

	if got := n.Monitor().Peers(); len(got) != 1 {
		t.Fatalf("monitored peers = %v, want [n2]", got)
	}
	n.RemovePeer("n2")
	if got := n.Monitor().Peers(); len(got) != 0 {
		t.Fatalf("monitored peers after remove = %v, want empty", got)
	}
	if got := n.PeerAddrs(); len(got) != 0 {
		t.Fatalf("peer addrs after remove = %v, want empty", got)
	}
}

func TestHeartbeatHandler(t *testing.T) {
	n := newTestNode(t)

	rec := httptest.NewRecorder()
	n.Heartbeat(rec, httptest.NewRequest(http.MethodPost, "/heartbeat/n2", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /heartbeat/n2 = %d, want 204", rec.Code)
	}
	if got := n.Monitor().Peers(); len(got) != 1 || got[0] != "n2" {
		t.Fatalf("monitored peers = %v, want [n2]", got)
	}

	rec = httptest.NewRecorder()
	n.Heartbeat(rec, httptest.NewRequest(http.MethodGet, "/heartbeat/n2", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /heartbeat/n2 = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	n.Heartbeat(rec, httptest.NewRequest(http.MethodPost, "/heartbeat/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /heartbeat/ = %d, want 400", rec.Code)
	}
}

func TestPeersHandler(t *testing.T) {
	n := newTestNode(t)
	n.Monitor().Observe("n2", time.Now().Add(-time.Second))
	n.Monitor().Observe("n2", time.Now())

	rec := httptest.NewRecorder()
	n.Peers(rec, httptest.NewRequest(http.MethodGet, "/peers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /peers = %d, want 200", rec.Code)
	}

	var snap []monitor.PeerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal /peers body: %v", err)
	}
	if len(snap) != 1 || snap[0].ID != "n2" {
		t.Fatalf("snapshot = %+v, want one entry for n2", snap)
	}
	if snap[0].State != "alive" {
		t.Fatalf("state = %q, want alive", snap[0].State)
	}
}

func TestBeatDeliversHeartbeatToPeers(t *testing.T) {
	var hits atomic.Int32
	var lastPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/heartbeat/") {
			hits.Add(1)
			lastPath.Store(r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := newTestNode(t)
	n.AddPeer("n2", srv.Listener.Addr().String())

	n.beat(context.Background())

	if hits.Load() != 1 {
		t.Fatalf("peer received %d heartbeats, want 1", hits.Load())
	}
	if got := lastPath.Load(); got != "/heartbeat/self" {
		t.Fatalf("heartbeat path = %v, want /heartbeat/self", got)
	}
}
