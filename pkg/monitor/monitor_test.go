package monitor

import (
	"testing"
	"time"

	"github.com/sdryden/phiwatch/pkg/detector"
)

func testConfig() Config {
	return Config{
		Detector: detector.Config{
			Threshold:                8.0,
			MaxSampleSize:            100,
			MinStdDeviation:          10 * time.Millisecond,
			AcceptableHeartbeatPause: 0,
			FirstHeartbeatEstimate:   time.Second,
		},
		DeadMultiplier: 2.0,
		CheckInterval:  time.Second,
	}
}

func at(ms int64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := testConfig()
	bad.DeadMultiplier = 0.5
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate accepted dead multiplier < 1")
	}

	bad = testConfig()
	bad.Detector.Threshold = 0
	if _, err := New(bad); err == nil {
		t.Fatal("New accepted an invalid detector config")
	}

	bad = testConfig()
	bad.CheckInterval = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("Validate accepted a zero check interval")
	}
}

func TestUnknownPeerGetsBenefitOfTheDoubt(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := m.Phi("ghost", at(0)); got != 0 {
		t.Fatalf("Phi(unknown) = %v, want 0", got)
	}
	if !m.IsAvailable("ghost", at(0)) {
		t.Fatal("unknown peer should be assumed alive")
	}
	if got := m.State("ghost", at(0)); got != StateAlive {
		t.Fatalf("State(unknown) = %v, want alive", got)
	}
}

func TestObserveStatesAndRemove(t *testing.T) {
	m, _ := New(testConfig())
	const id = PeerID("n1")

	for ms := int64(0); ms <= 3000; ms += 1000 {
		m.Observe(id, at(ms))
	}

	if got := m.State(id, at(3500)); got != StateAlive {
		t.Fatalf("State shortly after heartbeats = %v, want alive", got)
	}
	// Inter-arrival mean is 1s; 2s of silence lands between the suspect and
	// dead thresholds, 3s well past the dead threshold.
	if got := m.State(id, at(5000)); got != StateSuspect {
		t.Fatalf("State after 2s silence = %v, want suspect", got)
	}
	if got := m.State(id, at(6000)); got != StateDead {
		t.Fatalf("State after 3s silence = %v, want dead", got)
	}
	if m.IsAvailable(id, at(6000)) {
		t.Fatal("dead peer reported available")
	}

	if got := m.Peers(); len(got) != 1 || got[0] != id {
		t.Fatalf("Peers() = %v, want [%s]", got, id)
	}
	m.Remove(id)
	if got := m.Peers(); len(got) != 0 {
		t.Fatalf("Peers() after Remove = %v, want empty", got)
	}
	if got := m.Phi(id, at(6000)); got != 0 {
		t.Fatalf("Phi after Remove = %v, want 0", got)
	}
}

func TestOnDeadFiresOncePerTransition(t *testing.T) {
	m, _ := New(testConfig())
	const id = PeerID("n1")

	var fired []PeerID
	m.OnDead(func(p PeerID) { fired = append(fired, p) })

	for ms := int64(0); ms <= 3000; ms += 1000 {
		m.Observe(id, at(ms))
	}

	m.Evaluate(at(6000))
	m.Evaluate(at(6500)) // still dead, must not re-fire
	if len(fired) != 1 || fired[0] != id {
		t.Fatalf("OnDead fired %v times (%v), want once for %s", len(fired), fired, id)
	}

	// Recovery re-arms the callback.
	m.Observe(id, at(7000))
	m.Evaluate(at(7100))
	if len(fired) != 1 {
		t.Fatalf("OnDead fired during recovery: %v", fired)
	}
	m.Evaluate(at(11000))
	if len(fired) != 2 {
		t.Fatalf("OnDead fired %v times after second death, want 2", len(fired))
	}
}

func TestSnapshotSortedByID(t *testing.T) {
	m, _ := New(testConfig())
	for _, id := range []PeerID{"c", "a", "b"} {
		m.Observe(id, at(0))
		m.Observe(id, at(1000))
	}

	snap := m.Snapshot(at(1500))
	if len(snap) != 3 {
		t.Fatalf("Snapshot len = %d, want 3", len(snap))
	}
	for i, want := range []PeerID{"a", "b", "c"} {
		if snap[i].ID != want {
			t.Fatalf("Snapshot[%d].ID = %s, want %s", i, snap[i].ID, want)
		}
		if snap[i].State != "alive" {
			t.Fatalf("Snapshot[%d].State = %s, want alive", i, snap[i].State)
		}
		if snap[i].LastHeartbeat != at(1000) {
			t.Fatalf("Snapshot[%d].LastHeartbeat = %v, want %v", i, snap[i].LastHeartbeat, at(1000))
		}
	}
}
