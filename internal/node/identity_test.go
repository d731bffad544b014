package node

import (
	"context"
	"testing"
)

func testConfig() Config {
	return Config{
		MatchNodesOn:      []string{"mac", "uuid"},
		MatchNodesOnFacts: []string{"serial_number"},
		HwInfoKeys:        map[string]bool{"mac": true, "uuid": true, "serial": true, "asset": true},
	}
}

func TestLookupNoMatchCreates(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	n, created, err := r.Lookup(context.Background(), nil, map[string]any{
		"mac":  "AA:BB:CC:DD:EE:01",
		"uuid": "u-1",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !created {
		t.Fatal("Lookup() created = false, want true")
	}
	want := []string{"mac=aa-bb-cc-dd-ee-01", "uuid=u-1"}
	if !equalStrings(n.HwInfo, want) {
		t.Fatalf("HwInfo = %v, want %v", n.HwInfo, want)
	}
}

func TestLookupOneMatchPreservesFacts(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	existing, err := store.Create(context.Background(), []string{"fact_serial_number=s9", "mac=aa-bb-cc-dd-ee-01"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, created, err := r.Lookup(context.Background(), nil, map[string]any{"mac": "AA:BB:CC:DD:EE:01"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if created {
		t.Fatal("Lookup() created = true, want false")
	}
	if n.ID != existing.ID {
		t.Fatalf("Lookup() id = %v, want %v", n.ID, existing.ID)
	}
	if !contains(n.HwInfo, "fact_serial_number=s9") {
		t.Fatalf("fact entry lost: %v", n.HwInfo)
	}
}

func TestLookupFactFirmwareMerge(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	firmwareOnly, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-01", "uuid=u-1"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.AppendLog(context.Background(), &NodeLogEntry{NodeID: firmwareOnly.ID, Severity: "info", Payload: map[string]any{"event": "boot"}}); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	withFacts, err := store.Create(context.Background(), []string{"fact_serial_number=s9", "mac=aa-bb-cc-dd-ee-01", "uuid=u-1"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, created, err := r.Lookup(context.Background(), nil, map[string]any{"mac": "AA:BB:CC:DD:EE:01", "uuid": "u-1"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if created {
		t.Fatal("Lookup() created = true, want false (merge path)")
	}
	if n.ID != withFacts.ID {
		t.Fatalf("survivor = %v, want the fact-bearing node %v", n.ID, withFacts.ID)
	}
	if _, err := store.Get(context.Background(), firmwareOnly.ID); err == nil {
		t.Fatal("firmware-only node still present after merge")
	}
	logs, err := store.Log(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("survivor log entries = %d, want 1 (moved from the destroyed node)", len(logs))
	}
}

func TestLookupDuplicateRejected(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	n1, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-02"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	n2, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-02"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	n3, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-02"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, _, err = r.Lookup(context.Background(), nil, map[string]any{"mac": "aa:bb:cc:dd:ee:02"})
	dupErr, ok := err.(*DuplicateNodeError)
	if !ok {
		t.Fatalf("Lookup() error = %v, want *DuplicateNodeError", err)
	}
	if len(dupErr.Nodes) != 3 {
		t.Fatalf("DuplicateNodeError.Nodes has %d entries, want 3", len(dupErr.Nodes))
	}

	for _, n := range []*Node{n1, n2, n3} {
		logs, err := store.Log(context.Background(), n.ID)
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("node %s has %d log entries, want 1 duplicate_node entry", n.Name, len(logs))
		}
		if logs[0].Payload["error"] != "duplicate_node" {
			t.Fatalf("node %s log entry = %v, want error=duplicate_node", n.Name, logs[0].Payload)
		}
	}
}

func TestLookupDuplicateTwoCandidatesNeitherFactBearingRejected(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	n1, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-02"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	n2, err := store.Create(context.Background(), []string{"mac=aa-bb-cc-dd-ee-02"}, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, _, err = r.Lookup(context.Background(), nil, map[string]any{"mac": "aa:bb:cc:dd:ee:02"})
	dupErr, ok := err.(*DuplicateNodeError)
	if !ok {
		t.Fatalf("Lookup() error = %v, want *DuplicateNodeError", err)
	}
	if len(dupErr.Nodes) != 2 {
		t.Fatalf("DuplicateNodeError.Nodes has %d entries, want 2", len(dupErr.Nodes))
	}

	for _, n := range []*Node{n1, n2} {
		logs, err := store.Log(context.Background(), n.ID)
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("node %s has %d log entries, want 1 duplicate_node entry", n.Name, len(logs))
		}
		if logs[0].Payload["error"] != "duplicate_node" {
			t.Fatalf("node %s log entry = %v, want error=duplicate_node", n.Name, logs[0].Payload)
		}
	}
}

func TestLookupMissingInputFails(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	_, _, err := r.Lookup(context.Background(), nil, nil)
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("Lookup() error = %v, want *InvalidArgumentError", err)
	}
}

func TestLookupNoMatchEligibleKeysFails(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, testConfig())

	_, _, err := r.Lookup(context.Background(), nil, map[string]any{"asset": "A1"})
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("Lookup() error = %v, want *InvalidArgumentError", err)
	}
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
