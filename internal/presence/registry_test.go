package presence

import (
	"reflect"
	"testing"
)

func TestConnectAndResolve(t *testing.T) {
	r := NewRegistry()

	online := r.Connect("alice", "c1")
	if !reflect.DeepEqual(online, []string{"alice"}) {
		t.Fatalf("expected [alice], got %v", online)
	}

	conn, ok := r.Resolve("alice")
	if !ok || conn != "c1" {
		t.Fatalf("expected c1, got %q ok=%v", conn, ok)
	}
	if _, ok := r.Resolve("bob"); ok {
		t.Fatal("bob should not resolve")
	}
}

func TestSecondDeviceOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Connect("alice", "c1")
	online := r.Connect("alice", "c2")

	if len(online) != 1 {
		t.Fatalf("expected exactly one entry for alice, got %v", online)
	}
	conn, _ := r.Resolve("alice")
	if conn != "c2" {
		t.Fatalf("newest connection must win, got %q", conn)
	}
}

func TestStaleDisconnectKeepsNewerMapping(t *testing.T) {
	r := NewRegistry()
	r.Connect("alice", "c1")
	r.Connect("alice", "c2")

	changed, online := r.Disconnect("c1")
	if changed {
		t.Fatal("stale disconnect must not change the online set")
	}
	if !reflect.DeepEqual(online, []string{"alice"}) {
		t.Fatalf("alice must stay online, got %v", online)
	}
	conn, ok := r.Resolve("alice")
	if !ok || conn != "c2" {
		t.Fatalf("newer mapping must survive stale disconnect, got %q ok=%v", conn, ok)
	}
}

func TestDisconnect(t *testing.T) {
	r := NewRegistry()
	r.Connect("alice", "c1")
	r.Connect("bob", "c2")

	changed, online := r.Disconnect("c1")
	if !changed {
		t.Fatal("disconnect of the live connection must change the set")
	}
	if !reflect.DeepEqual(online, []string{"bob"}) {
		t.Fatalf("expected [bob], got %v", online)
	}

	// Unknown connection ids are a no-op.
	changed, _ = r.Disconnect("c9")
	if changed {
		t.Fatal("unknown connection must not change the set")
	}
}

func TestOnlineSorted(t *testing.T) {
	r := NewRegistry()
	r.Connect("carol", "c3")
	r.Connect("alice", "c1")
	r.Connect("bob", "c2")

	if got := r.Online(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("expected sorted snapshot, got %v", got)
	}
}
