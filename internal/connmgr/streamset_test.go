package connmgr

import (
	"reflect"
	"testing"
)

func TestStreamSetAddReportsChange(t *testing.T) {
	s := NewStreamSet()
	if !s.Add("btcusdt@trade") {
		t.Fatalf("expected first add to report a change")
	}
	if s.Add("btcusdt@trade") {
		t.Fatalf("expected duplicate add to be a no-op")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len 1, got %d", s.Len())
	}
}

func TestStreamSetRemoveReportsChange(t *testing.T) {
	s := NewStreamSet()
	s.Add("btcusdt@trade")
	if !s.Remove("btcusdt@trade") {
		t.Fatalf("expected removal of present member to report a change")
	}
	if s.Remove("btcusdt@trade") {
		t.Fatalf("expected removal of absent member to be a no-op")
	}
}

func TestStreamSetSnapshotPreservesOrder(t *testing.T) {
	s := NewStreamSet()
	s.Add("a@trade")
	s.Add("b@trade")
	s.Add("c@trade")
	s.Remove("b@trade")
	s.Add("d@trade")

	got := s.Snapshot()
	want := []string{"a@trade", "c@trade", "d@trade"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestStreamSetClear(t *testing.T) {
	s := NewStreamSet()
	s.Add("a@trade")
	s.Add("b@trade")

	cleared := s.Clear()
	if len(cleared) != 2 {
		t.Fatalf("expected Clear to return 2 members, got %d", len(cleared))
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty set after Clear, got len %d", s.Len())
	}
	if s.Contains("a@trade") {
		t.Errorf("expected set to no longer contain a@trade")
	}
}
