package waypoint

import (
	"errors"
	"testing"
)

func TestStore_LookupAndNotFound(t *testing.T) {
	s := NewStore([]Waypoint{{GUID: "a", LatDeg: 1, LonDeg: 2}})
	wp, err := s.Lookup(" a ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if wp.LatDeg != 1 || wp.LonDeg != 2 {
		t.Fatalf("got %+v", wp)
	}
	if _, err := s.Lookup("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestStore_PutValidates(t *testing.T) {
	s := NewStore(nil)
	if err := s.Put(Waypoint{GUID: ""}); err == nil {
		t.Fatalf("expected guid error")
	}
	if err := s.Put(Waypoint{GUID: "x", LatDeg: 91}); err == nil {
		t.Fatalf("expected lat error")
	}
	if err := s.Put(Waypoint{GUID: "x", LonDeg: -181}); err == nil {
		t.Fatalf("expected lon error")
	}
}

func TestStore_ReplaceIsAllOrNothing(t *testing.T) {
	s := NewStore([]Waypoint{{GUID: "keep"}})
	err := s.Replace([]Waypoint{{GUID: "new"}, {GUID: "bad", LatDeg: 100}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := s.Lookup("keep"); err != nil {
		t.Fatalf("original table modified: %v", err)
	}

	if err := s.Replace([]Waypoint{{GUID: "b"}, {GUID: "a"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got := s.List()
	if len(got) != 2 || got[0].GUID != "a" || got[1].GUID != "b" {
		t.Fatalf("list=%+v", got)
	}
}
