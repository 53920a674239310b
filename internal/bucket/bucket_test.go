package bucket

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func ev(id string) *nostr.Event { return &nostr.Event{ID: id} }

func TestAddOpenThenFulfilled(t *testing.T) {
	tb := New([]string{"a"}, 2)

	st, evs := tb.Add("a", ev("1"))
	if st != Open || evs != nil {
		t.Fatalf("first add: got (%v, %v)", st, evs)
	}

	st, evs = tb.Add("a", ev("2"))
	if st != Fulfilled || len(evs) != 2 {
		t.Fatalf("second add: got (%v, %v)", st, evs)
	}
}

func TestAddDroppedAfterFulfilled(t *testing.T) {
	tb := New([]string{"a"}, 1)
	tb.Add("a", ev("1"))
	st, evs := tb.Add("a", ev("2"))
	if st != Dropped || evs != nil {
		t.Fatalf("got (%v, %v), want Dropped", st, evs)
	}
}

func TestAddUnknownKeyDropped(t *testing.T) {
	tb := New([]string{"a"}, 5)
	st, _ := tb.Add("b", ev("1"))
	if st != Dropped {
		t.Fatalf("got %v, want Dropped", st)
	}
}

func TestAddDuplicateIDDropped(t *testing.T) {
	tb := New([]string{"a"}, 5)
	tb.Add("a", ev("1"))
	st, _ := tb.Add("a", ev("1"))
	if st != Dropped {
		t.Fatalf("got %v, want Dropped for duplicate id", st)
	}
}

func TestNextRequest(t *testing.T) {
	tb := New([]string{"a", "b"}, 3)
	tb.Add("a", ev("1"))
	tb.Add("a", ev("2"))
	tb.Add("a", ev("3")) // a fulfilled

	keys, limit := tb.NextRequest()
	if len(keys) != 1 || keys[0] != "b" || limit != 3 {
		t.Fatalf("got keys=%v limit=%d, want [b] 3", keys, limit)
	}
}

func TestAllFulfilled(t *testing.T) {
	tb := New([]string{"a", "b"}, 1)
	if tb.AllFulfilled() {
		t.Fatal("expected not all fulfilled initially")
	}
	tb.Add("a", ev("1"))
	tb.Add("b", ev("2"))
	if !tb.AllFulfilled() {
		t.Fatal("expected all fulfilled")
	}
}
