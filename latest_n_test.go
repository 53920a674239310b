package nostrfetch_test

import (
	"context"
	"testing"

	nostrfetch "github.com/mattn/nostr-fetch"
	"github.com/mattn/nostr-fetch/internal/mockpool"
	"github.com/nbd-wtf/go-nostr"
)

func TestFetchLatestEventsMergesAcrossRelaysAndTruncates(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", "a", 500)}, {Event: ev("2", "a", 400)}},
		},
	})
	pool.SetScript("r2", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("3", "a", 450)}, {Event: ev("4", "a", 300)}},
		},
	})

	f := nostrfetch.NewWithPool(pool, alwaysCap{true}, nostrfetch.Options{})
	events, err := f.FetchLatestEvents(context.Background(), []string{"r1", "r2"}, nostr.Filter{}, 3, nostrfetch.FetchOpts{SkipVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	wantOrder := []string{"1", "3", "2"} // created_at 500, 450, 400
	for i, id := range wantOrder {
		if events[i].ID != id {
			t.Fatalf("position %d: expected id %s, got %s", i, id, events[i].ID)
		}
	}
}

func TestFetchLatestEventsSearchFilterExcludesRelaysWithoutNIP50(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{Pages: []mockpool.Page{{{Event: ev("1", "a", 500)}}}})
	pool.SetScript("r2", &mockpool.Script{Pages: []mockpool.Page{{{Event: ev("2", "a", 900)}}}})

	caps := perRelayCap{"r1": true, "r2": false}
	f := nostrfetch.NewWithPool(pool, caps, nostrfetch.Options{})
	events, err := f.FetchLatestEvents(context.Background(), []string{"r1", "r2"}, nostr.Filter{Search: "gm"}, 5, nostrfetch.FetchOpts{SkipVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "1" {
		t.Fatalf("expected only r1's event despite r2 having a newer one, got %v", events)
	}
}

func TestFetchLatestEventsCapsSubRequestLimitAt5000(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{Pages: []mockpool.Page{{{Event: ev("1", "a", 100)}}, {}}})

	f := nostrfetch.NewWithPool(pool, alwaysCap{true}, nostrfetch.Options{})
	_, err := f.FetchLatestEvents(context.Background(), []string{"r1"}, nostr.Filter{}, 6000, nostrfetch.FetchOpts{SkipVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, req := range pool.Requests() {
		if req.Filter.Limit > nostrfetch.DefaultLimitPerReq {
			t.Fatalf("sub-request limit %d exceeds the %d cap", req.Filter.Limit, nostrfetch.DefaultLimitPerReq)
		}
	}
}

func TestFetchLatestEventsInvalidLimit(t *testing.T) {
	pool := mockpool.New()
	f := nostrfetch.NewWithPool(pool, alwaysCap{true}, nostrfetch.Options{})
	_, err := f.FetchLatestEvents(context.Background(), []string{"r1"}, nostr.Filter{}, 0, nostrfetch.FetchOpts{})
	if err == nil {
		t.Fatal("expected error for n=0")
	}
}

func TestFetchLastEventReturnsNewest(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{{{Event: ev("old", "a", 100)}, {Event: ev("new", "a", 900)}}},
	})
	f := nostrfetch.NewWithPool(pool, alwaysCap{true}, nostrfetch.Options{})
	got, err := f.FetchLastEvent(context.Background(), []string{"r1"}, nostr.Filter{}, nostrfetch.FetchOpts{SkipVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "new" {
		t.Fatalf("expected the newest event, got %+v", got)
	}
}

func TestFetchLastEventNoneFound(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{Pages: []mockpool.Page{{}}})
	f := nostrfetch.NewWithPool(pool, alwaysCap{true}, nostrfetch.Options{})
	got, err := f.FetchLastEvent(context.Background(), []string{"r1"}, nostr.Filter{}, nostrfetch.FetchOpts{SkipVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
