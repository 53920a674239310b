package paginate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattn/nostr-fetch/internal/mockpool"
	"github.com/mattn/nostr-fetch/internal/paginate"
	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
)

func ev(id string, createdAt int64) *nostr.Event {
	return &nostr.Event{ID: id, CreatedAt: nostr.Timestamp(createdAt)}
}

func simpleCallbacks(collected *[]*nostr.Event, done *paginate.DoneReason) paginate.Callbacks {
	return paginate.Callbacks{
		BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) {
			f := nostr.Filter{Limit: 500}
			if until != nil {
				f.Until = until
			}
			return f, true
		},
		OnEvent: func(e *nostr.Event) { *collected = append(*collected, e) },
		OnRelayDone: func(reason paginate.DoneReason, err error) {
			*done = reason
		},
	}
}

func TestRunExhaustsAfterEmptyPage(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", 300)}, {Event: ev("2", 200)}, {Event: ev("3", 100)}},
			{}, // next page comes back empty -> exhausted
		},
	})

	var collected []*nostr.Event
	var done paginate.DoneReason
	paginate.Run(context.Background(), pool, "r1", relaypool.FetchOpts{}, simpleCallbacks(&collected, &done))

	if len(collected) != 3 {
		t.Fatalf("expected 3 events, got %d", len(collected))
	}
	if done != paginate.DoneExhausted {
		t.Fatalf("expected DoneExhausted, got %v", done)
	}
	reqs := pool.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 sub-requests, got %d", len(reqs))
	}
	// second request's Until must be oldest+1 = 101
	if reqs[1].Filter.Until == nil || *reqs[1].Filter.Until != 101 {
		t.Fatalf("expected until=101 on second request, got %+v", reqs[1].Filter.Until)
	}
}

func TestRunDedupesWithinPage(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", 100)}, {Event: ev("1", 100)}, {Event: ev("2", 90)}},
			{},
		},
	})
	var collected []*nostr.Event
	var done paginate.DoneReason
	paginate.Run(context.Background(), pool, "r1", relaypool.FetchOpts{}, simpleCallbacks(&collected, &done))
	if len(collected) != 2 {
		t.Fatalf("expected 2 deduped events, got %d", len(collected))
	}
}

func TestRunQuotaReached(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", 100)}, {Event: ev("2", 90)}, {Event: ev("3", 80)}},
			{{Event: ev("4", 70)}},
		},
	})
	remaining := 2
	var collected []*nostr.Event
	var done paginate.DoneReason
	cb := paginate.Callbacks{
		BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) {
			return nostr.Filter{Until: until, Limit: 500}, true
		},
		OnEvent: func(e *nostr.Event) {
			collected = append(collected, e)
			remaining--
		},
		QuotaReached: func() bool { return remaining <= 0 },
		OnRelayDone:  func(r paginate.DoneReason, _ error) { done = r },
	}
	paginate.Run(context.Background(), pool, "r1", relaypool.FetchOpts{}, cb)
	if len(collected) != 3 {
		t.Fatalf("expected 3 events (quota checked after page, not mid-page), got %d", len(collected))
	}
	if done != paginate.DoneQuota {
		t.Fatalf("expected DoneQuota, got %v", done)
	}
	if len(pool.Requests()) != 1 {
		t.Fatalf("expected pagination to stop after first page, got %d requests", len(pool.Requests()))
	}
}

func TestRunTransportError(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", 100)}, {Err: errors.New("socket closed")}},
		},
	})
	var collected []*nostr.Event
	var done paginate.DoneReason
	var gotErr error
	cb := simpleCallbacks(&collected, &done)
	cb.OnRelayDone = func(r paginate.DoneReason, err error) { done = r; gotErr = err }
	paginate.Run(context.Background(), pool, "r1", relaypool.FetchOpts{}, cb)
	if len(collected) != 1 {
		t.Fatalf("expected 1 event before error, got %d", len(collected))
	}
	if done != paginate.DoneError || gotErr == nil {
		t.Fatalf("expected DoneError with an error, got %v / %v", done, gotErr)
	}
}

func TestRunAborted(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{
		Pages: []mockpool.Page{
			{{Event: ev("1", 100), Delay: 200 * time.Millisecond}},
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	var collected []*nostr.Event
	var done paginate.DoneReason
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	paginate.Run(ctx, pool, "r1", relaypool.FetchOpts{}, simpleCallbacks(&collected, &done))
	if done != paginate.DoneAborted {
		t.Fatalf("expected DoneAborted, got %v", done)
	}
}

func TestRunNoRequestWhenBuildFilterDeclines(t *testing.T) {
	pool := mockpool.New()
	pool.SetScript("r1", &mockpool.Script{Pages: []mockpool.Page{{{Event: ev("1", 1)}}}})
	var done paginate.DoneReason
	cb := paginate.Callbacks{
		BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) { return nostr.Filter{}, false },
		OnEvent:     func(*nostr.Event) {},
		OnRelayDone: func(r paginate.DoneReason, _ error) { done = r },
	}
	paginate.Run(context.Background(), pool, "r1", relaypool.FetchOpts{}, cb)
	if done != paginate.DoneQuota {
		t.Fatalf("expected DoneQuota when BuildFilter declines up front, got %v", done)
	}
	if len(pool.Requests()) != 0 {
		t.Fatalf("expected no sub-requests, got %d", len(pool.Requests()))
	}
}
