package nostrfetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/nostr-fetch/internal/fanin"
	"github.com/mattn/nostr-fetch/internal/paginate"
	"github.com/mattn/nostr-fetch/internal/subid"
	"github.com/mattn/nostr-fetch/log"
	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/exp/slices"
)

// FetchLatestEvents returns up to n most recent events matching filter
// across relays, newest first (spec §4.7.2).
func (f *Fetcher) FetchLatestEvents(ctx context.Context, relays []string, filter nostr.Filter, n int, opts FetchOpts) ([]*nostr.Event, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}
	if !validateRelays(relays) {
		return nil, nil
	}
	relays = f.filterEligibleRelays(ctx, relays, filter)
	if len(relays) == 0 {
		return nil, nil
	}
	atomic.AddInt64(&f.fetches, 1)

	connected := f.pool.EnsureRelays(ctx, relays, relaypool.EnsureOpts{ConnectTimeoutMs: opts.ConnectTimeoutMs})
	seen := fanin.NewSeenSet()

	var mu sync.Mutex
	var collected []*nostr.Event

	driverSkipsVerification := opts.SkipVerification || opts.reduceVerification()

	var wg sync.WaitGroup
	wg.Add(len(connected))
	for _, relay := range connected {
		go func(relay string) {
			defer wg.Done()
			remaining := n
			subOpts := relaypool.FetchOpts{
				SubID:                       subid.New(time.Now().UnixMilli()),
				SkipVerification:            driverSkipsVerification,
				AbortSubBeforeEoseTimeoutMs: opts.abortTimeoutMs(),
				AbortSignal:                 opts.AbortSignal,
			}
			cb := paginate.Callbacks{
				BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) {
					if remaining <= 0 {
						return nostr.Filter{}, false
					}
					refined := filter
					refined.Limit = capReqLimit(remaining)
					if until != nil {
						refined.Until = until
					}
					return refined, true
				},
				OnEvent: func(ev *nostr.Event) {
					if _, loaded := seen.LoadOrStore(ev.ID, true); loaded {
						return
					}
					remaining--
					mu.Lock()
					collected = append(collected, ev)
					mu.Unlock()
				},
				QuotaReached: func() bool { return remaining <= 0 },
				OnRelayDone: func(reason paginate.DoneReason, err error) {
					if reason == paginate.DoneError {
						atomic.AddInt64(&f.relayErrs, 1)
						log.Std.E.F("nostrfetch: relay %s stopped: %v", relay, err)
					}
				},
			}
			paginate.Run(ctx, f.pool, relay, subOpts, cb)
		}(relay)
	}
	wg.Wait()

	slices.SortFunc(collected, func(a, b *nostr.Event) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		default:
			return 0
		}
	})

	result := verifyAndTruncate(collected, n, opts)
	atomic.AddInt64(&f.events, int64(len(result)))
	return result, nil
}

// verifyAndTruncate implements the three verification modes of spec
// §4.7.2 against an already sorted-desc slice.
func verifyAndTruncate(sorted []*nostr.Event, n int, opts FetchOpts) []*nostr.Event {
	if opts.SkipVerification {
		return firstN(sorted, n)
	}
	if !opts.reduceVerification() {
		// the driver already verified every event; nothing left to check.
		return firstN(sorted, n)
	}
	out := make([]*nostr.Event, 0, n)
	for _, ev := range sorted {
		if len(out) == n {
			break
		}
		if valid, err := ev.CheckSignature(); err != nil || !valid {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func firstN(events []*nostr.Event, n int) []*nostr.Event {
	if len(events) <= n {
		return events
	}
	return events[:n]
}

// FetchLastEvent returns the single most recent event matching filter,
// or nil if none exists. The no-progress timeout defaults to 1s instead
// of the usual 10s (spec §4.7.3, §4.9's "last-event variants default
// 1000").
func (f *Fetcher) FetchLastEvent(ctx context.Context, relays []string, filter nostr.Filter, opts FetchOpts) (*nostr.Event, error) {
	if opts.AbortSubBeforeEoseTimeoutMs <= 0 {
		opts.AbortSubBeforeEoseTimeoutMs = DefaultLastEventTimeoutMs
	}
	events, err := f.FetchLatestEvents(ctx, relays, filter, 1, opts)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return events[0], nil
}
