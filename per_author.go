package nostrfetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/nostr-fetch/internal/bucket"
	"github.com/mattn/nostr-fetch/internal/matrix"
	"github.com/mattn/nostr-fetch/internal/paginate"
	"github.com/mattn/nostr-fetch/internal/relayurl"
	"github.com/mattn/nostr-fetch/internal/subid"
	"github.com/mattn/nostr-fetch/log"
	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/exp/slices"
)

// FetchLatestEventsPerAuthor returns, for every author in input, up to
// n of their most recent events matching filter, drawn only from the
// relays that author is paired with (spec §4.7.4).
func (f *Fetcher) FetchLatestEventsPerAuthor(ctx context.Context, input AuthorsAndRelays, filter nostr.Filter, n int, opts FetchOpts) ([]AuthorEvents, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}
	if err := validateAuthorsAndRelays(input); err != nil {
		return nil, err
	}
	pairs := input.pairs()
	authors := make([]string, len(pairs))
	for i, p := range pairs {
		authors[i] = p.Author
	}
	if !validateAuthors(authors) {
		return nil, nil
	}
	validatePerAuthorRelayLists(pairs)
	atomic.AddInt64(&f.fetches, 1)

	relayToAuthors := make(map[string][]string)
	for _, p := range pairs {
		for _, raw := range relayurl.Dedup(p.Relays) {
			relayToAuthors[raw] = append(relayToAuthors[raw], p.Author)
		}
	}
	relays := make([]string, 0, len(relayToAuthors))
	for r := range relayToAuthors {
		relays = append(relays, r)
	}
	eligible := f.filterEligibleRelays(ctx, relays, filter)
	if len(eligible) != len(relays) {
		eligibleSet := make(map[string]bool, len(eligible))
		for _, r := range eligible {
			eligibleSet[r] = true
		}
		for r := range relayToAuthors {
			if !eligibleSet[r] {
				delete(relayToAuthors, r)
			}
		}
		relays = eligible
	}

	mtx := matrix.New(relayToAuthors)
	connected := f.pool.EnsureRelays(ctx, relays, relaypool.EnsureOpts{ConnectTimeoutMs: opts.ConnectTimeoutMs})
	connectedSet := make(map[string]bool, len(connected))
	for _, r := range connected {
		connectedSet[r] = true
	}

	driverSkipsVerification := opts.SkipVerification || opts.reduceVerification()

	var relayWg sync.WaitGroup
	for relay, relayAuthors := range relayToAuthors {
		if !connectedSet[relay] {
			// unreachable relay: every author it would have carried
			// resolves via their remaining relays, or empty if it was
			// their only one.
			for _, author := range relayAuthors {
				mtx.Get(author, relay).Resolve(matrix.Value{})
			}
			continue
		}
		relayWg.Add(1)
		go func(relay string, relayAuthors []string) {
			defer relayWg.Done()
			f.runPerAuthorForRelay(ctx, relay, relayAuthors, filter, n, opts, mtx, driverSkipsVerification)
		}(relay, relayAuthors)
	}

	results := make([]AuthorEvents, 0, len(mtx.Keys()))
	var resultsMu sync.Mutex
	var mergerWg sync.WaitGroup
	for _, author := range mtx.Keys() {
		mergerWg.Add(1)
		go func(author string) {
			defer mergerWg.Done()
			events := mergeAuthorLatches(mtx, author, n, opts)
			resultsMu.Lock()
			results = append(results, AuthorEvents{Author: author, Events: events})
			resultsMu.Unlock()
		}(author)
	}
	mergerWg.Wait()
	relayWg.Wait()

	total := 0
	for _, r := range results {
		total += len(r.Events)
	}
	atomic.AddInt64(&f.events, int64(total))
	return results, nil
}

func (f *Fetcher) runPerAuthorForRelay(ctx context.Context, relay string, authors []string, filter nostr.Filter, n int, opts FetchOpts, mtx *matrix.Matrix, driverSkipsVerification bool) {
	tbl := bucket.New(authors, n)

	subOpts := relaypool.FetchOpts{
		SubID:                       subid.New(time.Now().UnixMilli()),
		SkipVerification:            driverSkipsVerification,
		AbortSubBeforeEoseTimeoutMs: opts.abortTimeoutMs(),
		AbortSignal:                 opts.AbortSignal,
	}

	cb := paginate.Callbacks{
		BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) {
			keys, limit := tbl.NextRequest()
			if len(keys) == 0 {
				return nostr.Filter{}, false
			}
			refined := filter
			refined.Authors = keys
			refined.Limit = capReqLimit(limit)
			if until != nil {
				refined.Until = until
			}
			return refined, true
		},
		OnEvent: func(ev *nostr.Event) {
			state, contents := tbl.Add(ev.PubKey, ev)
			if state == bucket.Fulfilled {
				mtx.Get(ev.PubKey, relay).Resolve(matrix.Value{Events: contents})
			}
		},
		QuotaReached: tbl.AllFulfilled,
		OnRelayDone: func(reason paginate.DoneReason, err error) {
			if reason == paginate.DoneError {
				atomic.AddInt64(&f.relayErrs, 1)
				log.Std.E.F("nostrfetch: relay %s stopped: %v", relay, err)
			}
			// whatever never got fulfilled resolves with what was
			// collected so far, so its merger doesn't hang forever.
			for _, author := range authors {
				if !tbl.IsFulfilled(author) {
					events, _ := tbl.GetBucket(author)
					mtx.Get(author, relay).Resolve(matrix.Value{Events: events})
				}
			}
		},
	}
	paginate.Run(ctx, f.pool, relay, subOpts, cb)
}

// mergeAuthorLatches awaits every (author, relay) latch, merges the
// contents, dedupes, sorts desc, and applies the same verification mode
// logic as the latest-N strategy.
func mergeAuthorLatches(mtx *matrix.Matrix, author string, n int, opts FetchOpts) []*nostr.Event {
	latches := mtx.LatchesFor(author)
	seen := make(map[string]bool)
	var merged []*nostr.Event
	for _, l := range latches {
		val, err := l.Await(nil)
		if err != nil {
			continue
		}
		for _, ev := range val.Events {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			merged = append(merged, ev)
		}
	}
	slices.SortFunc(merged, func(a, b *nostr.Event) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	return verifyAndTruncate(merged, n, opts)
}

// AuthorEvent is one record of FetchLastEventPerAuthor's output.
type AuthorEvent struct {
	Author string
	Event  *nostr.Event // nil if this author had nothing
}

// FetchLastEventPerAuthor is FetchLatestEventsPerAuthor with n=1 and the
// shorter last-event timeout, wrapping each record down to a single
// optional event (spec §4.7.5).
func (f *Fetcher) FetchLastEventPerAuthor(ctx context.Context, input AuthorsAndRelays, filter nostr.Filter, opts FetchOpts) ([]AuthorEvent, error) {
	if opts.AbortSubBeforeEoseTimeoutMs <= 0 {
		opts.AbortSubBeforeEoseTimeoutMs = DefaultLastEventTimeoutMs
	}
	records, err := f.FetchLatestEventsPerAuthor(ctx, input, filter, 1, opts)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorEvent, len(records))
	for i, r := range records {
		ae := AuthorEvent{Author: r.Author}
		if len(r.Events) > 0 {
			ae.Event = r.Events[0]
		}
		out[i] = ae
	}
	return out, nil
}
