package nostrfetch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mattn/nostr-fetch/internal/bchan"
	"github.com/mattn/nostr-fetch/internal/fanin"
	"github.com/mattn/nostr-fetch/internal/paginate"
	"github.com/mattn/nostr-fetch/internal/subid"
	"github.com/mattn/nostr-fetch/log"
	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
	"golang.org/x/exp/slices"
)

// AllEventsIterator fetches every event across relays matching filter
// within timeRange, streaming them on the returned channel as they
// arrive. The channel closes once every relay has terminated pagination
// (spec §4.7.1).
func (f *Fetcher) AllEventsIterator(ctx context.Context, relays []string, filter nostr.Filter, timeRange TimeRange, opts FetchOpts) (<-chan *nostr.Event, error) {
	if err := validateTimeRange(timeRange.Since, timeRange.Until); err != nil {
		return nil, err
	}
	if !validateRelays(relays) {
		out := bchan.New[*nostr.Event](0)
		out.Close()
		return out.Iterate(), nil
	}
	relays = f.filterEligibleRelays(ctx, relays, filter)
	out := bchan.New[*nostr.Event](opts.highWater(len(relays)))
	if len(relays) == 0 {
		out.Close()
		return out.Iterate(), nil
	}

	atomic.AddInt64(&f.fetches, 1)
	connected := f.pool.EnsureRelays(ctx, relays, relaypool.EnsureOpts{ConnectTimeoutMs: opts.ConnectTimeoutMs})
	seen := fanin.NewSeenSet()

	fanin.Run(connected, func(relay string) {
		f.runAllEventsForRelay(ctx, relay, filter, timeRange, opts, seen, out)
	}, out.Close)

	return out.Iterate(), nil
}

func (f *Fetcher) runAllEventsForRelay(ctx context.Context, relay string, filter nostr.Filter, timeRange TimeRange, opts FetchOpts, seen *xsync.MapOf[string, bool], out *bchan.Chan[*nostr.Event]) {
	subOpts := relaypool.FetchOpts{
		SubID:                       subid.New(time.Now().UnixMilli()),
		SkipVerification:            opts.SkipVerification,
		AbortSubBeforeEoseTimeoutMs: opts.abortTimeoutMs(),
		AbortSignal:                 opts.AbortSignal,
	}

	cb := paginate.Callbacks{
		BuildFilter: func(until *nostr.Timestamp) (nostr.Filter, bool) {
			refined := filter
			refined.Limit = capReqLimit(opts.limitPerReq())
			if timeRange.Since != nil {
				refined.Since = timeRange.Since
			}
			if until != nil {
				refined.Until = until
			} else if timeRange.Until != nil {
				refined.Until = timeRange.Until
			}
			return refined, true
		},
		OnEvent: func(ev *nostr.Event) {
			if _, loaded := seen.LoadOrStore(ev.ID, true); loaded {
				return
			}
			atomic.AddInt64(&f.events, 1)
			out.Send(ev)
		},
		AfterPage: out.WaitUntilDrained,
		OnRelayDone: func(reason paginate.DoneReason, err error) {
			if reason == paginate.DoneError {
				atomic.AddInt64(&f.relayErrs, 1)
				log.Std.E.F("nostrfetch: relay %s stopped: %v", relay, err)
				return
			}
			log.Std.V.F("nostrfetch: relay %s done (%s)", relay, reason)
		},
	}
	paginate.Run(ctx, f.pool, relay, subOpts, cb)
}

// FetchAllEvents drains AllEventsIterator into a slice, optionally
// sorted by created_at descending when opts.Sort is set.
func (f *Fetcher) FetchAllEvents(ctx context.Context, relays []string, filter nostr.Filter, timeRange TimeRange, opts FetchOpts) ([]*nostr.Event, error) {
	ch, err := f.AllEventsIterator(ctx, relays, filter, timeRange, opts)
	if err != nil {
		return nil, err
	}
	var events []*nostr.Event
	for ev := range ch {
		events = append(events, ev)
	}
	if opts.Sort {
		slices.SortFunc(events, func(a, b *nostr.Event) int {
			switch {
			case a.CreatedAt > b.CreatedAt:
				return -1
			case a.CreatedAt < b.CreatedAt:
				return 1
			default:
				return 0
			}
		})
	}
	return events, nil
}
