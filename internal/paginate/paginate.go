// Package paginate implements the pagination loop described as C7: it
// drives one relay through repeated REQ/EOSE sub-requests with a
// shrinking `until`, deduplicating locally and deciding after each
// sub-request whether to continue, per spec §4.5.
package paginate

import (
	"context"

	"github.com/mattn/nostr-fetch/log"
	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
)

// DoneReason explains why a relay's pagination stopped.
type DoneReason int

const (
	// DoneExhausted means a sub-request returned no new events: the
	// relay has nothing older left to give.
	DoneExhausted DoneReason = iota
	// DoneQuota means the strategy's own termination condition (a
	// remaining-limit counter, or every bucket fulfilled) was met.
	DoneQuota
	// DoneAborted means the caller's context was canceled.
	DoneAborted
	// DoneError means the per-relay driver (C6) raised a transport
	// error.
	DoneError
)

func (r DoneReason) String() string {
	switch r {
	case DoneExhausted:
		return "exhausted"
	case DoneQuota:
		return "quota"
	case DoneAborted:
		return "aborted"
	case DoneError:
		return "error"
	default:
		return "unknown"
	}
}

// Callbacks parameterizes Run over the four public strategies: they all
// share the same REQ/dedup/termination machinery but differ in how the
// next filter is built and when to stop early.
type Callbacks struct {
	// BuildFilter returns the filter for the next sub-request given the
	// current `until` (nil on the very first call). ok=false means there
	// is nothing left to request (e.g. every per-author bucket already
	// fulfilled before the first REQ).
	BuildFilter func(until *nostr.Timestamp) (filter nostr.Filter, ok bool)
	// OnEvent is called once per event that is new within this relay's
	// local dedup set (spec: "double-delivery within a paginated
	// sub-request" is ignored before this is called).
	OnEvent func(ev *nostr.Event)
	// AfterPage runs once per completed sub-request, after OnEvent calls
	// for that page and before the termination decision. Strategies that
	// enable backpressure hang a channel drain wait here.
	AfterPage func()
	// QuotaReached is polled after a page that produced at least one new
	// event; returning true ends pagination cleanly even though the
	// relay might have more (spec §4.5 step 4).
	QuotaReached func() bool
	// OnRelayDone is called exactly once, with the reason pagination
	// stopped and, for DoneError, the underlying error.
	OnRelayDone func(reason DoneReason, err error)
}

// Run drives one relay until termination per spec §4.5. relayURL must
// already have been returned by pool.EnsureRelays.
func Run(ctx context.Context, pool relaypool.Pool, relayURL string, subOpts relaypool.FetchOpts, cb Callbacks) {
	localSeen := make(map[string]bool)
	var until *nostr.Timestamp

	for {
		select {
		case <-ctx.Done():
			cb.OnRelayDone(DoneAborted, nil)
			return
		default:
		}

		filter, ok := cb.BuildFilter(until)
		if !ok {
			cb.OnRelayDone(DoneQuota, nil)
			return
		}

		items, err := pool.FetchTillEose(ctx, relayURL, filter, subOpts)
		if err != nil {
			cb.OnRelayDone(DoneError, err)
			return
		}

		var (
			gotNew    bool
			oldest    nostr.Timestamp
			oldestSet bool
			relayErr  error
		)
		for item := range items {
			if item.Err != nil {
				relayErr = item.Err
				continue
			}
			ev := item.Event
			if localSeen[ev.ID] {
				continue
			}
			localSeen[ev.ID] = true
			gotNew = true
			if !oldestSet || ev.CreatedAt < oldest {
				oldest = ev.CreatedAt
				oldestSet = true
			}
			cb.OnEvent(ev)
		}

		if relayErr != nil {
			cb.OnRelayDone(DoneError, relayErr)
			return
		}

		if cb.AfterPage != nil {
			cb.AfterPage()
		}

		select {
		case <-ctx.Done():
			cb.OnRelayDone(DoneAborted, nil)
			return
		default:
		}

		if !gotNew {
			cb.OnRelayDone(DoneExhausted, nil)
			return
		}

		if cb.QuotaReached != nil && cb.QuotaReached() {
			cb.OnRelayDone(DoneQuota, nil)
			return
		}

		// the +1 tolerates both inclusive and exclusive `until` semantics
		// across relays; an event with created_at == oldest may be
		// redelivered next page, absorbed by localSeen.
		next := oldest + 1
		until = &next
		log.Std.V.F("paginate: %s advancing until to %d", relayURL, next)
	}
}
