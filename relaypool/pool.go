// Package relaypool defines the RelayPool contract (spec §6): the
// boundary between the fetch orchestrator and raw relay transport. The
// core (internal/paginate, internal/fanin, and the root nostrfetch
// package) only ever talks to this interface; relaypool.New wires the
// default implementation on top of github.com/nbd-wtf/go-nostr.
package relaypool

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// EnsureOpts bounds how long EnsureRelays waits per relay.
type EnsureOpts struct {
	ConnectTimeoutMs int // 0 means use the pool's default
}

// FetchOpts controls one sub-request (one REQ/EOSE cycle).
type FetchOpts struct {
	SubID                       string
	SkipVerification            bool
	AbortSubBeforeEoseTimeoutMs int         // 0 means use the pool's default
	AbortSignal                 <-chan struct{}
}

// Item is one message yielded by FetchTillEose. Exactly one of Event or
// Err is set; Err ends the sequence (transport error, spec §4.4 step 8 —
// no CLOSE is sent in that case because the connection is already gone).
type Item struct {
	Event *nostr.Event
	Err   error
}

// Pool is the injected capability described in spec §1 and §6.
type Pool interface {
	// EnsureRelays returns the subset of urls successfully connected
	// within opts.ConnectTimeoutMs. Idempotent: already-connected relays
	// are returned without reconnecting.
	EnsureRelays(ctx context.Context, urls []string, opts EnsureOpts) []string

	// FetchTillEose drives one REQ against url per spec §4.4. url must
	// already have been returned by EnsureRelays.
	FetchTillEose(ctx context.Context, url string, filter nostr.Filter, opts FetchOpts) (<-chan Item, error)

	// Shutdown closes every connection the pool holds. In-flight fetches
	// observe this as a transport error and terminate cleanly.
	Shutdown()
}
