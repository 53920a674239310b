package nostrfetch

import (
	"time"

	"github.com/mattn/nostr-fetch/log"
	"github.com/nbd-wtf/go-nostr"
)

// Default tunables, per spec §4.1/§4.6/§4.7.
const (
	DefaultLimitPerReq                 = 5000
	BackpressureLimitPerReq            = 500
	DefaultConnectTimeoutMs            = 5_000
	DefaultAbortSubBeforeEoseTimeoutMs = 10_000
	DefaultLastEventTimeoutMs          = 1_000
	DefaultBackpressureHighWater       = 5_000
)

// Options configures a Fetcher for its whole lifetime.
type Options struct {
	// MinLogLevel gates package-wide logging: "none", "error", "warn",
	// "info" or "verbose". Empty leaves the process-wide level unchanged
	// ("info" unless an earlier Fetcher set another).
	MinLogLevel string
	// RelayCapCacheTTL bounds how long a NIP-11 probe result is
	// memoized; 0 means forever. Ignored by NewWithPool callers that
	// supply their own Checker.
	RelayCapCacheTTL time.Duration
}

func (o Options) apply() {
	if o.MinLogLevel != "" {
		log.SetLevel(log.ParseLevel(o.MinLogLevel))
	}
}

// TimeRange bounds a fetch. Nil fields are unbounded.
type TimeRange struct {
	Since *nostr.Timestamp
	Until *nostr.Timestamp
}

// FetchOpts configures one fetch call. The zero value is valid and uses
// every documented default.
type FetchOpts struct {
	// SkipVerification disables signature checking entirely (fastest,
	// least safe).
	SkipVerification bool
	// ReduceVerification, when non-nil and true, makes the relay driver
	// skip signature checks; the latest-N and per-author strategies then
	// check signatures on the sorted candidates, newest first, and stop
	// once n valid events are found (spec §4.7.2's middle verification
	// mode). Defaults to true when nil and SkipVerification is false.
	ReduceVerification *bool
	// ConnectTimeoutMs bounds EnsureRelays; 0 uses DefaultConnectTimeoutMs.
	ConnectTimeoutMs int
	// AbortSubBeforeEoseTimeoutMs bounds how long a sub-request may run
	// without a new event before it is abandoned; 0 uses
	// DefaultAbortSubBeforeEoseTimeoutMs.
	AbortSubBeforeEoseTimeoutMs int
	// AbortSignal, if non-nil, cancels every in-flight relay worker as
	// soon as it is closed, alongside ctx.
	AbortSignal <-chan struct{}
	// LimitPerReq caps events requested per sub-request; 0 uses
	// DefaultLimitPerReq. Clamped to BackpressureLimitPerReq when
	// EnableBackpressure is set.
	LimitPerReq int
	// EnableBackpressure makes the output channel apply the bounded
	// hysteresis described in internal/bchan instead of running
	// unbounded.
	EnableBackpressure bool
	// Sort, for fetchAllEvents only, sorts the collected slice by
	// created_at descending before returning it.
	Sort bool
}

func (o FetchOpts) abortTimeoutMs() int {
	if o.AbortSubBeforeEoseTimeoutMs <= 0 {
		return DefaultAbortSubBeforeEoseTimeoutMs
	}
	return o.AbortSubBeforeEoseTimeoutMs
}

func (o FetchOpts) limitPerReq() int {
	n := o.LimitPerReq
	if n <= 0 {
		n = DefaultLimitPerReq
	}
	if o.EnableBackpressure && n > BackpressureLimitPerReq {
		n = BackpressureLimitPerReq
	}
	return n
}

// capReqLimit clamps a per-sub-request REQ limit to DefaultLimitPerReq,
// spec §4.5 step 1's "limit: min(requestedLimit, 5000)" — restated
// verbatim for the per-author variant in §4.7.4 ("limit =
// min(thatLimit, 5000)"). Every pagination strategy's BuildFilter
// routes its computed limit through this before sending a REQ.
func capReqLimit(n int) int {
	if n > DefaultLimitPerReq {
		return DefaultLimitPerReq
	}
	return n
}

func (o FetchOpts) reduceVerification() bool {
	if o.SkipVerification {
		return false
	}
	if o.ReduceVerification == nil {
		return true
	}
	return *o.ReduceVerification
}

// highWater implements spec §4.7.1's backpressure formula,
// max(limitPerReq * |relays|, DefaultBackpressureHighWater), so a fetch
// spanning many relays or a large per-request limit doesn't stall
// producers sooner than the relay count warrants.
func (o FetchOpts) highWater(nRelays int) int {
	if !o.EnableBackpressure {
		return 0
	}
	hw := o.limitPerReq() * nRelays
	if hw < DefaultBackpressureHighWater {
		hw = DefaultBackpressureHighWater
	}
	return hw
}

// AuthorRelays pairs one author with the relays known to carry them,
// the non-uniform input shape for fetchLatestEventsPerAuthor (spec
// §4.7.4).
type AuthorRelays struct {
	Author string
	Relays []string
}

// AuthorsAndRelays is the per-author fetch's input: either a uniform
// set of relays shared by every author, or a distinct list per author.
type AuthorsAndRelays struct {
	// Uniform form.
	Authors   []string
	RelayURLs []string
	// Non-uniform form. Setting it together with Authors or RelayURLs
	// makes FetchLatestEventsPerAuthor fail with ErrInvalidAuthors.
	Pairs []AuthorRelays
}

func (a AuthorsAndRelays) pairs() []AuthorRelays {
	if a.Pairs != nil {
		return a.Pairs
	}
	pairs := make([]AuthorRelays, len(a.Authors))
	for i, author := range a.Authors {
		pairs[i] = AuthorRelays{Author: author, Relays: a.RelayURLs}
	}
	return pairs
}

// AuthorEvents is one record of fetchLatestEventsPerAuthor's output.
type AuthorEvents struct {
	Author string
	Events []*nostr.Event
}
