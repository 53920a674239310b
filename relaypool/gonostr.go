package relaypool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/nostr-fetch/internal/relayurl"
	"github.com/mattn/nostr-fetch/log"
	"github.com/nbd-wtf/go-nostr"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultAbortTimeout   = 10 * time.Second
)

type relayEntry struct {
	relay   *nostr.Relay
	notices chan string
}

// GoNostrPool is the default relaypool.Pool, driving real WebSocket
// connections through github.com/nbd-wtf/go-nostr's *nostr.Relay. It
// implements the per-relay driver semantics of spec §4.4 itself (rather
// than delegating to go-nostr's higher-level SimplePool.FetchMany)
// because the no-progress timeout, NOTICE handling, and abort-vs-error
// distinction all need sub-request-level control.
type GoNostrPool struct {
	mu                    sync.RWMutex
	relays                map[string]relayEntry
	defaultConnectTimeout time.Duration
	defaultAbortTimeout   time.Duration
}

// New builds a GoNostrPool. Zero durations fall back to the package
// defaults (5s connect, 10s no-progress).
func New(connectTimeout, abortTimeout time.Duration) *GoNostrPool {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if abortTimeout <= 0 {
		abortTimeout = defaultAbortTimeout
	}
	return &GoNostrPool{
		relays:                make(map[string]relayEntry),
		defaultConnectTimeout: connectTimeout,
		defaultAbortTimeout:   abortTimeout,
	}
}

func durationOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func (p *GoNostrPool) get(url string) (relayEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.relays[url]
	return e, ok
}

func (p *GoNostrPool) store(url string, e relayEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relays[url] = e
}

// EnsureRelays implements relaypool.Pool.
func (p *GoNostrPool) EnsureRelays(ctx context.Context, urls []string, opts EnsureOpts) []string {
	timeout := durationOrDefault(opts.ConnectTimeoutMs, p.defaultConnectTimeout)

	var (
		mu        sync.Mutex
		connected []string
		wg        sync.WaitGroup
	)
	for _, raw := range urls {
		nu := relayurl.Normalize(raw)
		if nu == "" {
			continue
		}
		wg.Add(1)
		go func(nu string) {
			defer wg.Done()
			if e, ok := p.get(nu); ok && e.relay.IsConnected() {
				mu.Lock()
				connected = append(connected, nu)
				mu.Unlock()
				return
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			notices := make(chan string, 8)
			rl, err := nostr.RelayConnect(cctx, nu, nostr.WithNoticeHandler(func(n string) {
				select {
				case notices <- n:
				default:
				}
			}))
			if err != nil {
				log.Std.W.F("relaypool: failed connecting to %s: %v", nu, err)
				return
			}
			p.store(nu, relayEntry{relay: rl, notices: notices})
			mu.Lock()
			connected = append(connected, nu)
			mu.Unlock()
		}(nu)
	}
	wg.Wait()
	return connected
}

// FetchTillEose implements relaypool.Pool per spec §4.4.
func (p *GoNostrPool) FetchTillEose(ctx context.Context, url string, filter nostr.Filter, opts FetchOpts) (<-chan Item, error) {
	entry, ok := p.get(url)
	if !ok {
		return nil, fmt.Errorf("relaypool: relay %s is not connected; call EnsureRelays first", url)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := entry.relay.Subscribe(subCtx, nostr.Filters{filter}, nostr.WithLabel(opts.SubID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("relaypool: subscribe to %s failed: %w", url, err)
	}

	timeoutDur := durationOrDefault(opts.AbortSubBeforeEoseTimeoutMs, p.defaultAbortTimeout)
	out := make(chan Item)

	go func() {
		defer cancel()
		defer close(out)

		timer := time.NewTimer(timeoutDur)
		defer timer.Stop()

		for {
			select {
			case ev, more := <-sub.Events:
				if !more {
					if ctx.Err() == nil && entry.relay.Context().Err() != nil {
						// the relay's connection died out from under the
						// subscription rather than us closing it; sub.Events
						// closing is often the first signal to arrive, ahead
						// of entry.relay.Context().Done() being selected.
						select {
						case out <- Item{Err: fmt.Errorf("relaypool: connection to %s lost: %w", url, entry.relay.Context().Err())}:
						case <-ctx.Done():
						}
					}
					return
				}
				if !opts.SkipVerification {
					if valid, verr := ev.CheckSignature(); verr != nil || !valid {
						log.Std.V.F("relaypool: dropping event %s from %s: invalid signature", ev.ID, url)
						continue
					}
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(timeoutDur)
				select {
				case out <- Item{Event: ev}:
				case <-ctx.Done():
					return
				}

			case <-sub.EndOfStoredEvents:
				sub.Unsub()
				return

			case <-timer.C:
				log.Std.V.F("relaypool: no-progress timeout on %s (sub %s)", url, opts.SubID)
				sub.Unsub()
				return

			case notice, more := <-entry.notices:
				if !more {
					continue
				}
				log.Std.W.F("relaypool: NOTICE from %s: %s", url, notice)
				sub.Unsub()
				return

			case <-opts.AbortSignal:
				sub.Unsub()
				return

			case <-ctx.Done():
				// our own caller canceled us; no CLOSE is attempted, the
				// subscription context teardown is enough.
				return

			case <-entry.relay.Context().Done():
				// the relay's connection died out from under the
				// subscription, distinct from the ctx.Done() case above,
				// which fires only on caller-side cancellation. No CLOSE
				// is possible, and none should be attempted.
				select {
				case out <- Item{Err: fmt.Errorf("relaypool: connection to %s lost: %w", url, entry.relay.Context().Err())}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return out, nil
}

// Shutdown implements relaypool.Pool.
func (p *GoNostrPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, e := range p.relays {
		if err := e.relay.Close(); err != nil {
			log.Std.V.F("relaypool: error closing %s: %v", url, err)
		}
	}
	p.relays = make(map[string]relayEntry)
}
