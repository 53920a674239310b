// Package mockpool is a scripted relaypool.Pool used by tests: each
// relay is given a fixed sequence of "pages", one page consumed per
// FetchTillEose call, so tests can exercise the pagination and fan-in
// logic without a real WebSocket connection.
package mockpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/nostr-fetch/relaypool"
	"github.com/nbd-wtf/go-nostr"
)

// Msg is one scripted message within a page.
type Msg struct {
	Event   *nostr.Event
	Notice  string
	Err     error
	Delay   time.Duration // delay before this message is emitted
	IsEOSE  bool          // if true, ends the page cleanly (default when a page runs out)
	NoClose bool          // unused placeholder for symmetry with real driver semantics
}

// Page is one REQ's worth of scripted messages.
type Page []Msg

// Script is one relay's full scripted behavior across successive REQs.
type Script struct {
	Pages []Page
}

// Pool is a mockpool.Pool implementing relaypool.Pool.
type Pool struct {
	mu          sync.Mutex
	scripts     map[string]*Script
	pageIdx     map[string]int
	unreachable map[string]bool
	reqLog      []ReqRecord
	closeLog    []string
}

// ReqRecord captures one FetchTillEose call for assertions.
type ReqRecord struct {
	Relay  string
	Filter nostr.Filter
}

func New() *Pool {
	return &Pool{
		scripts:     make(map[string]*Script),
		pageIdx:     make(map[string]int),
		unreachable: make(map[string]bool),
	}
}

// SetScript installs relay's scripted pages.
func (p *Pool) SetScript(relay string, s *Script) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[relay] = s
}

// SetUnreachable makes EnsureRelays skip this relay.
func (p *Pool) SetUnreachable(relay string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unreachable[relay] = true
}

// Requests returns every FetchTillEose call made so far.
func (p *Pool) Requests() []ReqRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ReqRecord, len(p.reqLog))
	copy(out, p.reqLog)
	return out
}

func (p *Pool) EnsureRelays(_ context.Context, urls []string, _ relaypool.EnsureOpts) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, u := range urls {
		if p.unreachable[u] {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (p *Pool) FetchTillEose(ctx context.Context, url string, filter nostr.Filter, opts relaypool.FetchOpts) (<-chan relaypool.Item, error) {
	p.mu.Lock()
	p.reqLog = append(p.reqLog, ReqRecord{Relay: url, Filter: filter})
	script, ok := p.scripts[url]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("mockpool: no script for relay %s", url)
	}
	idx := p.pageIdx[url]
	p.pageIdx[url] = idx + 1
	p.mu.Unlock()

	out := make(chan relaypool.Item)
	go func() {
		defer close(out)
		if idx >= len(script.Pages) {
			return // EOSE immediately: no more pages scripted
		}
		page := script.Pages[idx]
		timeout := time.Duration(opts.AbortSubBeforeEoseTimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		var sinceLast time.Duration
		for _, m := range page {
			sinceLast += m.Delay
			t := time.NewTimer(m.Delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			case <-opts.AbortSignal:
				t.Stop()
				return
			}
			if sinceLast >= timeout {
				return
			}
			if m.IsEOSE {
				return
			}
			if m.Notice != "" {
				return // NOTICE ends the sub-request cleanly
			}
			if m.Err != nil {
				select {
				case out <- relaypool.Item{Err: m.Err}:
				case <-ctx.Done():
				}
				return
			}
			if m.Event != nil {
				select {
				case out <- relaypool.Item{Event: m.Event}:
					sinceLast = 0
				case <-ctx.Done():
					return
				case <-opts.AbortSignal:
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Pool) Shutdown() {}
