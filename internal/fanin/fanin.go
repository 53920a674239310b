// Package fanin implements the small amount of glue described as C8:
// running one worker per relay concurrently and knowing when they have
// all finished. The actual "fan into a bounded channel with global
// dedup" step is common enough across strategies that it lives here
// too, as EmitDeduped.
package fanin

import (
	"sync"

	"github.com/mattn/nostr-fetch/internal/bchan"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
)

// Run launches worker once per relay, concurrently, and calls onAllDone
// after every worker has returned. Workers run independently; per-relay
// errors are the worker's own responsibility to handle (spec: "errors in
// one relay never block or fail other relays"). Panics are not
// recovered.
func Run(relays []string, worker func(relay string), onAllDone func()) {
	var wg sync.WaitGroup
	wg.Add(len(relays))
	for _, r := range relays {
		go func(r string) {
			defer wg.Done()
			worker(r)
		}(r)
	}
	go func() {
		wg.Wait()
		if onAllDone != nil {
			onAllDone()
		}
	}()
}

// NewSeenSet builds the concurrent id set backing global dedup.
func NewSeenSet() *xsync.MapOf[string, bool] {
	return xsync.NewMapOf[bool]()
}

// EmitDeduped sends ev to out unless its id has already been seen by
// this fetch call (spec: "the union of ids emitted to the caller has no
// duplicates").
func EmitDeduped(seen *xsync.MapOf[string, bool], out *bchan.Chan[*nostr.Event], ev *nostr.Event) {
	if _, loaded := seen.LoadOrStore(ev.ID, true); loaded {
		return
	}
	out.Send(ev)
}
