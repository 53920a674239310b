// Package bucket implements the per-key capped event accumulator
// described as C3, used by the per-author fetch strategies to collect
// up to N events per author across all relays that carry that author.
package bucket

import "github.com/nbd-wtf/go-nostr"

// State is the outcome of an Add call.
type State int

const (
	// Open means the event was accepted and the bucket has not yet
	// reached its cap.
	Open State = iota
	// Fulfilled means this insert was the one that reached the cap.
	Fulfilled
	// Dropped means the key is unknown, or the bucket was already at
	// cap before this insert.
	Dropped
)

type bucket struct {
	ids    map[string]bool
	events []*nostr.Event
	cap    int
}

// Table is a fixed set of keys, each with its own capped, insertion
// ordered, id-deduplicated accumulator.
type Table struct {
	buckets map[string]*bucket
}

// New creates a Table with one bucket per key, each capped at capPerKey.
func New(keys []string, capPerKey int) *Table {
	t := &Table{buckets: make(map[string]*bucket, len(keys))}
	for _, k := range keys {
		t.buckets[k] = &bucket{ids: make(map[string]bool), cap: capPerKey}
	}
	return t
}

// Add inserts ev under key. See State for the return values; on
// Fulfilled the bucket's full contents (in insertion order) are
// returned alongside.
func (t *Table) Add(key string, ev *nostr.Event) (State, []*nostr.Event) {
	b, ok := t.buckets[key]
	if !ok {
		return Dropped, nil
	}
	if len(b.events) >= b.cap {
		return Dropped, nil
	}
	if b.ids[ev.ID] {
		return Dropped, nil
	}
	b.ids[ev.ID] = true
	b.events = append(b.events, ev)
	if len(b.events) == b.cap {
		return Fulfilled, b.events
	}
	return Open, nil
}

// GetBucket returns the current contents of key's bucket, or ok=false if
// key is unknown.
func (t *Table) GetBucket(key string) (events []*nostr.Event, ok bool) {
	b, exists := t.buckets[key]
	if !exists {
		return nil, false
	}
	return b.events, true
}

// IsFulfilled reports whether key's bucket has reached its cap.
func (t *Table) IsFulfilled(key string) bool {
	b, ok := t.buckets[key]
	if !ok {
		return false
	}
	return len(b.events) >= b.cap
}

// NextRequest computes the keys still below cap and the total remaining
// capacity across them, suitable for the next REQ's authors/limit pair.
func (t *Table) NextRequest() (keys []string, limit int) {
	for k, b := range t.buckets {
		remaining := b.cap - len(b.events)
		if remaining <= 0 {
			continue
		}
		keys = append(keys, k)
		limit += remaining
	}
	return
}

// AllFulfilled reports whether every key's bucket has reached its cap.
func (t *Table) AllFulfilled() bool {
	for _, b := range t.buckets {
		if len(b.events) < b.cap {
			return false
		}
	}
	return true
}
