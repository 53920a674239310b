// Package matrix implements the key×relay latch matrix described as C4:
// given a map of relay -> keys it carries, it builds one latch per
// (key, relay) pair, and lets callers look up either "all latches for a
// key" (the merger's view) or "the latch for one (key, relay)" (a relay
// worker's view).
package matrix

import (
	"github.com/mattn/nostr-fetch/internal/latch"
	"github.com/nbd-wtf/go-nostr"
)

// Value is what each latch resolves to: the bucket contents collected
// for one key on one relay.
type Value struct {
	Events []*nostr.Event
}

// Matrix is built once per per-author fetch call.
type Matrix struct {
	byKey map[string]map[string]*latch.Latch[Value] // key -> relay -> latch
}

// New builds a latch at every (key, relay) pair implied by relayToKeys.
func New(relayToKeys map[string][]string) *Matrix {
	m := &Matrix{byKey: make(map[string]map[string]*latch.Latch[Value])}
	for relay, keys := range relayToKeys {
		for _, key := range keys {
			if m.byKey[key] == nil {
				m.byKey[key] = make(map[string]*latch.Latch[Value])
			}
			m.byKey[key][relay] = latch.New[Value]()
		}
	}
	return m
}

// Get returns the latch for (key, relay), or nil if that pair was never
// created.
func (m *Matrix) Get(key, relay string) *latch.Latch[Value] {
	byRelay, ok := m.byKey[key]
	if !ok {
		return nil
	}
	return byRelay[relay]
}

// LatchesFor returns every (relay, latch) pair for key, i.e. the full
// set a merger for that key must await.
func (m *Matrix) LatchesFor(key string) map[string]*latch.Latch[Value] {
	return m.byKey[key]
}

// Keys returns every key present in the matrix.
func (m *Matrix) Keys() []string {
	keys := make([]string, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	return keys
}

// RelaysFor returns the relays known to carry key.
func (m *Matrix) RelaysFor(key string) []string {
	byRelay := m.byKey[key]
	relays := make([]string, 0, len(byRelay))
	for r := range byRelay {
		relays = append(relays, r)
	}
	return relays
}
