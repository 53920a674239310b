// Package relaycap implements the RelayCapChecker contract (spec §6,
// §4.8): a memoized NIP-11 probe used to decide whether a relay is
// eligible for filters that need a specific NIP (presently: NIP-50
// search).
package relaycap

import "context"

// Checker is the injected capability described in spec §4.8 and §6.
type Checker interface {
	// SupportsNips reports whether url advertises every nip in required.
	// Any probe failure is treated as unsupported.
	SupportsNips(ctx context.Context, url string, required []int) bool
}

// NIPSearch is the one requirement the strategy layer currently checks
// for (spec §4.7: "search in filter => require NIP-50").
const NIPSearch = 50
