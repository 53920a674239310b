package nostrfetch

import (
	"context"

	"github.com/mattn/nostr-fetch/log"
	"github.com/mattn/nostr-fetch/relaycap"
	"github.com/nbd-wtf/go-nostr"
)

// filterEligibleRelays implements spec §4.7 step (b): every strategy
// filters relays by required NIPs via the capability cache before
// querying. Presently the only requirement a filter can carry is
// search, which needs NIP-50 (spec §8: "a relay with search filter but
// lacking NIP-50 -> excluded from the eligible set; fetch proceeds
// without it"). A filter with no such requirement leaves relays
// untouched.
func (f *Fetcher) filterEligibleRelays(ctx context.Context, relays []string, filter nostr.Filter) []string {
	if filter.Search == "" {
		return relays
	}
	eligible := make([]string, 0, len(relays))
	for _, r := range relays {
		if f.capChecker.SupportsNips(ctx, r, []int{relaycap.NIPSearch}) {
			eligible = append(eligible, r)
			continue
		}
		log.Std.W.F("nostrfetch: relay %s lacks NIP-50; excluded from search fetch", r)
	}
	return eligible
}
