package nostrfetch

import (
	"github.com/mattn/nostr-fetch/log"
	"github.com/nbd-wtf/go-nostr"
)

// validateRelays is a warn-severity check: an empty relay list is not an
// error, it just yields nothing (spec §4.9, §8 "Empty relay list").
func validateRelays(relays []string) bool {
	if len(relays) == 0 {
		log.Std.W.Ln("nostrfetch: called with an empty relay list; yielding nothing")
		return false
	}
	return true
}

// validateAuthors is a warn-severity check mirroring validateRelays.
func validateAuthors(authors []string) bool {
	if len(authors) == 0 {
		log.Std.W.Ln("nostrfetch: called with no authors; yielding nothing")
		return false
	}
	return true
}

// validatePerAuthorRelayLists warns (but does not fail the whole call)
// when an author has no relays of its own to check against.
func validatePerAuthorRelayLists(pairs []AuthorRelays) {
	for _, p := range pairs {
		if len(p.Relays) == 0 {
			log.Std.W.F("nostrfetch: author %s has no relays; it will not appear in results", p.Author)
		}
	}
}

// validateAuthorsAndRelays is an error-severity check: supplying both
// the uniform and per-author forms at once is ambiguous, not a warning.
func validateAuthorsAndRelays(input AuthorsAndRelays) error {
	if len(input.Pairs) > 0 && (len(input.Authors) > 0 || len(input.RelayURLs) > 0) {
		return newFetchError(ErrInvalidAuthors, "authorsAndRelays: specify either the uniform form (Authors/RelayURLs) or Pairs, not both")
	}
	return nil
}

// validateTimeRange is an error-severity check: since > until is a
// caller mistake, not something the fetch can recover from.
func validateTimeRange(since, until *nostr.Timestamp) error {
	if since != nil && until != nil && *since > *until {
		return newFetchError(ErrInvalidRange, "since (%d) is after until (%d)", *since, *until)
	}
	return nil
}

// validateLimit is an error-severity check used by the latest-N family;
// allEventsIterator has no limit argument to validate.
func validateLimit(n int) error {
	if n <= 0 {
		return newFetchError(ErrInvalidLimit, "limit must be > 0, got %d", n)
	}
	return nil
}
