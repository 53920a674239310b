// Package subid generates opaque REQ subscription ids.
package subid

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

// New returns an id of the form "<millis><2 random base32 chars>", unique
// enough to disambiguate concurrent subscriptions on the same relay
// connection without needing a central counter.
func New(nowMillis int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", nowMillis)
	var rnd [2]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// a fixed suffix rather than panicking mid-fetch.
		b.WriteString("aa")
		return b.String()
	}
	b.WriteByte(base32Alphabet[int(rnd[0])%len(base32Alphabet)])
	b.WriteByte(base32Alphabet[int(rnd[1])%len(base32Alphabet)])
	return b.String()
}
