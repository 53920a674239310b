// Package relayurl normalizes relay URLs so that the same relay reached
// via slightly different spellings (scheme case, trailing slash, default
// port) is treated as one relay by the per-author fan-out.
package relayurl

import (
	"net/url"
	"strings"
)

// Normalize lowercases the scheme/host, rewrites http(s) to ws(s), drops
// the scheme's default port (443 for wss, 80 for ws), and strips a
// trailing slash from the path. A URL that does not parse is returned
// after only whitespace trimming and, if it had no scheme, the wss://
// prefix.
func Normalize(u string) string {
	if u == "" {
		return ""
	}
	u = strings.TrimSpace(u)
	lower := strings.ToLower(u)
	if !(strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "ws://") ||
		strings.HasPrefix(lower, "wss://")) {
		u = "wss://" + u
	}
	p, err := url.Parse(u)
	if err != nil {
		return u
	}
	p.Scheme = strings.ToLower(p.Scheme)
	p.Host = strings.ToLower(p.Host)
	switch p.Scheme {
	case "https":
		p.Scheme = "wss"
	case "http":
		p.Scheme = "ws"
	}
	if (p.Scheme == "wss" && p.Port() == "443") || (p.Scheme == "ws" && p.Port() == "80") {
		p.Host = strings.TrimSuffix(p.Host, ":"+p.Port())
	}
	p.Path = strings.TrimRight(p.Path, "/")
	return p.String()
}

// Dedup normalizes and de-duplicates a list of relay URLs, preserving
// first-seen order.
func Dedup(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		n := Normalize(u)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
