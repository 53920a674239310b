package relaycap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mattn/nostr-fetch/log"
)

const probeTimeout = 5 * time.Second

type cacheEntry struct {
	nips      map[int]bool
	fetchedAt time.Time
}

// NIP11Checker is the default Checker: one HTTP GET per relay, cached
// afterwards. A zero TTL means "cache forever", matching spec's literal
// "memoized" wording; a positive TTL re-probes after it elapses (see
// SPEC_FULL.md's Open Questions section).
type NIP11Checker struct {
	mu     sync.Mutex
	cache  map[string]cacheEntry
	ttl    time.Duration
	client *http.Client
}

// New builds a NIP11Checker. ttl <= 0 disables expiry.
func New(ttl time.Duration) *NIP11Checker {
	return &NIP11Checker{
		cache:  make(map[string]cacheEntry),
		ttl:    ttl,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// SupportsNips implements Checker.
func (c *NIP11Checker) SupportsNips(ctx context.Context, relayURL string, required []int) bool {
	nips, err := c.lookup(ctx, relayURL)
	if err != nil {
		log.Std.V.F("relaycap: probe failed for %s: %v", relayURL, err)
		return false
	}
	for _, n := range required {
		if !nips[n] {
			return false
		}
	}
	return true
}

func (c *NIP11Checker) lookup(ctx context.Context, relayURL string) (map[int]bool, error) {
	c.mu.Lock()
	if e, ok := c.cache[relayURL]; ok {
		if c.ttl <= 0 || time.Since(e.fetchedAt) < c.ttl {
			c.mu.Unlock()
			return e.nips, nil
		}
	}
	c.mu.Unlock()

	nips, err := c.probe(ctx, relayURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// spec: "negative responses cache an empty set" — we extend that
		// to probe failures too, so one bad relay isn't re-probed on
		// every single filter that needs a capability check.
		c.cache[relayURL] = cacheEntry{nips: map[int]bool{}, fetchedAt: time.Now()}
		return map[int]bool{}, err
	}
	c.cache[relayURL] = cacheEntry{nips: nips, fetchedAt: time.Now()}
	return nips, nil
}

func (c *NIP11Checker) probe(ctx context.Context, relayURL string) (map[int]bool, error) {
	httpURL, err := toHTTP(relayURL)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc struct {
		SupportedNips []int `json:"supported_nips"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(doc.SupportedNips))
	for _, n := range doc.SupportedNips {
		set[n] = true
	}
	return set, nil
}

// toHTTP rewrites ws(s):// to http(s):// as required by NIP-11, adding
// a wss:// prefix first if no scheme is present at all.
func toHTTP(relayURL string) (string, error) {
	u := relayURL
	if !strings.Contains(u, "://") {
		u = "wss://" + u
	}
	p, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	switch p.Scheme {
	case "wss":
		p.Scheme = "https"
	case "ws":
		p.Scheme = "http"
	}
	return p.String(), nil
}
