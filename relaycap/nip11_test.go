package relaycap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func startServer(t *testing.T, nips []int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/nostr+json" {
			t.Errorf("missing NIP-11 Accept header")
		}
		json.NewEncoder(w).Encode(map[string]any{"supported_nips": nips})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSupportsNipsTrue(t *testing.T) {
	srv := startServer(t, []int{1, 11, 50})
	c := New(0)
	if !c.SupportsNips(context.Background(), srv.URL, []int{50}) {
		t.Fatal("expected NIP-50 to be supported")
	}
}

func TestSupportsNipsFalse(t *testing.T) {
	srv := startServer(t, []int{1, 11})
	c := New(0)
	if c.SupportsNips(context.Background(), srv.URL, []int{50}) {
		t.Fatal("did not expect NIP-50 to be supported")
	}
}

func TestSupportsNipsCachesResult(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]any{"supported_nips": []int{50}})
	}))
	defer srv.Close()

	c := New(0)
	c.SupportsNips(context.Background(), srv.URL, []int{50})
	c.SupportsNips(context.Background(), srv.URL, []int{50})
	if hits != 1 {
		t.Fatalf("expected exactly 1 HTTP request, got %d", hits)
	}
}

func TestSupportsNipsFailureIsFalse(t *testing.T) {
	c := New(0)
	if c.SupportsNips(context.Background(), "http://127.0.0.1:1", []int{50}) {
		t.Fatal("expected probe failure to report unsupported")
	}
}

func TestTTLReprobes(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]any{"supported_nips": []int{50}})
	}))
	defer srv.Close()

	c := New(10 * time.Millisecond)
	c.SupportsNips(context.Background(), srv.URL, []int{50})
	time.Sleep(20 * time.Millisecond)
	c.SupportsNips(context.Background(), srv.URL, []int{50})
	if hits != 2 {
		t.Fatalf("expected re-probe after ttl elapsed, got %d hits", hits)
	}
}
