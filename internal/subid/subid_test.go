package subid

import (
	"strings"
	"testing"
)

func TestNewHasMillisPrefix(t *testing.T) {
	id := New(1700000000123)
	if !strings.HasPrefix(id, "1700000000123") {
		t.Fatalf("expected millis prefix, got %q", id)
	}
	if len(id) != len("1700000000123")+2 {
		t.Fatalf("expected 2 trailing chars, got %q", id)
	}
}

func TestNewVariesAcrossCalls(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[New(1)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected some variation in generated ids, got %v", seen)
	}
}
