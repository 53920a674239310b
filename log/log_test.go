package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	defer SetLevel(GetLevel())
	var buf bytes.Buffer
	l := New(&buf)
	SetLevel(Warn)

	l.V.Ln("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("verbose logged at Warn level: %q", buf.String())
	}
	l.W.Ln("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"none": None, "error": Error, "warn": Warn,
		"info": Info, "verbose": Verbose, "bogus": Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
