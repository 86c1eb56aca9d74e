package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"DEBUG":   Debug,
		"INFO":    Info,
		"WARNING": Warning,
		"ERROR":   Error,
		"info":    Info,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("Failed to parse %q: %v", name, err)
		}
		if got != want {
			t.Errorf("Expected %v for %q, got %v", want, name, got)
		}
	}

	if _, err := ParseLevel("TRACE"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Warning, &buf)

	logger.Infof("hidden %d", 1)
	logger.Warningf("shown %d", 2)
	logger.Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info message to be filtered out")
	}
	if !strings.Contains(out, "shown 2") {
		t.Error("Expected warning message in output")
	}
	if !strings.Contains(out, "also shown") {
		t.Error("Expected error message in output")
	}
}
