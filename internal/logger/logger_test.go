package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DebugLevel, Pretty: false, Output: &buf, Component: "test"})

	l.Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
	if entry["component"] != "test" {
		t.Errorf("component = %v, want test", entry["component"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Pretty: false, Output: &buf})

	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Error("messages below the configured level must be filtered")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn message missing")
	}
}

func TestDomainEvents(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DebugLevel, Pretty: false, Output: &buf})

	l.ExchangeEvent("GET", "/users/{id}", 200, 15*time.Millisecond)
	l.DiscoveryEvent("POST", "/users")

	out := buf.String()
	for _, fragment := range []string{"/users/{id}", "Observed exchange", "Discovered endpoint"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("output missing %q", fragment)
		}
	}
}

func TestNop(t *testing.T) {
	// Must not panic or write anywhere.
	l := Nop()
	l.Info("ignored")
	l.WithComponent("x").WithField("k", 1).Error("ignored")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	if err != nil || lvl != DebugLevel {
		t.Errorf("ParseLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("nope"); err == nil {
		t.Error("invalid level should error")
	}
}
