package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Level: "debug", Format: "json", Output: &buf}

	log := New(cfg)
	log.Info().Str("k", "v").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["message"] != "hello" || entry["k"] != "v" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Level: "shouty", Format: "json", Output: &buf}

	log := New(cfg)
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug logged despite info fallback")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info not logged")
	}
}

func TestParseableLevel(t *testing.T) {
	if err := ParseableLevel("warn"); err != nil {
		t.Errorf("warn: %v", err)
	}
	if err := ParseableLevel("shouty"); err == nil {
		t.Error("expected error for unknown level")
	}
}
