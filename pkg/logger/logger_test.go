package logx

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, Config{Service: "test-svc"})
	l.Debug().Msg("hidden")
	l.Info().Str("customer_id", "CUST0001").Msg("turn handled")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "test-svc" || entry["customer_id"] != "CUST0001" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewDebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, Config{Debug: true})
	l.Debug().Msg("visible")
	if buf.Len() == 0 {
		t.Fatal("debug entry not written")
	}
}
