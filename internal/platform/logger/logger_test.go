package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"neo4j_password", "hunter2",
		"user_id", "listener-42",
		"track_id", "t1",
	})
	if len(out) != 6 {
		t.Fatalf("len: want=6 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("password: want=[REDACTED] got=%v", out[1])
	}
	hashed, ok := out[3].(string)
	if !ok || !strings.HasPrefix(hashed, "hash:") {
		t.Fatalf("user_id: want hash:* got=%v", out[3])
	}
	if out[5] != "t1" {
		t.Fatalf("track_id: want=t1 got=%v", out[5])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"track_id", "t1", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestNewFallsBackToDebugOnUnknownLevel(t *testing.T) {
	log, err := New("development", "not-a-level")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !log.SugaredLogger.Desugar().Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}
