package logctl

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetMinLevel(LevelWarn)

	l.Debug(Conn, "should not appear")
	l.Info(Conn, "should not appear either")
	l.Warn(Conn, "visible warning")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected debug/info suppressed, got %q", out)
	}
	if !strings.Contains(out, "visible warning") {
		t.Fatalf("expected warning line, got %q", out)
	}
}

func TestLoggerSetQuietMutesCategory(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetQuiet(Pub, true)

	l.Error(Pub, "muted")
	l.Error(Conn, "not muted")

	out := buf.String()
	if strings.Contains(out, "muted") && !strings.Contains(out, "not muted") {
		t.Fatalf("quiet category leaked into output: %q", out)
	}
	if strings.Contains(out, "] ERROR") && strings.Contains(out, "[pub]") {
		t.Fatalf("expected no pub category lines, got %q", out)
	}
	if !strings.Contains(out, "not muted") {
		t.Fatalf("expected conn category line present, got %q", out)
	}
}

func TestCountsTracksPerCategoryPerLevel(t *testing.T) {
	l := New()
	l.SetOutput(&bytes.Buffer{})
	l.Info(Worker, "a")
	l.Info(Worker, "b")
	l.Error(Worker, "c")

	counts := l.Counts()
	if counts[Worker][LevelInfo] != 2 {
		t.Fatalf("expected 2 info messages, got %d", counts[Worker][LevelInfo])
	}
	if counts[Worker][LevelError] != 1 {
		t.Fatalf("expected 1 error message, got %d", counts[Worker][LevelError])
	}
}
