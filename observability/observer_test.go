package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zerosum-labs/learner/observability"
)

// captureObserver records events for assertions.
type captureObserver struct {
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, event observability.Event) {
	c.events = append(c.events, event)
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  string
	}{
		{observability.Level(1), "TRACE"},
		{observability.LevelVerbose, "DEBUG"},
		{observability.LevelInfo, "INFO"},
		{observability.LevelWarning, "WARN"},
		{observability.LevelError, "ERROR"},
		{observability.Level(21), "FATAL"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{observability.LevelVerbose, slog.LevelDebug},
		{observability.LevelInfo, slog.LevelInfo},
		{observability.LevelWarning, slog.LevelWarn},
		{observability.LevelError, slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLevel_OTelAlignment(t *testing.T) {
	// The numeric values are OTel SeverityNumbers; they are part of the
	// contract, not an implementation detail.
	tests := []struct {
		level observability.Level
		want  int
	}{
		{observability.LevelVerbose, 5},
		{observability.LevelInfo, 9},
		{observability.LevelWarning, 13},
		{observability.LevelError, 17},
	}

	for _, tt := range tests {
		if int(tt.level) != tt.want {
			t.Errorf("got severity %d, want %d", int(tt.level), tt.want)
		}
	}
}

func TestNoOpObserver(t *testing.T) {
	var obs observability.Observer = observability.NoOpObserver{}
	// Must not panic on any event shape.
	obs.OnEvent(context.Background(), observability.Event{})
	obs.OnEvent(context.Background(), observability.Event{
		Type: "learn.step",
		Data: map[string]any{"steps": 1},
	})
}

func TestMultiObserver_FansOut(t *testing.T) {
	first := &captureObserver{}
	second := &captureObserver{}
	multi := observability.NewMultiObserver(first, nil, second)

	event := observability.Event{Type: "learn.step", Level: observability.LevelInfo}
	multi.OnEvent(context.Background(), event)

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("got %d and %d events, want 1 each", len(first.events), len(second.events))
	}
	if first.events[0].Type != "learn.step" {
		t.Errorf("got event type %q, want learn.step", first.events[0].Type)
	}
}

func TestSlogObserver_EmitsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{
		Type:      "learn.save.checkpoint",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "learn.tick",
		RunID:     "run-123",
		Data:      map[string]any{"steps": 5000},
	})

	out := buf.String()
	for _, want := range []string{
		"learn.save.checkpoint",
		"level=INFO",
		"source=learn.tick",
		"run_id=run-123",
		"steps=5000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogObserver_OmitsEmptyRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{
		Type:   "learn.wait",
		Level:  observability.LevelInfo,
		Source: "learn.tick",
	})

	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("log output carries an empty run_id:\n%s", buf.String())
	}
}

func TestGetObserver(t *testing.T) {
	for _, name := range []string{"noop", "slog"} {
		if _, err := observability.GetObserver(name); err != nil {
			t.Errorf("GetObserver(%q) failed: %v", name, err)
		}
	}

	if _, err := observability.GetObserver("nonexistent"); err == nil {
		t.Error("GetObserver with an unknown name succeeded")
	}
}

func TestRegisterObserver(t *testing.T) {
	capture := &captureObserver{}
	observability.RegisterObserver("test-capture", capture)

	obs, err := observability.GetObserver("test-capture")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}

	obs.OnEvent(context.Background(), observability.Event{Type: "learn.step"})
	if len(capture.events) != 1 {
		t.Errorf("got %d events, want 1", len(capture.events))
	}
}

func TestRegisterObserver_ReplacesExisting(t *testing.T) {
	// Rebinding a name is how a binary swaps a pre-registered observer for
	// its own configured instance.
	first := &captureObserver{}
	second := &captureObserver{}
	observability.RegisterObserver("test-replace", first)
	observability.RegisterObserver("test-replace", second)

	obs, err := observability.GetObserver("test-replace")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	obs.OnEvent(context.Background(), observability.Event{Type: "learn.step"})

	if len(first.events) != 0 {
		t.Errorf("replaced observer still received %d events", len(first.events))
	}
	if len(second.events) != 1 {
		t.Errorf("got %d events on the replacement, want 1", len(second.events))
	}
}
