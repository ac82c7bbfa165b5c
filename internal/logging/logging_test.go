package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := New(level, "text"); logger == nil {
			t.Errorf("New(%q) returned nil", level)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	if New("info", "json") == nil {
		t.Error("json logger is nil")
	}
	if New("info", "text") == nil {
		t.Error("text logger is nil")
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := New("info", "text")
	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the attached logger")
	}
}

func TestFromContext_Default(t *testing.T) {
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext on empty context should return slog.Default()")
	}
}

func TestWithEscrow(t *testing.T) {
	logger := New("info", "text")
	if WithEscrow(logger, 7) == nil {
		t.Error("WithEscrow returned nil")
	}
}
