package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiHandler_FansOut(t *testing.T) {
	var text, jsonOut bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&jsonOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(h)

	logger.Info("fan out", "server", "echo")

	for name, buf := range map[string]*bytes.Buffer{"text": &text, "json": &jsonOut} {
		out := buf.String()
		if !strings.Contains(out, "fan out") || !strings.Contains(out, "echo") {
			t.Errorf("%s handler missing record: %q", name, out)
		}
	}
}

func TestMultiHandler_RespectsPerHandlerLevels(t *testing.T) {
	var debugOut, errorOut bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorOut, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	if !h.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("expected Enabled at debug when any handler accepts it")
	}

	logger := slog.New(h)
	logger.Debug("only for the debug sink")

	if !strings.Contains(debugOut.String(), "only for the debug sink") {
		t.Error("debug handler should have received the record")
	}
	if errorOut.Len() != 0 {
		t.Errorf("error handler should have filtered the record, got %q", errorOut.String())
	}
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	base := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	derived := base.WithAttrs([]slog.Attr{slog.String("server", "echo")}).WithGroup("rpc")
	slog.New(derived).Info("called", "method", "tools/list")

	out := buf.String()
	for _, want := range []string{"server=echo", "rpc.method=tools/list"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}
