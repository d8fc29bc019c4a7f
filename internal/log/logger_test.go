package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	return out
}

func TestSetupWriterHonoursLevel(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	var buf bytes.Buffer
	SetupWriter("warn", &buf)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("INFO record written at WARN level: %s", buf.String())
	}
	Warn("kept", "stage", "Build")
	out := decode(t, &buf)
	if out["msg"] != "kept" || out["stage"] != "Build" {
		t.Errorf("unexpected record %v", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	cases := []struct {
		name  string
		build func() *slog.Logger
		key   string
		want  string
	}{
		{"component", func() *slog.Logger { return WithComponent("api") }, "component", "api"},
		{"stage", func() *slog.Logger { return WithStage("Deploy") }, "stage", "Deploy"},
		{"run", func() *slog.Logger { return WithRun("run-123") }, "run_id", "run-123"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger = slog.New(slog.NewJSONHandler(&buf, nil))

		tc.build().Info("hello")
		out := decode(t, &buf)
		if out[tc.key] != tc.want {
			t.Errorf("%s: expected %s %q, got %v", tc.name, tc.key, tc.want, out[tc.key])
		}
		if out["msg"] != "hello" {
			t.Errorf("%s: expected msg 'hello', got %v", tc.name, out["msg"])
		}
	}
}
