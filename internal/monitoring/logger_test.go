package monitoring

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestInitWritesJSON(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		Init(LogConfig{})
	}()

	var buf bytes.Buffer
	Init(LogConfig{Level: "info", Format: "json", Output: &buf})

	Logf("imported %d points", 42)
	Logger().Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, `"message":"imported 42 points"`) {
		t.Errorf("Logf output missing message: %q", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("Logf output missing level: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug event written at info level: %q", out)
	}
}

func TestInitConsoleFormat(t *testing.T) {
	defer Init(LogConfig{})

	var buf bytes.Buffer
	Init(LogConfig{Level: "debug", Format: "console", Output: &buf})
	l := Component("playback")
	l.Debug().Int("index", 3).Msg("tick")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console format produced JSON: %q", out)
	}
	if !strings.Contains(out, "tick") || !strings.Contains(out, "index") {
		t.Errorf("unexpected console output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
