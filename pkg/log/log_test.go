package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below WARN should be dropped, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") {
		t.Errorf("expected warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestStandardLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))
	child := logger.WithField("component", "hash").WithField("dir", "/tmp/x")
	child.Info("opened")
	logger.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "[INFO] component=hash dir=/tmp/x opened") {
		t.Errorf("unexpected field formatting: %q", lines[0])
	}
	if strings.Contains(lines[1], "component=") {
		t.Errorf("parent logger should not carry child fields: %q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmhash.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0644); err != nil {
		t.Fatal(err)
	}

	lines, err := Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if strings.Join(lines, ",") != "three,four" {
		t.Errorf("expected [three four], got %v", lines)
	}

	lines, err = Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if strings.Join(lines, ",") != "one,two,three,four" {
		t.Errorf("expected every line, got %v", lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	if _, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 3); err == nil {
		t.Error("expected an error for a missing file")
	}
}
