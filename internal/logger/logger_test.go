package logger

import "testing"

func TestNewJSONLogger(t *testing.T) {
	l, err := New(Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Sync()
	if !l.Core().Enabled(0) {
		t.Errorf("info logger should be enabled at info level")
	}
}

func TestNewConsoleLoggerDefaultsOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "not-a-level", Format: "console", OutputPath: "stdout"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Sync()
}
