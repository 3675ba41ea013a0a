package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestLogger_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchdog.log")
	l := NewWithFile("info", &FileOptions{Path: path, MaxSizeMB: 1})
	l.Info("scope evaluated", "asset", "Overall")
	l.Debug("filtered out")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

func TestLogger_Nop(t *testing.T) {
	l := Nop()
	l.Info("ignored", "k", "v")
}
