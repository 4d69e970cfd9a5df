package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, closer, err := NewLogger(Options{Dir: dir, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level, got %s", log.GetLevel())
	}

	log.Info("dropped")
	log.WithField("video_id", "dQw4w9WgXcQ").Warn("kept")

	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Errorf("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"video_id":"dQw4w9WgXcQ"`) {
		t.Errorf("expected JSON field in log output, got %s", out)
	}
}

func TestNewLoggerDebugOverridesLevel(t *testing.T) {
	log, closer, err := NewLogger(Options{Dir: t.TempDir(), Level: "error", Debug: true})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", log.GetLevel())
	}
}
