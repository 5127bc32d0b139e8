package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"", logrus.InfoLevel},
		{"nonsense", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := newLogger(Options{Level: tt.level, NoColor: true})
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nayana.log")

	l := newLogger(Options{Level: "info", File: logFile, NoColor: true})
	l.WithField("session_id", "abc").Info("tracking started")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "tracking started") {
		t.Errorf("log file missing message, got %q", data)
	}
	if !strings.Contains(string(data), "abc") {
		t.Errorf("log file missing field value, got %q", data)
	}
}

func TestGet_ReturnsSharedLogger(t *testing.T) {
	if Get() != Get() {
		t.Error("Get() should return the same logger on every call")
	}
	if WithSession("s1").Data["session_id"] != "s1" {
		t.Error("WithSession() should tag the entry with the session id")
	}
}
