package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)

	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("Expected minLevel to be %s, got %s", LevelInfo, logger.minLevel)
	}
}

func TestLogger_ShouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logLevel Level
		want     bool
	}{
		{"debug logs when min is debug", LevelDebug, LevelDebug, true},
		{"info logs when min is debug", LevelDebug, LevelInfo, true},
		{"error logs when min is debug", LevelDebug, LevelError, true},
		{"debug does not log when min is info", LevelInfo, LevelDebug, false},
		{"info logs when min is info", LevelInfo, LevelInfo, true},
		{"error logs when min is info", LevelInfo, LevelError, true},
		{"info does not log when min is error", LevelError, LevelInfo, false},
		{"error logs when min is error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.minLevel)
			got := logger.shouldLog(tt.logLevel)
			if got != tt.want {
				t.Errorf("shouldLog() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{minLevel: LevelInfo, output: &buf}

	payload := map[string]interface{}{
		"container_id": "101",
		"count":        3,
	}

	logger.Log(LevelInfo, "test.event", "Test message", payload)

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if event.Level != LevelInfo {
		t.Errorf("Expected level %s, got %s", LevelInfo, event.Level)
	}

	if event.Type != "test.event" {
		t.Errorf("Expected type 'test.event', got %s", event.Type)
	}

	if event.Message != "Test message" {
		t.Errorf("Expected message 'Test message', got %s", event.Message)
	}

	if event.Payload["container_id"] != "101" {
		t.Errorf("Expected payload container_id '101', got %v", event.Payload["container_id"])
	}

	if event.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{minLevel: LevelWarn, output: &buf}

	logger.Debug("test.debug", "Dropped", nil)
	logger.Info("test.info", "Dropped", nil)

	if buf.Len() != 0 {
		t.Errorf("Expected no output below min level, got: %s", buf.String())
	}

	logger.Warn("test.warn", "Kept", nil)
	logger.Error("test.error", "Kept", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{minLevel: LevelInfo, output: &buf}
	logger.SetFormat(FormatText)

	logger.Info("verify.succeeded", "Functional probe passed", map[string]interface{}{
		"container": "101",
		"attempts":  2,
	})

	output := strings.TrimSpace(buf.String())
	if json.Valid([]byte(output)) {
		t.Errorf("Text format must not emit JSON, got: %s", output)
	}
	for _, want := range []string{"[INFO]", "verify.succeeded", "Functional probe passed", "attempts=2 container=101"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestLogger_SetFormatIgnoresUnknown(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{minLevel: LevelInfo, output: &buf}
	logger.SetFormat("xml")

	logger.Info("test.event", "Message", nil)

	if !json.Valid([]byte(strings.TrimSpace(buf.String()))) {
		t.Errorf("Unknown format must keep the JSON default, got: %s", buf.String())
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "gpubridge.log")

	logger, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}

	logger.Info("test.file", "File message", nil)

	if err := logger.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	if !strings.Contains(string(data), "test.file") {
		t.Errorf("Expected log file to contain 'test.file', got: %s", string(data))
	}
}
