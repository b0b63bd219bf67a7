package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"seedharvest/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid log level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "seed.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestFileOutputReceivesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.log")
	logger, err := New(&config.LoggingConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger.WithField("item_id", "42").Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") || !strings.Contains(string(data), `"item_id":"42"`) {
		t.Errorf("Log file missing line, got %q", data)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestDefaultFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	NewWithWriter(&buf).Info("hello")

	output := buf.String()
	if !strings.Contains(output, `"app":"seedharvest"`) {
		t.Errorf("app field missing: %s", output)
	}
	if !strings.Contains(output, `"version":"`+Version+`"`) {
		t.Errorf("version field missing: %s", output)
	}
}

func TestFieldChaining(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	child := logger.
		WithField("run_id", "abc").
		WithFields(map[string]interface{}{"page": 3, "dry_run": true})
	child.InfoWithFields("chained fields", map[string]interface{}{"wait": 2 * time.Second})

	output := buf.String()
	for _, want := range []string{`"run_id":"abc"`, `"page":3`, `"dry_run":true`, `"wait":2000`, "chained fields"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output %s", want, output)
		}
	}

	// parent unchanged
	buf.Reset()
	logger.Info("parent")
	if strings.Contains(buf.String(), "run_id") {
		t.Error("child fields leaked into parent logger")
	}
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("rpc refused")).Error("add failed")
	if !strings.Contains(buf.String(), `"error":"rpc refused"`) {
		t.Errorf("error field missing: %s", buf.String())
	}
}

func TestLogItemOutcome(t *testing.T) {
	tl := NewTestLogger()

	LogItemOutcome(tl, "7", "Some Title", OutcomeAdded, nil)
	LogItemOutcome(tl, "8", "", OutcomeAlreadyPresent, nil)
	LogItemOutcome(tl, "9", "", OutcomeFailed, errors.New("boom"))

	msgs := tl.GetMessages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Level != "INFO" || msgs[0].Fields["title"] != "Some Title" {
		t.Errorf("unexpected added message: %+v", msgs[0])
	}
	if msgs[1].Level != "DEBUG" || msgs[1].Fields["outcome"] != OutcomeAlreadyPresent {
		t.Errorf("unexpected present message: %+v", msgs[1])
	}
	if msgs[2].Level != "ERROR" || msgs[2].Error == nil || msgs[2].Fields["item_id"] != "9" {
		t.Errorf("unexpected failed message: %+v", msgs[2])
	}
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "inventory")
	child.Warn("refresh failed")

	if !tl.HasMessage("refresh failed") {
		t.Fatal("parent did not see child message")
	}
	if got := tl.GetMessagesByLevel("WARN")[0].Fields["component"]; got != "inventory" {
		t.Errorf("component field = %v", got)
	}
	if !tl.HasMessageContaining("refresh") {
		t.Error("HasMessageContaining failed")
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	LogComponentStart("harvester", map[string]interface{}{"workers": 4})
	LogComponentStop("harvester", "done")
	WithField("key", "value").Info("with field")

	if !tl.HasMessage("Component started") || !tl.HasMessage("Component stopped") || !tl.HasMessage("with field") {
		t.Errorf("global helpers did not reach the installed logger: %+v", tl.GetMessages())
	}
}
