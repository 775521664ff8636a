package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newLogHandler(&Config{LogFormat: "json"}, &buf)).Info("hello", slog.String("k", "v"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("json format did not produce JSON: %v", err)
	}
	if record["msg"] != "hello" || record["k"] != "v" {
		t.Fatalf("unexpected record: %v", record)
	}

	buf.Reset()
	slog.New(newLogHandler(&Config{LogFormat: "pretty"}, &buf)).Info("hello")
	if json.Unmarshal(buf.Bytes(), &record) == nil {
		t.Fatal("pretty format should not produce JSON")
	}
}

func TestLogLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&Config{LogLevel: "warn"}, &buf))

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatal("info record emitted at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Fatal("warn record suppressed at warn level")
	}
}

func TestLogLevelDefaults(t *testing.T) {
	if logLevel(nil) != slog.LevelInfo {
		t.Fatal("nil config should default to info")
	}
	if logLevel(&Config{LogLevel: "verbose"}) != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
	if logLevel(&Config{LogLevel: "debug"}) != slog.LevelDebug {
		t.Fatal("debug level not recognized")
	}
}
