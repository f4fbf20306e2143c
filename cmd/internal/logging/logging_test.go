package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/kortschak/cycling/cmd/internal/config"
)

func TestNewProdJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "v1.0.0", "cscmon")
	log.Debug("hidden")
	log.Info("reading", "cadence_rpm", 90.0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("unexpected number of log lines: got:%d want:1\n%s", len(lines), buf.String())
	}
	var got map[string]any
	err := json.Unmarshal([]byte(lines[0]), &got)
	if err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	for k, want := range map[string]any{
		"msg":         "reading",
		"app":         "cscmon",
		"version":     "v1.0.0",
		"env":         "prod",
		"cadence_rpm": 90.0,
	} {
		if got[k] != want {
			t.Errorf("unexpected value for %q: got:%v want:%v", k, got[k], want)
		}
	}
}

func TestNewDevText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}, "dev", "cscmon")
	log.Debug("bootstrap", "sensor", "aa:bb")

	got := buf.String()
	for _, want := range []string{"bootstrap", "cscmon", "aa:bb"} {
		if !strings.Contains(got, want) {
			t.Errorf("log output missing %q: %s", want, got)
		}
	}
}
