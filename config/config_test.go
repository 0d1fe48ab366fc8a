package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const sample = `
pipeline:
  name: eval
  log_level: debug
  workers: 1
services:
  pose:
    url: http://pose:9000
  asr:
    url: http://asr:9001
  timeout_seconds: 30
poller:
  url: https://app.example.com/api/session
  interval_minutes: 2
paths:
  temp: /var/tmp/sessions
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.Name != "eval" || cfg.Pipeline.LogLvl != "debug" {
		t.Fatalf("pipeline section not read: %+v", cfg.Pipeline)
	}
	if cfg.Services.Pose.URL != "http://pose:9000" || cfg.Services.ASR.URL != "http://asr:9001" {
		t.Fatalf("services not read: %+v", cfg.Services)
	}
	if cfg.Poller.IntervalMinutes != 2 || cfg.Poller.URL == "" {
		t.Fatalf("poller not read: %+v", cfg.Poller)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Fatalf("workers must be raised to 2 so both branches overlap, got %d", cfg.Pipeline.Workers)
	}
	// untouched keys keep their defaults
	if cfg.Audio.SampleRate != 16000 || cfg.Server.Addr != ":8081" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Audio, cfg.Server)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SESSION_POLLER_URL", "https://override.example.com/job")
	t.Setenv("SESSION_SERVICES_TIMEOUT_SECONDS", "5")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Poller.URL != "https://override.example.com/job" {
		t.Fatalf("env override ignored: %q", cfg.Poller.URL)
	}
	if DurSeconds(cfg.Services.TimeoutSeconds).Seconds() != 5 {
		t.Fatalf("expected 5s timeout, got %d", cfg.Services.TimeoutSeconds)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Poller.IntervalMinutes != 5 || cfg.Poller.URL != "" {
		t.Fatalf("unexpected poller defaults: %+v", cfg.Poller)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestDumpRoundTrips(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var buf bytes.Buffer
	if err := Dump(&buf, cfg); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(buf.String(), "interval_minutes: 2") {
		t.Fatalf("dump missing poller interval:\n%s", buf.String())
	}
	var back Root
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("dumped yaml does not parse: %v", err)
	}
	if back.Services.Pose.URL != cfg.Services.Pose.URL {
		t.Fatalf("pose url lost in dump")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Root{}
	cfg.Pipeline.LogLvl = "warn"
	cfg.Pipeline.LogFormat = "json"
	log := NewLogger(cfg)
	if log.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter")
	}

	cfg.Pipeline.LogLvl = "nonsense"
	if NewLogger(cfg).GetLevel() != logrus.InfoLevel {
		t.Fatalf("invalid level should fall back to info")
	}
}
