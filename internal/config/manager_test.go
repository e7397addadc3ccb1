package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const yamlConfig = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: "debug"
  console: true
database:
  path: "./data/test.db"
engine:
  sweep_interval: "5m"
  workers: 4
assistant:
  api_key: "gsk_test"
  history_limit: 5
`

func TestManagerParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig)
	m := NewManager(path)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token: %q", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.SweepInterval != "5m" {
		t.Fatalf("engine: %+v", cfg.Engine)
	}
	if m.Get() != cfg {
		t.Fatalf("Get should return the committed config")
	}
}

func TestManagerParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram": {"token": "9:z"}, "logging": {"level": "info", "console": true},
		  "database": {"path": "x.db"}, "engine": {}, "assistant": {"api_key": "k"}}`)
	m := NewManager(path)

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "9:z" {
		t.Fatalf("token: %q", cfg.Telegram.Token)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig+"\nnot_a_real_key: true\n")
	m := NewManager(path)

	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestManagerSubscribePublish(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-ch:
		if got != next {
			t.Fatalf("wrong config published")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for publish")
	}
}

func TestManagerSlowSubscriberGetsLatest(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second) // buffer full: drop-oldest, keep newest

	got := <-ch
	if got != second {
		t.Fatalf("expected the newest config to survive")
	}
}

func TestParseDurationHelpers(t *testing.T) {
	d, err := ParseDurationField("x", "150ms")
	if err != nil || d != 150*time.Millisecond {
		t.Fatalf("parse: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("expected negative duration rejection")
	}

	d, err = ParseDurationOrDefault("x", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
}
