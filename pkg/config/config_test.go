package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
publisher:
  type: websocket
  websocket:
    url: ws://localhost:9001/bars
feed:
  symbol: BINANCE:BTCUSDT
  timeframe: 1m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.HealthInterval != 5*time.Second {
		t.Fatalf("health interval default = %v", c.Engine.HealthInterval)
	}
	if c.Publisher.BufferSize != 1024 {
		t.Fatalf("publisher buffer default = %d", c.Publisher.BufferSize)
	}
	if c.Archive.Type != "none" {
		t.Fatalf("archive default = %q", c.Archive.Type)
	}
}

func TestLoadRejectsBadPublisher(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
publisher:
  type: carrier-pigeon
feed:
  symbol: X
  timeframe: 1m
`))
	if err == nil {
		t.Fatalf("expected error for unknown publisher type")
	}
}

func TestLoadRejectsMissingSymbol(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
publisher:
  type: websocket
  websocket:
    url: ws://x/bars
feed:
  timeframe: 1m
`))
	if err == nil {
		t.Fatalf("expected error for missing symbol")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SYMBOL", "BINANCE:ETHUSDT")
	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Feed.Symbol != "BINANCE:ETHUSDT" {
		t.Fatalf("symbol override = %q", c.Feed.Symbol)
	}
}
