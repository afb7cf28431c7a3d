package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"queue_go/internal/domain"
)

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("LoadConfig() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  binance:
    ws_url: "wss://stream.binance.com:9443"
    rest_url: "https://api.binance.com"
    api_key: "k"
    secret_key: ""
    instruments: ["BTCUSDT"]
redis:
  addr: "localhost:6379"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for missing credentials")
	}

	t.Setenv("QUEUE_BINANCE_SECRET", "s")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.API.Binance.SecretKey != "s" {
		t.Fatalf("secret = %q, want env override", cfg.API.Binance.SecretKey)
	}
}
