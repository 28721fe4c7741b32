package config

import (
	"testing"
	"time"
)

func TestLoadBotDefaults(t *testing.T) {
	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Fatalf("APIURL = %q, want http://localhost:8080", cfg.APIURL)
	}
	if cfg.Seats != 1 || cfg.Interval != 30*time.Second {
		t.Fatalf("unexpected bot defaults: %+v", cfg)
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("API_URL", "http://127.0.0.1:9000")
	t.Setenv("API_KEY", "key-a")
	t.Setenv("BOT_SEATS", "3")
	t.Setenv("BOT_MAX_PRICE_PER_BIT", "5000")
	t.Setenv("BOT_INTERVAL", "2s")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9000" || cfg.APIKey != "key-a" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
	if cfg.Seats != 3 || cfg.MaxPrice != 5000 || cfg.Interval != 2*time.Second {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
}
