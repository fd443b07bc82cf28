package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nexusengine/liveauction/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Bid.RateLimitPerSec != 1 {
		t.Errorf("RateLimitPerSec = %d, want 1", cfg.Bid.RateLimitPerSec)
	}
	if cfg.Auction.ExtensionThresholdSec != 30 {
		t.Errorf("ExtensionThresholdSec = %d, want 30", cfg.Auction.ExtensionThresholdSec)
	}
	if cfg.Finalize.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Finalize.MaxAttempts)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte("auction:\n  extension_threshold_sec: 45\n")
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auction.ExtensionThresholdSec != 45 {
		t.Errorf("ExtensionThresholdSec = %d, want 45", cfg.Auction.ExtensionThresholdSec)
	}
	// Unset fields retain defaults.
	if cfg.Bid.RateLimitPerSec != 1 {
		t.Errorf("RateLimitPerSec = %d, want default 1", cfg.Bid.RateLimitPerSec)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
}
