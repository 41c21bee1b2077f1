package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
vendor:
  host: 192.168.1.10
  username: admin
  password: secret
callback:
  host: 192.168.1.2
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Vendor.ClientID != "de.madone.x1client" {
		t.Errorf("ClientID = %s", cfg.Vendor.ClientID)
	}
	if cfg.Vendor.Timeout != 10*time.Second || !cfg.Vendor.InsecureSkipVerify {
		t.Errorf("vendor = %+v", cfg.Vendor)
	}
	if cfg.Poll.Interval != 60*time.Second {
		t.Errorf("Poll.Interval = %v", cfg.Poll.Interval)
	}
	if cfg.Callback.Port != 8124 || cfg.Callback.CertFile != "domain_srv.crt" || !cfg.Callback.Enabled {
		t.Errorf("callback = %+v", cfg.Callback)
	}
	if got := cfg.Callback.URL(); got != "https://192.168.1.2:8124/value" {
		t.Errorf("URL() = %s", got)
	}

	positions := cfg.Topology.TradePositions()
	if positions[types.TradeLighting] != 0 || positions[types.TradeCover] != 2 || positions[types.TradeClimate] != 3 {
		t.Errorf("TradePositions() = %v", positions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GIRA_VENDOR_PASSWORD", "from-env")
	t.Setenv("GIRA_POLL_INTERVAL", "5s")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vendor.Password != "from-env" {
		t.Errorf("Password = %s, want from-env", cfg.Vendor.Password)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Poll.Interval = %v, want 5s", cfg.Poll.Interval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing host", func(c *Config) { c.Vendor.Host = "" }, "vendor.host"},
		{"missing password", func(c *Config) { c.Vendor.Password = "" }, "vendor.password"},
		{"callback port", func(c *Config) { c.Callback.Port = 70000 }, "callback.port"},
		{"callback host", func(c *Config) { c.Callback.Host = "" }, "callback.host"},
		{"unknown trade", func(c *Config) { c.Topology.Trades["scenes"] = 1 }, "unknown trade"},
		{"callback disabled", func(c *Config) { c.Callback.Enabled = false; c.Callback.Host = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
