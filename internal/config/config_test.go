package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	// A missing file yields the defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Fetch.ConnectTimeout != 5 {
		t.Errorf("connect timeout = %d, want 5", cfg.Fetch.ConnectTimeout)
	}
	if cfg.Fetch.ReadTimeout != 600 {
		t.Errorf("read timeout = %d, want 600", cfg.Fetch.ReadTimeout)
	}
	if cfg.Fetch.LowSpeedLimit != 32*1024 {
		t.Errorf("low speed limit = %d, want 32768", cfg.Fetch.LowSpeedLimit)
	}
	if cfg.Fetch.LowSpeedTime != 5 {
		t.Errorf("low speed time = %d, want 5", cfg.Fetch.LowSpeedTime)
	}
	if cfg.Fetch.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", cfg.Fetch.Attempts)
	}
	if cfg.Fetch.TLSVerify {
		t.Error("TLS verification should default to off")
	}
	if cfg.Fetch.DefaultRegion != "us-west-2" {
		t.Errorf("default region = %q, want us-west-2", cfg.Fetch.DefaultRegion)
	}
	if cfg.Fetch.DefaultAsset != "iam-role" {
		t.Errorf("default asset = %q, want iam-role", cfg.Fetch.DefaultAsset)
	}
	if cfg.Cache.Root != ".cache" {
		t.Errorf("cache root = %q, want .cache", cfg.Cache.Root)
	}
	if cfg.Cache.MaxFiles != 16 {
		t.Errorf("cache max files = %d, want 16", cfg.Cache.MaxFiles)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8123
fetch:
  attempts: 5
  default_region: eu-central-1
cache:
  root: /var/cache/groundstore
  max_files: 64
assets:
  - name: gedi
    region: us-west-2
    path: ornl-cumulus-prod-protected/gedi
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.Fetch.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", cfg.Fetch.Attempts)
	}
	if cfg.Fetch.DefaultRegion != "eu-central-1" {
		t.Errorf("default region = %q", cfg.Fetch.DefaultRegion)
	}
	// Unset fields still get defaults.
	if cfg.Fetch.ReadTimeout != 600 {
		t.Errorf("read timeout = %d, want default 600", cfg.Fetch.ReadTimeout)
	}
	if cfg.Cache.MaxFiles != 64 {
		t.Errorf("cache max files = %d, want 64", cfg.Cache.MaxFiles)
	}
	if len(cfg.Assets) != 1 || cfg.Assets[0].Name != "gedi" {
		t.Errorf("assets = %+v", cfg.Assets)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed YAML")
	}
}

func TestFetchDurations(t *testing.T) {
	f := FetchConfig{ConnectTimeout: 5, ReadTimeout: 600, LowSpeedTime: 5, RetryWait: 1}
	connect, read, lowSpeed, retryWait := f.FetchDurations()
	if connect != 5*time.Second || read != 600*time.Second || lowSpeed != 5*time.Second || retryWait != time.Second {
		t.Errorf("durations = %v %v %v %v", connect, read, lowSpeed, retryWait)
	}
}
