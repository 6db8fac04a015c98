package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `venueflow:
  name: "TestApp"
  version: "1.0"
manager:
  monitor_interval: 10s
  rebalance_threshold: 0.3
  route:
    min_fill_ratio: 0.95
venues:
- name: "sim-a"
  driver: "sim"
  taker_fee: 0.001
  rate_limit:
    requests_per_second: 10
    burst_size: 20
storage:
  s3:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Venueflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Venueflow.Name)
	}
	if cfg.Manager.MonitorInterval != 10*time.Second {
		t.Errorf("unexpected monitor interval: %s", cfg.Manager.MonitorInterval)
	}
	if len(cfg.Venues) != 1 || cfg.Venues[0].Driver != "sim" {
		t.Fatalf("unexpected venues: %+v", cfg.Venues)
	}
	if cfg.Venues[0].CacheTTL != time.Second {
		t.Errorf("cache_ttl default not applied: %s", cfg.Venues[0].CacheTTL)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Reconnect.MaxAttempts != 8 {
		t.Errorf("unexpected reconnect max attempts: %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Reconnect.BaseDelay != time.Second || cfg.Reconnect.MaxDelay != 60*time.Second {
		t.Errorf("unexpected reconnect delays: %s / %s", cfg.Reconnect.BaseDelay, cfg.Reconnect.MaxDelay)
	}
	if cfg.Manager.Arbitrage.DepthLevels != 5 {
		t.Errorf("unexpected arbitrage depth levels: %d", cfg.Manager.Arbitrage.DepthLevels)
	}
}

func TestExpandEnvRef(t *testing.T) {
	t.Setenv("VF_TEST_KEY", "secret")
	if got := expandEnvRef("${VF_TEST_KEY}"); got != "secret" {
		t.Errorf("expandEnvRef = %q, want %q", got, "secret")
	}
	if got := expandEnvRef("literal"); got != "literal" {
		t.Errorf("expandEnvRef literal = %q", got)
	}
}

func TestValidateRejectsDuplicateVenue(t *testing.T) {
	cfg := &Config{
		Venueflow: VenueflowConfig{Name: "x", Version: "1"},
		Manager: ManagerConfig{
			MonitorInterval:    time.Second,
			RebalanceThreshold: 0.3,
			Route:              RouteConfig{MinFillRatio: 0.95},
		},
		Reconnect: ReconnectConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute},
		Venues: []VenueConfig{
			{Name: "a", Driver: "sim", RateLimit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}},
			{Name: "a", Driver: "sim", RateLimit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}},
		},
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("expected duplicate venue error")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
