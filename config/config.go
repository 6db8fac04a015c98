package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Venueflow VenueflowConfig `yaml:"venueflow"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Manager   ManagerConfig   `yaml:"manager"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Storage   StorageConfig   `yaml:"storage"`
	Venues    []VenueConfig   `yaml:"venues"`
}

type VenueflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type ManagerConfig struct {
	MonitorInterval    time.Duration   `yaml:"monitor_interval"`
	RebalanceThreshold float64         `yaml:"rebalance_threshold"`
	Route              RouteConfig     `yaml:"route"`
	Arbitrage          ArbitrageConfig `yaml:"arbitrage"`
	Report             ReportConfig    `yaml:"report"`
}

type RouteConfig struct {
	MinFillRatio float64 `yaml:"min_fill_ratio"`
}

type ArbitrageConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	MinProfit    float64       `yaml:"min_profit"`
	DepthLevels  int           `yaml:"depth_levels"`
	Symbols      []string      `yaml:"symbols"`
}

type ReportConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type VenueConfig struct {
	Name              string          `yaml:"name"`
	Driver            string          `yaml:"driver"`
	APIKey            string          `yaml:"api_key"`
	APISecret         string          `yaml:"api_secret"`
	Passphrase        string          `yaml:"passphrase"`
	TakerFee          float64         `yaml:"taker_fee"`
	CacheTTL          time.Duration   `yaml:"cache_ttl"`
	SlippageAllowance float64         `yaml:"slippage_allowance"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	Sim               SimConfig       `yaml:"sim"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type SimConfig struct {
	BasePrices      map[string]float64 `yaml:"base_prices"`
	InitialBalances map[string]float64 `yaml:"initial_balances"`
	FailureRate     float64            `yaml:"failure_rate"`
	MinLatency      time.Duration      `yaml:"min_latency"`
	MaxLatency      time.Duration      `yaml:"max_latency"`
	Slippage        float64            `yaml:"slippage"`
	Seed            int64              `yaml:"seed"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	PathStyle       bool          `yaml:"path_style"`
	Prefix          string        `yaml:"prefix"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

var envRefRegexp = regexp.MustCompile(`^\$\{([A-Z0-9_]+)\}$`)

// expandEnvRef resolves "${VAR}" placeholders so credentials never need to
// live in the file itself.
func expandEnvRef(v string) string {
	if m := envRefRegexp.FindStringSubmatch(strings.TrimSpace(v)); m != nil {
		return strings.TrimSpace(os.Getenv(m[1]))
	}
	return v
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Manager: ManagerConfig{
			MonitorInterval:    30 * time.Second,
			RebalanceThreshold: 0.25,
			Route:              RouteConfig{MinFillRatio: 0.95},
			Arbitrage: ArbitrageConfig{
				ScanInterval: 5 * time.Second,
				DepthLevels:  5,
			},
			Report: ReportConfig{Interval: time.Minute},
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 8,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Resolve credential references from the environment
	for i := range config.Venues {
		v := &config.Venues[i]
		v.APIKey = expandEnvRef(v.APIKey)
		v.APISecret = expandEnvRef(v.APISecret)
		v.Passphrase = expandEnvRef(v.Passphrase)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Venueflow.Name == "" {
		return fmt.Errorf("venueflow.name is required")
	}

	if cfg.Venueflow.Version == "" {
		return fmt.Errorf("venueflow.version is required")
	}

	if len(cfg.Venues) == 0 {
		return fmt.Errorf("at least one venue must be configured")
	}

	seen := make(map[string]bool, len(cfg.Venues))
	for i := range cfg.Venues {
		v := &cfg.Venues[i]
		if v.Name == "" {
			return fmt.Errorf("venues[%d].name is required", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("venue name '%s' is duplicated", v.Name)
		}
		seen[v.Name] = true

		switch v.Driver {
		case "binance", "kucoin", "sim":
		default:
			return fmt.Errorf("venues[%d].driver '%s' is unknown", i, v.Driver)
		}
		if v.Driver != "sim" && (v.APIKey == "" || v.APISecret == "") {
			return fmt.Errorf("venue '%s' requires api_key and api_secret", v.Name)
		}
		if v.Driver == "kucoin" && v.Passphrase == "" {
			return fmt.Errorf("venue '%s' requires a passphrase", v.Name)
		}
		if v.TakerFee < 0 || v.TakerFee >= 1 {
			return fmt.Errorf("venue '%s' taker_fee must be in [0, 1)", v.Name)
		}
		if v.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("venue '%s' rate_limit.requests_per_second must be greater than 0", v.Name)
		}
		if v.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("venue '%s' rate_limit.burst_size must be greater than 0", v.Name)
		}
		if v.CacheTTL <= 0 {
			v.CacheTTL = time.Second
		}
	}

	if cfg.Manager.MonitorInterval <= 0 {
		return fmt.Errorf("manager.monitor_interval must be greater than 0")
	}
	if cfg.Manager.Route.MinFillRatio <= 0 || cfg.Manager.Route.MinFillRatio > 1 {
		return fmt.Errorf("manager.route.min_fill_ratio must be in (0, 1]")
	}
	if cfg.Manager.RebalanceThreshold <= 0 || cfg.Manager.RebalanceThreshold >= 1 {
		return fmt.Errorf("manager.rebalance_threshold must be in (0, 1)")
	}
	if cfg.Manager.Arbitrage.Enabled {
		if cfg.Manager.Arbitrage.ScanInterval <= 0 {
			return fmt.Errorf("manager.arbitrage.scan_interval must be greater than 0")
		}
		if len(cfg.Manager.Arbitrage.Symbols) == 0 {
			return fmt.Errorf("manager.arbitrage.symbols is required when arbitrage is enabled")
		}
	}

	if cfg.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be greater than 0")
	}
	if cfg.Reconnect.BaseDelay <= 0 || cfg.Reconnect.MaxDelay < cfg.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect delays are invalid")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
		if cfg.Storage.S3.FlushInterval <= 0 {
			cfg.Storage.S3.FlushInterval = time.Minute
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
