package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	FMP struct {
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		Timeout       time.Duration `yaml:"timeout"`
		RetryMax      int           `yaml:"retry_max"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		PriceWorkers  int           `yaml:"price_workers"`
		RankWorkers   int           `yaml:"rank_workers"`
		McapChunkSize int           `yaml:"mcap_chunk_size"`
	} `yaml:"fmp"`
	Oracle struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"oracle"`
	Backtest struct {
		DefaultBandPct  float64       `yaml:"default_band_pct"`
		SmallCapBandPct float64       `yaml:"small_cap_band_pct"`
		DriftPct        float64       `yaml:"drift_pct"`
		Pacing          time.Duration `yaml:"pacing"`
	} `yaml:"backtest"`
	DecisionCache struct {
		Backend string        `yaml:"backend"` // memory | redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"decision_cache"`
	Results struct {
		Enabled    bool `yaml:"enabled"`
		ClickHouse struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			Database     string        `yaml:"database"`
			User         string        `yaml:"user"`
			Password     string        `yaml:"password"`
			DialTimeout  time.Duration `yaml:"dial_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"clickhouse"`
	} `yaml:"results"`
	Events struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"events"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FMP_API_KEY"); v != "" {
		c.FMP.APIKey = v
	}
	if v := os.Getenv("FMP_STABLE_BASE"); v != "" {
		c.FMP.BaseURL = v
	}
	if v := os.Getenv("ANALYZER_BASE"); v != "" {
		c.Oracle.BaseURL = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.FMP.PriceWorkers = n
		}
	}
	if v := os.Getenv("RETURN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.FMP.RankWorkers = n
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3002
	}
	if c.FMP.BaseURL == "" {
		c.FMP.BaseURL = "https://financialmodelingprep.com/stable"
	}
	c.FMP.BaseURL = strings.TrimRight(c.FMP.BaseURL, "/")
	if c.FMP.Timeout == 0 {
		c.FMP.Timeout = 30 * time.Second
	}
	if c.FMP.RetryMax == 0 {
		c.FMP.RetryMax = 1
	}
	if c.FMP.RetryDelay == 0 {
		c.FMP.RetryDelay = 600 * time.Millisecond
	}
	if c.FMP.PriceWorkers == 0 {
		c.FMP.PriceWorkers = 8
	}
	if c.FMP.RankWorkers == 0 {
		c.FMP.RankWorkers = 10
	}
	if c.FMP.McapChunkSize == 0 {
		c.FMP.McapChunkSize = 150
	}
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = 30 * time.Second
	}
	if c.Backtest.DefaultBandPct == 0 {
		c.Backtest.DefaultBandPct = 0.05
	}
	if c.Backtest.SmallCapBandPct == 0 {
		c.Backtest.SmallCapBandPct = 0.07
	}
	if c.Backtest.DriftPct == 0 {
		c.Backtest.DriftPct = 0.10
	}
	if c.DecisionCache.Backend == "" {
		c.DecisionCache.Backend = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.FMP.APIKey == "" {
		return fmt.Errorf("fmp.api_key is required")
	}
	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if c.DecisionCache.Backend != "memory" && c.DecisionCache.Backend != "redis" {
		return fmt.Errorf("decision_cache.backend must be 'memory' or 'redis', got '%s'", c.DecisionCache.Backend)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers cannot be empty when events are enabled")
	}
	if c.Results.Enabled && c.Results.ClickHouse.Host == "" {
		return fmt.Errorf("results.clickhouse.host is required when results are enabled")
	}
	return nil
}
