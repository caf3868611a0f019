package config

import (
	"fmt"
	"os"
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
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
	Loader struct {
		BaseURL          string        `yaml:"base_url"`
		Timeout          time.Duration `yaml:"timeout"`
		RateBurst        float64       `yaml:"rate_burst"`
		RateRefillPerSec float64       `yaml:"rate_refill_per_sec"`
	} `yaml:"loader"`
	Candles struct {
		BenchmarkTicker string        `yaml:"benchmark_ticker"`
		MaxWorkers      int           `yaml:"max_workers"`
		BatchTimeout    time.Duration `yaml:"batch_timeout"`
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		LockShards      int           `yaml:"lock_shards"`
	} `yaml:"candles"`
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

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("LOADER_URL"); v != "" {
		c.Loader.BaseURL = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Candles.BenchmarkTicker == "" {
		c.Candles.BenchmarkTicker = "BTC-USDT-SWAP"
	}
	if c.Candles.MaxWorkers == 0 {
		c.Candles.MaxWorkers = 5
	}
	if c.Candles.BatchTimeout == 0 {
		c.Candles.BatchTimeout = 10 * time.Minute
	}
	if c.Candles.CacheTTL == 0 {
		c.Candles.CacheTTL = 15 * time.Minute
	}
	if c.Candles.LockShards == 0 {
		c.Candles.LockShards = 16
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "cached_candles"
	}
	if c.Loader.Timeout == 0 {
		c.Loader.Timeout = 2 * time.Minute
	}
	if c.Loader.RateBurst == 0 {
		c.Loader.RateBurst = 5
	}
	if c.Loader.RateRefillPerSec == 0 {
		c.Loader.RateRefillPerSec = 1
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Loader.BaseURL == "" {
		return fmt.Errorf("loader.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}
	return nil
}
