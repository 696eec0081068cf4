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
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		SelectionTopic string   `yaml:"selection_topic"`
		ForecastTopic  string   `yaml:"forecast_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend  string        `yaml:"backend"` // memory or redis
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	MLService struct {
		URL        string        `yaml:"url"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRPS     float64       `yaml:"max_rps"`
		RetryLimit int           `yaml:"retry_limit"`
	} `yaml:"ml_service"`
	Backtest struct {
		Windows          int              `yaml:"windows"`
		Step             int              `yaml:"step"`
		MinTrain         int              `yaml:"min_train"`
		FitTimeout       time.Duration    `yaml:"fit_timeout"`
		FitRetries       int              `yaml:"fit_retries"`
		Workers          int              `yaml:"workers"`
		SelectionEpsilon float64          `yaml:"selection_epsilon"`
		AlphaGrid        []float64        `yaml:"alpha_grid"`
		HybridBaseline   string           `yaml:"hybrid_baseline"`
		Horizons         map[string]int   `yaml:"horizons"` // frequency -> steps
	} `yaml:"backtest"`
	Targets []Target `yaml:"targets"`
}

// Target describes one forecast target and its domain constraints.
type Target struct {
	Name         string   `yaml:"name"`
	Frequencies  []string `yaml:"frequencies"`
	NonNegative  *bool    `yaml:"non_negative"`   // nil defaults to true
	LogStabilize bool     `yaml:"log_stabilize"`  // log1p transform for the ML model
}

// IsNonNegative reports whether forecasts for this target are clipped at 0.
// Count/volume/revenue-like targets default to non-negative.
func (t Target) IsNonNegative() bool {
	if t.NonNegative == nil {
		return true
	}
	return *t.NonNegative
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

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ML_SERVICE_URL"); v != "" {
		c.MLService.URL = v
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		c.Cache.Addr = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Backtest.Windows == 0 {
		c.Backtest.Windows = 4
	}
	if c.Backtest.Step == 0 {
		c.Backtest.Step = 7
	}
	if c.Backtest.MinTrain == 0 {
		c.Backtest.MinTrain = 28
	}
	if c.Backtest.FitTimeout == 0 {
		c.Backtest.FitTimeout = 30 * time.Second
	}
	if c.Backtest.Workers == 0 {
		c.Backtest.Workers = 4
	}
	if c.Backtest.SelectionEpsilon == 0 {
		c.Backtest.SelectionEpsilon = 0.005
	}
	if len(c.Backtest.AlphaGrid) == 0 {
		for a := 0.0; a <= 1.0001; a += 0.1 {
			c.Backtest.AlphaGrid = append(c.Backtest.AlphaGrid, float64(int(a*10+0.5))/10)
		}
	}
	if c.Backtest.HybridBaseline == "" {
		c.Backtest.HybridBaseline = "ses"
	}
	if len(c.Backtest.Horizons) == 0 {
		c.Backtest.Horizons = map[string]int{"daily": 14, "weekly": 8}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("targets cannot be empty")
	}
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target name is required")
		}
		if len(t.Frequencies) == 0 {
			return fmt.Errorf("target %s: frequencies cannot be empty", t.Name)
		}
		for _, f := range t.Frequencies {
			if f != "daily" && f != "weekly" {
				return fmt.Errorf("target %s: frequency must be 'daily' or 'weekly', got '%s'", t.Name, f)
			}
			if c.Backtest.Horizons[f] <= 0 {
				return fmt.Errorf("backtest.horizons.%s must be positive", f)
			}
		}
	}
	if c.Backtest.Windows <= 0 {
		return fmt.Errorf("backtest.windows must be positive")
	}
	if c.Backtest.Step <= 0 {
		return fmt.Errorf("backtest.step must be positive")
	}
	if c.Backtest.MinTrain <= 0 {
		return fmt.Errorf("backtest.min_train must be positive")
	}
	prev := -1.0
	for _, a := range c.Backtest.AlphaGrid {
		if a < 0 || a > 1 {
			return fmt.Errorf("backtest.alpha_grid values must be in [0,1], got %v", a)
		}
		if a <= prev {
			return fmt.Errorf("backtest.alpha_grid must be strictly increasing")
		}
		prev = a
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	return nil
}
