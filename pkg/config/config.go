package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalDesk/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine struct {
		Timeframes []string `yaml:"timeframes"`
		Lookback   int      `yaml:"lookback"`
		CacheTTL   struct {
			Market     time.Duration `yaml:"market"`
			Confluence time.Duration `yaml:"confluence"`
			Sentiment  time.Duration `yaml:"sentiment"`
			Strategies time.Duration `yaml:"strategies"`
		} `yaml:"cache_ttl"`
	} `yaml:"engine"`
	MarketData struct {
		Backend    string `yaml:"backend"` // memory | clickhouse
		MaxCandles int    `yaml:"max_candles"`
		Source     string `yaml:"source"` // kafka | finnhub | none
	} `yaml:"market_data"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		TicksTopic   string   `yaml:"ticks_topic"`
		SignalsTopic string   `yaml:"signals_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
			// earliest or latest, used when the group has no committed offset
			AutoOffsetReset string `yaml:"auto_offset_reset"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
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
		Compression      bool          `yaml:"compression"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		PingTimeout      time.Duration `yaml:"ping_timeout"`
		TTLDays          int           `yaml:"ttl_days"`
		StoreTicks       bool          `yaml:"store_ticks"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
	} `yaml:"redis"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Throttle       time.Duration `yaml:"throttle"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"finnhub"`
	Sentiment struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"sentiment"`
	Scheduler struct {
		Enabled   bool          `yaml:"enabled"`
		Every     time.Duration `yaml:"every"`
		Watchlist []string      `yaml:"watchlist"` // SYMBOL:INTERVAL, e.g. BTCUSDT:5
		UseQueue  bool          `yaml:"use_queue"`
		Workers   int           `yaml:"workers"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML file, and applies environment overrides.
// An empty path starts from Default().
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SIGNALDESK_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SIGNALDESK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("SIGNALDESK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SIGNALDESK_MARKET_BACKEND"); v != "" {
		c.MarketData.Backend = v
	}
	if v := os.Getenv("SIGNALDESK_MARKET_SOURCE"); v != "" {
		c.MarketData.Source = v
	}
	if v := os.Getenv("SIGNALDESK_WATCHLIST"); v != "" {
		c.Scheduler.Watchlist = util.SplitCSV(v)
		c.Scheduler.Enabled = true
	}
	if v := os.Getenv("SIGNALDESK_SENTIMENT_URL"); v != "" {
		c.Sentiment.URL = v
		c.Sentiment.Enabled = true
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = util.SplitCSV(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("KAFKA_TICKS_TOPIC"); v != "" {
		c.Kafka.TicksTopic = v
	}
	if v := os.Getenv("KAFKA_SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Default returns a config that runs standalone: in-memory candles, no brokers.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Server.RateLimit.RPS = 20
	c.Server.RateLimit.Burst = 40
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Engine.Timeframes = []string{"1m", "5m", "15m", "1h"}
	c.Engine.Lookback = 150
	c.Engine.CacheTTL.Market = 120 * time.Second
	c.Engine.CacheTTL.Confluence = 120 * time.Second
	c.Engine.CacheTTL.Sentiment = 600 * time.Second
	c.Engine.CacheTTL.Strategies = time.Hour
	c.MarketData.Backend = "memory"
	c.MarketData.Source = "none"
	c.Kafka.TicksTopic = "signaldesk.ticks"
	c.Kafka.SignalsTopic = "signaldesk.signals"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.Consumer.GroupID = "signaldesk"
	c.Kafka.Consumer.Workers = 4
	c.Kafka.Consumer.AutoOffsetReset = "latest"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "signaldesk"
	c.ClickHouse.User = "default"
	c.ClickHouse.PingTimeout = 5 * time.Second
	c.Redis.PoolSize = 10
	c.Redis.MinIdleConns = 2
	c.Redis.PoolTimeout = 4 * time.Second
	c.Finnhub.WebSocketURL = "wss://ws.finnhub.io"
	c.Finnhub.ReconnectDelay = 5 * time.Second
	c.Finnhub.PingInterval = 30 * time.Second
	c.Finnhub.Throttle = 250 * time.Millisecond
	c.Finnhub.BufferSize = 500
	c.Sentiment.Timeout = 3 * time.Second
	c.Scheduler.Every = 60 * time.Second
	c.Scheduler.Workers = 2
	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.MarketData.Backend {
	case "memory":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for market_data.backend=clickhouse")
		}
	default:
		return fmt.Errorf("market_data.backend must be 'memory' or 'clickhouse', got '%s'", c.MarketData.Backend)
	}
	switch c.MarketData.Source {
	case "", "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.TicksTopic == "" {
			return fmt.Errorf("kafka.brokers and kafka.ticks_topic are required for market_data.source=kafka")
		}
	case "finnhub":
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty")
		}
	default:
		return fmt.Errorf("market_data.source must be 'none', 'kafka' or 'finnhub', got '%s'", c.MarketData.Source)
	}
	if c.Engine.Lookback < 0 {
		return fmt.Errorf("engine.lookback cannot be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Sentiment.Enabled && c.Sentiment.URL == "" {
		return fmt.Errorf("sentiment.url is required when sentiment is enabled")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.Every < time.Second {
			return fmt.Errorf("scheduler.every must be at least 1s")
		}
		for _, w := range c.Scheduler.Watchlist {
			if _, _, err := ParseWatch(w); err != nil {
				return err
			}
		}
		if c.Scheduler.UseQueue && !c.Redis.Enabled {
			return fmt.Errorf("scheduler.use_queue requires redis")
		}
	}
	return nil
}

// ParseWatch splits a watchlist entry "SYMBOL:INTERVAL"; the interval defaults to "5".
func ParseWatch(s string) (symbol, interval string, err error) {
	symbol, interval, _ = strings.Cut(strings.TrimSpace(s), ":")
	if symbol == "" {
		return "", "", fmt.Errorf("invalid watchlist entry %q", s)
	}
	if interval == "" {
		interval = "5"
	}
	return symbol, interval, nil
}
