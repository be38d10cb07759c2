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
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Cache struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"cache"`
	Engine struct {
		HealthInterval time.Duration `yaml:"health_interval"`
	} `yaml:"engine"`
	Publisher struct {
		Type       string `yaml:"type"` // websocket or kafka
		BufferSize int    `yaml:"buffer_size"`
		WebSocket  struct {
			URL          string        `yaml:"url"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"websocket"`
		Kafka struct {
			Topic        string        `yaml:"topic"`
			Compression  string        `yaml:"compression"`
			RequiredAcks int           `yaml:"required_acks"`
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"kafka"`
	} `yaml:"publisher"`
	Responder struct {
		Kafka struct {
			Enabled      bool   `yaml:"enabled"`
			GroupID      string `yaml:"group_id"`
			RequestTopic string `yaml:"request_topic"`
			ReplyTopic   string `yaml:"reply_topic"`
			Workers      int    `yaml:"workers"`
		} `yaml:"kafka"`
	} `yaml:"responder"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Archive struct {
		Type       string        `yaml:"type"` // none, clickhouse or redis
		BufferSize int           `yaml:"buffer_size"`
		Timeout    time.Duration `yaml:"timeout"`
		ClickHouse struct {
			Host        string        `yaml:"host"`
			Port        int           `yaml:"port"`
			Database    string        `yaml:"database"`
			Table       string        `yaml:"table"`
			User        string        `yaml:"user"`
			Password    string        `yaml:"password"`
			AsyncInsert bool          `yaml:"async_insert"`
			DialTimeout time.Duration `yaml:"dial_timeout"`
		} `yaml:"clickhouse"`
		Redis struct {
			Addr      string `yaml:"addr"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix"`
			MaxBars   int    `yaml:"max_bars"`
		} `yaml:"redis"`
	} `yaml:"archive"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbol         string        `yaml:"symbol"`
		Timeframe      string        `yaml:"timeframe"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
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

	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Feed.Symbol = v
	}
	if v := os.Getenv("PUBLISHER"); v != "" {
		c.Publisher.Type = v
	}
	if v := os.Getenv("PUBLISHER_WS_URL"); v != "" {
		c.Publisher.WebSocket.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Engine.HealthInterval <= 0 {
		c.Engine.HealthInterval = 5 * time.Second
	}
	if c.Publisher.BufferSize <= 0 {
		c.Publisher.BufferSize = 1024
	}
	if c.Archive.BufferSize <= 0 {
		c.Archive.BufferSize = 4096
	}
	if c.Archive.Timeout <= 0 {
		c.Archive.Timeout = 5 * time.Second
	}
	if c.Archive.Type == "" {
		c.Archive.Type = "none"
	}
	if c.Responder.Kafka.Workers <= 0 {
		c.Responder.Kafka.Workers = 2
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Publisher.Type {
	case "websocket":
		if c.Publisher.WebSocket.URL == "" {
			return fmt.Errorf("publisher.websocket.url is required")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for publisher.type=kafka")
		}
		if c.Publisher.Kafka.Topic == "" {
			return fmt.Errorf("publisher.kafka.topic is required")
		}
	default:
		return fmt.Errorf("publisher.type must be 'websocket' or 'kafka', got '%s'", c.Publisher.Type)
	}
	switch c.Archive.Type {
	case "none":
	case "clickhouse":
		if c.Archive.ClickHouse.Host == "" {
			return fmt.Errorf("archive.clickhouse.host is required")
		}
	case "redis":
		if c.Archive.Redis.Addr == "" {
			return fmt.Errorf("archive.redis.addr is required")
		}
	default:
		return fmt.Errorf("archive.type must be 'none', 'clickhouse' or 'redis', got '%s'", c.Archive.Type)
	}
	if c.Responder.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for responder.kafka")
		}
		if c.Responder.Kafka.RequestTopic == "" || c.Responder.Kafka.ReplyTopic == "" {
			return fmt.Errorf("responder.kafka request_topic and reply_topic are required")
		}
	}
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed.symbol is required")
	}
	if c.Feed.Timeframe == "" {
		return fmt.Errorf("feed.timeframe is required")
	}
	return nil
}
