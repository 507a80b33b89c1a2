// internal/config/config.go
package config

import (
	"fmt"

	"github.com/YaganovValera/quote-relay/internal/sink"
	"github.com/YaganovValera/quote-relay/internal/stream"
	"github.com/YaganovValera/quote-relay/internal/validator"
	"github.com/YaganovValera/quote-relay/pkg/configloader"
	"github.com/YaganovValera/quote-relay/pkg/httpserver"
	"github.com/YaganovValera/quote-relay/pkg/logger"
	"github.com/YaganovValera/quote-relay/pkg/telemetry"
)

// Config описывает параметры запуска quote-relay.
type Config struct {
	ServiceName    string            `mapstructure:"service_name"`
	ServiceVersion string            `mapstructure:"service_version"`
	Feed           stream.Config     `mapstructure:"feed"`
	Validator      validator.Config  `mapstructure:"validator"`
	Kafka          sink.Config       `mapstructure:"kafka"`
	Telemetry      telemetry.Config  `mapstructure:"telemetry"`
	Logging        logger.Config     `mapstructure:"logging"`
	HTTP           httpserver.Config `mapstructure:"http"`
}

// EnvPrefix — префикс переменных окружения, например QUOTE_RELAY_FEED_WS_URL.
const EnvPrefix = "QUOTE_RELAY"

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"service_name":    "quote-relay",
		"service_version": "v1.0.0",

		"feed.ws_url":                       "wss://streamer.finance.yahoo.com/?version=2",
		"feed.origin":                       "https://finance.yahoo.com",
		"feed.default_symbols":              []string{"AAPL"},
		"feed.read_timeout":                 "30s",
		"feed.write_timeout":                "5s",
		"feed.handshake_timeout":            "10s",
		"feed.discard_stale":                true,
		"feed.backoff.initial_interval":     "1s",
		"feed.backoff.max_interval":         "30s",
		"feed.backoff.max_elapsed_time":     "0s",
		"feed.backoff.multiplier":           2.0,
		"feed.backoff.randomization_factor": 0.5,

		"validator.base_url":                 "https://query1.finance.yahoo.com",
		"validator.timeout":                  "5s",
		"validator.user_agent":               "Mozilla/5.0 (compatible; quote-relay/1.0)",
		"validator.backoff.initial_interval": "200ms",
		"validator.backoff.max_interval":     "2s",
		"validator.backoff.max_elapsed_time": "10s",
		"validator.cache.enabled":            false,
		"validator.cache.addr":               "localhost:6379",
		"validator.cache.password":           "",
		"validator.cache.db":                 0,
		"validator.cache.key_prefix":         "quote-relay:symbol:",
		"validator.cache.ttl":                "24h",
		"validator.cache.negative_ttl":       "10m",

		"kafka.enabled":                           false,
		"kafka.topic":                             "quotes.raw",
		"kafka.buffer_size":                       1024,
		"kafka.producer.brokers":                  []string{"localhost:9092"},
		"kafka.producer.acks":                     "all",
		"kafka.producer.timeout":                  "5s",
		"kafka.producer.compression":              "none",
		"kafka.producer.backoff.initial_interval": "500ms",
		"kafka.producer.backoff.max_interval":     "5s",
		"kafka.producer.backoff.max_elapsed_time": "30s",

		"telemetry.enabled":          false,
		"telemetry.endpoint":         "otel-collector:4317",
		"telemetry.insecure":         true,
		"telemetry.reconnect_period": "5s",
		"telemetry.timeout":          "5s",
		"telemetry.sampler_ratio":    1.0,

		"logging.level":    "info",
		"logging.dev_mode": false,

		"http.addr":             ":8000",
		"http.read_timeout":     "10s",
		"http.write_timeout":    "15s",
		"http.idle_timeout":     "60s",
		"http.shutdown_timeout": "5s",
		"http.metrics_path":     "/metrics",
		"http.healthz_path":     "/healthz",
		"http.readyz_path":      "/readyz",
	}
}

// Load читает конфигурацию. Приоритет по возрастанию: defaults, YAML-файл, ENV/.env.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := configloader.Load(configloader.Options{
		Path:      path,
		EnvPrefix: EnvPrefix,
		EnvFile:   ".env",
		Defaults:  defaults(),
	}, &cfg); err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	return &cfg, nil
}

// Validate проверяет то, без чего сервис не стартует.
// Детальная проверка секций выполняется их конструкторами.
func (c *Config) Validate() error {
	if c.ServiceName == "" || c.ServiceVersion == "" {
		return fmt.Errorf("service name/version is required")
	}
	if c.Feed.WSURL == "" {
		return fmt.Errorf("feed.ws_url is required")
	}
	if c.Validator.Cache.Enabled && c.Validator.Cache.Addr == "" {
		return fmt.Errorf("validator.cache.addr is required when cache is enabled")
	}
	if err := c.Feed.Backoff.Validate(); err != nil {
		return fmt.Errorf("feed.backoff invalid: %w", err)
	}
	if err := c.Validator.Backoff.Validate(); err != nil {
		return fmt.Errorf("validator.backoff invalid: %w", err)
	}
	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka config invalid: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config invalid: %w", err)
	}
	return nil
}
