// internal/stream/config.go
package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/YaganovValera/quote-relay/pkg/backoff"
)

// Config задаёт параметры подключения к стримеру котировок.
type Config struct {
	WSURL            string         `mapstructure:"ws_url"`            // "wss://streamer.finance.yahoo.com/?version=2"
	Origin           string         `mapstructure:"origin"`            // заголовок Origin при handshake
	DefaultSymbols   []string       `mapstructure:"default_symbols"`   // подписки при старте
	ReadTimeout      time.Duration  `mapstructure:"read_timeout"`      // ReadDeadline; ping каждые ReadTimeout/3
	WriteTimeout     time.Duration  `mapstructure:"write_timeout"`     // WriteDeadline для команд
	HandshakeTimeout time.Duration  `mapstructure:"handshake_timeout"` //
	DiscardStale     bool           `mapstructure:"discard_stale"`     // отбрасывать котировки старше кэша
	Backoff          backoff.Config `mapstructure:"backoff"`           // реконнект; MaxElapsedTime=0 → бесконечно
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Backoff.InitialInterval <= 0 {
		c.Backoff.InitialInterval = time.Second
	}
}

func (c Config) validate() error {
	var errs []string
	if c.WSURL == "" {
		errs = append(errs, "ws_url is required")
	} else if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		errs = append(errs, "ws_url must use ws:// or wss://")
	}
	if c.ReadTimeout < 3*time.Millisecond {
		errs = append(errs, "read_timeout too small")
	}
	if err := c.Backoff.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("stream: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
