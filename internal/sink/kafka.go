// internal/sink/kafka.go

// Package sink публикует принятые котировки во внешние системы.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/metrics"
	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/pkg/kafka"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

// Config — секция kafka конфигурации релея.
type Config struct {
	Enabled    bool         `mapstructure:"enabled"`
	Topic      string       `mapstructure:"topic"`
	BufferSize int          `mapstructure:"buffer_size"`
	Producer   kafka.Config `mapstructure:"producer"`
}

func (c *Config) applyDefaults() {
	if c.Topic == "" {
		c.Topic = "quotes.raw"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
}

// Validate проверяет секцию только если синк включён.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Topic == "" {
		return fmt.Errorf("sink: kafka topic is required")
	}
	if len(c.Producer.Brokers) == 0 {
		return fmt.Errorf("sink: kafka brokers are required")
	}
	return nil
}

// KafkaPublisher — асинхронный публикатор котировок в Kafka.
// Publish кладёт котировку в ограниченный буфер и не блокирует;
// при переполнении котировка отбрасывается и считается.
type KafkaPublisher struct {
	prod  kafka.Producer
	topic string
	buf   chan quote.Quote
	log   *logger.Logger
}

func NewKafkaPublisher(cfg Config, prod kafka.Producer, log *logger.Logger) (*KafkaPublisher, error) {
	cfg.applyDefaults()
	if prod == nil {
		return nil, fmt.Errorf("sink: producer is required")
	}
	return &KafkaPublisher{
		prod:  prod,
		topic: cfg.Topic,
		buf:   make(chan quote.Quote, cfg.BufferSize),
		log:   log.Named("kafka-sink"),
	}, nil
}

// Publish реализует stream.Publisher.
func (p *KafkaPublisher) Publish(_ context.Context, q quote.Quote) {
	select {
	case p.buf <- q:
	default:
		metrics.SinkDrops.Inc()
		p.log.Debug("sink buffer full, quote dropped", zap.String("symbol", q.ID))
	}
}

// Run отправляет котировки из буфера до отмены ctx.
// Ошибки публикации логируются, котировка теряется.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	p.log.Info("kafka sink: started", zap.String("topic", p.topic))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("kafka sink: context cancelled, exiting", zap.Int("pending", len(p.buf)))
			return ctx.Err()
		case q := <-p.buf:
			p.send(ctx, q)
		}
	}
}

func (p *KafkaPublisher) send(ctx context.Context, q quote.Quote) {
	value, err := json.Marshal(q)
	if err != nil {
		p.log.Error("kafka sink: marshal failed", zap.String("symbol", q.ID), zap.Error(err))
		return
	}
	if err := p.prod.Publish(ctx, p.topic, []byte(q.ID), value); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("kafka sink: publish failed", zap.String("symbol", q.ID), zap.Error(err))
	}
}
