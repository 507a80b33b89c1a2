// internal/app/relay.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/quote-relay/internal/config"
	"github.com/YaganovValera/quote-relay/internal/metrics"
	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/internal/service"
	"github.com/YaganovValera/quote-relay/internal/sink"
	"github.com/YaganovValera/quote-relay/internal/stream"
	"github.com/YaganovValera/quote-relay/internal/subscription"
	transport "github.com/YaganovValera/quote-relay/internal/transport/http"
	"github.com/YaganovValera/quote-relay/internal/validator"
	"github.com/YaganovValera/quote-relay/pkg/backoff"
	"github.com/YaganovValera/quote-relay/pkg/httpserver"
	"github.com/YaganovValera/quote-relay/pkg/kafka"
	"github.com/YaganovValera/quote-relay/pkg/logger"
	"github.com/YaganovValera/quote-relay/pkg/telemetry"
)

// Run собирает релей и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	backoff.SetServiceLabel(cfg.ServiceName)
	metrics.Register()

	// === Telemetry
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", withTimeout(shutdownTracer), log)

	// === Cache + subscriptions
	cache := quote.NewCache()
	subs := subscription.NewSet(cfg.Feed.DefaultSymbols...)

	// === Kafka sink (опционально)
	var (
		pub      stream.Publisher
		kafkaPub *sink.KafkaPublisher
	)
	if cfg.Kafka.Enabled {
		prod, err := kafka.NewProducer(ctx, cfg.Kafka.Producer, log)
		if err != nil {
			return fmt.Errorf("kafka producer init: %w", err)
		}
		defer shutdownSafe(ctx, "kafka-producer", func(context.Context) error { return prod.Close() }, log)
		if err := prod.Ping(ctx); err != nil {
			return fmt.Errorf("kafka ping: %w", err)
		}

		kafkaPub, err = sink.NewKafkaPublisher(cfg.Kafka, prod, log)
		if err != nil {
			return fmt.Errorf("kafka sink init: %w", err)
		}
		pub = kafkaPub
	}

	// === Stream connector
	conn, err := stream.NewConnector(cfg.Feed, subs, cache, pub, log)
	if err != nil {
		return fmt.Errorf("stream connector init: %w", err)
	}

	// === Symbol validator (+ Redis memo)
	yahoo, err := validator.NewYahoo(cfg.Validator, nil, log)
	if err != nil {
		return fmt.Errorf("validator init: %w", err)
	}
	var v validator.Validator = yahoo
	if cfg.Validator.Cache.Enabled {
		rdb, err := validator.NewRedisClient(ctx, cfg.Validator.Cache)
		if err != nil {
			// валидатор работает и без Redis, клиент переподключится сам
			log.Warn("redis unavailable, validator cache degraded", zap.Error(err))
		}
		defer shutdownSafe(ctx, "redis", func(context.Context) error { return rdb.Close() }, log)
		v = validator.NewCached(v, rdb, cfg.Validator.Cache, log)
	}

	// === Service + HTTP
	svc := service.New(conn, cache, v, log)
	api := transport.Routes(transport.NewHandler(svc, log), log)

	readiness := func() error {
		if !conn.Connected() {
			return errors.New("feed not connected")
		}
		return nil
	}
	httpSrv, err := httpserver.New(cfg.HTTP, readiness, log, api,
		httpserver.RecoverMiddleware(log),
		httpserver.RequestIDMiddleware(),
		httpserver.MetricsMiddleware(),
		httpserver.CORSMiddleware(),
	)
	if err != nil {
		return fmt.Errorf("httpserver init: %w", err)
	}

	log.WithContext(ctx).Info("quote-relay: starting services",
		zap.Strings("symbols", subs.List()),
		zap.Bool("kafka_sink", kafkaPub != nil),
		zap.Bool("validator_cache", cfg.Validator.Cache.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx) })
	if kafkaPub != nil {
		g.Go(func() error { return kafkaPub.Run(gctx) })
	}
	g.Go(func() error { return httpSrv.Start(gctx) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Info("quote-relay stopped by context")
			return nil
		}
		log.WithContext(ctx).Error("quote-relay exited with error", zap.Error(err))
		return err
	}
	return nil
}

// withTimeout отвязывает остановку от уже отменённого ctx приложения.
func withTimeout(fn func(context.Context) error) func(context.Context) error {
	return func(context.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return fn(ctx)
	}
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func(context.Context) error, log *logger.Logger) {
	log.WithContext(ctx).Info(name + ": shutting down")
	if err := fn(ctx); err != nil {
		log.WithContext(ctx).Error(name+" shutdown failed", zap.Error(err))
	} else {
		log.WithContext(ctx).Info(name + ": shutdown complete")
	}
}
