// internal/stream/connector.go

// Package stream держит соединение со стримером котировок: подписки,
// переподключение и запись входящих котировок в кэш.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/metrics"
	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/internal/subscription"
	"github.com/YaganovValera/quote-relay/pkg/backoff"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

var tracer = otel.Tracer("stream-connector")

// Store — то, во что коннектор пишет котировки. Реализуется *quote.Cache.
type Store interface {
	Put(q quote.Quote)
	PutIfNewer(q quote.Quote) bool
	Len() int
}

// Publisher получает каждую принятую котировку. Не должен блокировать.
type Publisher interface {
	Publish(ctx context.Context, q quote.Quote)
}

// feedCommand — JSON-команда стримеру: {"subscribe":[...]} или {"unsubscribe":[...]}.
type feedCommand struct {
	Subscribe   []string `json:"subscribe,omitempty"`
	Unsubscribe []string `json:"unsubscribe,omitempty"`
}

// Connector — единственный владелец websocket-соединения и единственный писатель кэша.
// Subscribe/Unsubscribe меняют множество подписок и будят владельца; тот сверяет
// множество с тем, что уже отправлено в текущее соединение, и досылает разницу.
type Connector struct {
	cfg    Config
	subs   *subscription.Set
	store  Store
	pub    Publisher
	dialer *websocket.Dialer
	log    *logger.Logger

	wake      chan struct{}
	connected atomic.Bool
}

// NewConnector создаёт коннектор. pub может быть nil.
func NewConnector(cfg Config, subs *subscription.Set, store Store, pub Publisher, log *logger.Logger) (*Connector, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if subs == nil || store == nil {
		return nil, errors.New("stream: subscription set and store are required")
	}
	return &Connector{
		cfg:    cfg,
		subs:   subs,
		store:  store,
		pub:    pub,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		log:    log.Named("stream"),
		wake:   make(chan struct{}, 1),
	}, nil
}

// Subscribe добавляет символ. false — символ уже был в множестве, команда не нужна.
func (c *Connector) Subscribe(symbol string) bool {
	if !c.subs.Add(symbol) {
		return false
	}
	metrics.Subscriptions.Set(float64(c.subs.Len()))
	c.notify()
	return true
}

// Unsubscribe убирает символ. Кэш не трогается.
func (c *Connector) Unsubscribe(symbol string) bool {
	if !c.subs.Remove(symbol) {
		return false
	}
	metrics.Subscriptions.Set(float64(c.subs.Len()))
	c.notify()
	return true
}

// Subscriptions — текущее множество подписок.
func (c *Connector) Subscriptions() []string { return c.subs.List() }

// Connected сообщает, установлено ли соединение со стримером.
func (c *Connector) Connected() bool { return c.connected.Load() }

// notify не блокирует: сигналы сливаются, владелец всё равно сверяет полное множество.
func (c *Connector) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------
// Run loop
// -----------------------------------------------------------------------------

// Run держит соединение до отмены ctx, переподключаясь с back-off.
func (c *Connector) Run(ctx context.Context) error {
	metrics.Subscriptions.Set(float64(c.subs.Len()))
	c.log.Info("stream: starting", zap.String("url", c.cfg.WSURL), zap.Strings("symbols", c.subs.List()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("stream: failed to connect after retries", zap.Error(err))
			// пауза перед новой серией попыток
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoff.InitialInterval):
			}
			continue
		}

		err = c.serve(ctx, conn)
		c.setConnected(false)
		_ = conn.Close()

		if ctx.Err() != nil {
			c.log.Info("stream: context cancelled, exiting")
			return ctx.Err()
		}
		wsDisconnects.WithLabelValues(disconnectCause(err)).Inc()
		c.log.Warn("stream: connection lost, reconnecting", zap.Error(err))
	}
}

func (c *Connector) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, span := tracer.Start(ctx, "Dial", trace.WithAttributes(attribute.String("url", c.cfg.WSURL)))
	defer span.End()

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}

	var conn *websocket.Conn
	err := backoff.Execute(ctx, c.cfg.Backoff, c.log, "ws-dial", func(ctx context.Context) error {
		cn, resp, err := c.dialer.DialContext(ctx, c.cfg.WSURL, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			wsConnects.WithLabelValues("error").Inc()
			return err
		}
		conn = cn
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	wsConnects.WithLabelValues("success").Inc()
	c.log.Info("stream: connected", zap.String("url", c.cfg.WSURL))
	return conn, nil
}

// serve обслуживает одно соединение. Возвращает причину его потери.
func (c *Connector) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	// frames без буфера: ошибка чтения приходит только после того,
	// как все предыдущие кадры забраны владельцем
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
			select {
			case frames <- data:
			case <-done:
				return
			}
		}
	}()

	// всё, что отправлено стримеру в этом соединении
	onWire := make(map[string]struct{})
	if err := c.syncSubscriptions(conn, onWire); err != nil {
		return err
	}
	c.setConnected(true)

	ping := time.NewTicker(c.cfg.ReadTimeout / 3)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()

		case <-c.wake:
			if err := c.syncSubscriptions(conn, onWire); err != nil {
				return err
			}

		case data := <-frames:
			c.handleFrame(ctx, data)

		case err := <-readErr:
			return fmt.Errorf("stream: read: %w", err)

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("stream: ping: %w", err)
			}
		}
	}
}

// syncSubscriptions досылает подписки/отписки так, чтобы onWire совпал с множеством.
func (c *Connector) syncSubscriptions(conn *websocket.Conn, onWire map[string]struct{}) error {
	want := c.subs.List()
	wantSet := make(map[string]struct{}, len(want))
	var add, del []string
	for _, s := range want {
		wantSet[s] = struct{}{}
		if _, ok := onWire[s]; !ok {
			add = append(add, s)
		}
	}
	for s := range onWire {
		if _, ok := wantSet[s]; !ok {
			del = append(del, s)
		}
	}
	sort.Strings(del)

	if len(add) > 0 {
		if err := c.writeCommand(conn, feedCommand{Subscribe: add}); err != nil {
			return err
		}
		for _, s := range add {
			onWire[s] = struct{}{}
		}
		wsCommands.WithLabelValues("subscribe").Inc()
		c.log.Info("stream: subscribed", zap.Strings("symbols", add))
	}
	if len(del) > 0 {
		if err := c.writeCommand(conn, feedCommand{Unsubscribe: del}); err != nil {
			return err
		}
		for _, s := range del {
			delete(onWire, s)
		}
		wsCommands.WithLabelValues("unsubscribe").Inc()
		c.log.Info("stream: unsubscribed", zap.Strings("symbols", del))
	}
	return nil
}

func (c *Connector) writeCommand(conn *websocket.Conn, cmd feedCommand) error {
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("stream: write command: %w", err)
	}
	return nil
}

// handleFrame декодирует кадр и кладёт котировку в кэш.
// Некорректные кадры логируются, считаются и пропускаются.
func (c *Connector) handleFrame(ctx context.Context, data []byte) {
	wsFrames.Inc()
	ctx, span := tracer.Start(ctx, "HandleFrame", trace.WithAttributes(attribute.Int("size", len(data))))
	defer span.End()

	q, err := DecodeFrame(data)
	if err != nil {
		span.RecordError(err)
		metrics.DecodeErrors.WithLabelValues(reasonOf(err)).Inc()
		c.log.Warn("stream: malformed frame dropped", zap.Error(err), zap.Int("size", len(data)))
		return
	}
	q.ID = quote.Normalize(q.ID)
	span.SetAttributes(attribute.String("symbol", q.ID))

	if c.cfg.DiscardStale {
		if !c.store.PutIfNewer(q) {
			metrics.StaleDrops.Inc()
			c.log.Debug("stream: stale quote dropped", zap.String("symbol", q.ID), zap.Int64("time", q.Time))
			return
		}
	} else {
		c.store.Put(q)
	}
	metrics.QuotesApplied.Inc()
	metrics.CachedSymbols.Set(float64(c.store.Len()))

	if c.pub != nil {
		c.pub.Publish(ctx, q)
	}
}

func (c *Connector) setConnected(v bool) {
	c.connected.Store(v)
	if v {
		wsConnected.Set(1)
	} else {
		wsConnected.Set(0)
	}
}

func disconnectCause(err error) string {
	var (
		ce *websocket.CloseError
		ne net.Error
	)
	switch {
	case errors.As(err, &ce):
		return "close"
	case errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	default:
		return "error"
	}
}
