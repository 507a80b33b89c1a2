// internal/service/service.go

// Package service — фасад над кэшем, подписками и валидатором,
// который вызывает HTTP-транспорт.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/internal/validator"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

// HealthMessage — статический ответ проверки живости.
const HealthMessage = "WebSocket is running. Check /ws/data for updates."

// ErrInvalidSymbol — символ пуст, неизвестен или его не удалось проверить.
var ErrInvalidSymbol = errors.New("invalid stock symbol")

// InvalidSymbolError несёт нормализованный символ.
type InvalidSymbolError struct {
	Symbol string
	Cause  error // ошибка валидатора, если была
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("Invalid stock symbol: %s", e.Symbol)
}

func (e *InvalidSymbolError) Is(target error) bool { return target == ErrInvalidSymbol }
func (e *InvalidSymbolError) Unwrap() error        { return e.Cause }

// Subscriber — управление подписками (реализуется stream.Connector).
type Subscriber interface {
	Subscribe(symbol string) bool
	Unsubscribe(symbol string) bool
	Subscriptions() []string
}

// Reader — чтение кэша (реализуется quote.Cache).
type Reader interface {
	Snapshot() map[string]quote.Quote
}

type Service struct {
	subs  Subscriber
	cache Reader
	valid validator.Validator
	log   *logger.Logger
}

func New(subs Subscriber, cache Reader, v validator.Validator, log *logger.Logger) *Service {
	return &Service{subs: subs, cache: cache, valid: v, log: log.Named("service")}
}

// Subscribe проверяет символ и добавляет его в подписки.
// Повторная подписка не ошибка. Недоступность валидатора трактуется как невалидный символ.
func (s *Service) Subscribe(ctx context.Context, raw string) (string, error) {
	symbol := quote.Normalize(raw)
	if symbol == "" {
		return symbol, &InvalidSymbolError{Symbol: symbol}
	}

	ok, err := s.valid.Validate(ctx, symbol)
	if err != nil {
		s.log.WithContext(ctx).Warn("validator unavailable, rejecting symbol",
			zap.String("symbol", symbol), zap.Error(err))
		return symbol, &InvalidSymbolError{Symbol: symbol, Cause: err}
	}
	if !ok {
		return symbol, &InvalidSymbolError{Symbol: symbol}
	}

	if s.subs.Subscribe(symbol) {
		s.log.WithContext(ctx).Info("subscribed", zap.String("symbol", symbol))
	}
	return symbol, nil
}

// Unsubscribe всегда успешен; кэшированная котировка остаётся.
func (s *Service) Unsubscribe(ctx context.Context, raw string) string {
	symbol := quote.Normalize(raw)
	if s.subs.Unsubscribe(symbol) {
		s.log.WithContext(ctx).Info("unsubscribed", zap.String("symbol", symbol))
	}
	return symbol
}

// ReadCache — снимок кэша.
func (s *Service) ReadCache() map[string]quote.Quote { return s.cache.Snapshot() }

// Subscriptions — отсортированный список подписок.
func (s *Service) Subscriptions() []string { return s.subs.Subscriptions() }

// Health не смотрит на состояние фида.
func (s *Service) Health() string { return HealthMessage }
