// internal/transport/http/handler.go

// Package http — HTTP-поверхность релея: подписки и чтение кэша котировок.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/quote"
	"github.com/YaganovValera/quote-relay/internal/service"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

// Service — то, что нужно хендлерам от фасада.
type Service interface {
	Subscribe(ctx context.Context, symbol string) (string, error)
	Unsubscribe(ctx context.Context, symbol string) string
	ReadCache() map[string]quote.Quote
	Subscriptions() []string
	Health() string
}

type Handler struct {
	svc Service
	log *logger.Logger
}

func NewHandler(svc Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.Named("http-api")}
}

type dataResponse struct {
	Data map[string]quote.Quote `json:"data"`
}

type subscriptionsResponse struct {
	Symbols []string `json:"symbols"`
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	message(w, h.svc.Health())
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.svc.Subscribe(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSymbol) {
			badRequest(w, fmt.Sprintf("Invalid stock symbol: %s", symbol))
			return
		}
		h.log.WithContext(r.Context()).Error("subscribe failed", zap.String("symbol", symbol), zap.Error(err))
		internalError(w, "subscribe failed")
		return
	}
	message(w, "Subscribed to "+symbol)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	symbol := h.svc.Unsubscribe(r.Context(), chi.URLParam(r, "symbol"))
	message(w, "Unsubscribed from "+symbol)
}

func (h *Handler) Data(w http.ResponseWriter, _ *http.Request) {
	ok(w, dataResponse{Data: h.svc.ReadCache()})
}

func (h *Handler) Subscriptions(w http.ResponseWriter, _ *http.Request) {
	symbols := h.svc.Subscriptions()
	if symbols == nil {
		symbols = []string{}
	}
	ok(w, subscriptionsResponse{Symbols: symbols})
}
