// internal/transport/http/middleware.go
package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/pkg/httpserver"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

// RequestLoggerMiddleware логирует входящие HTTP-запросы с контекстом.
func RequestLoggerMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := httpserver.WrapWriter(w)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			entry := log.WithContext(r.Context())
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
			}

			switch {
			case status >= 500:
				entry.Error("HTTP request", fields...)
			case status >= 400:
				entry.Warn("HTTP request", fields...)
			default:
				entry.Debug("HTTP request", fields...)
			}
		})
	}
}
