// internal/transport/http/routes.go
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YaganovValera/quote-relay/pkg/logger"
)

func Routes(h *Handler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLoggerMiddleware(log))

	r.Get("/", h.Root)
	r.Get("/subscribe/{symbol}", h.Subscribe)
	r.Get("/unsubscribe/{symbol}", h.Unsubscribe)
	r.Get("/ws/data", h.Data)
	r.Get("/subscriptions", h.Subscriptions)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, detailBody{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, detailBody{Detail: "Method Not Allowed"})
	})

	return r
}
