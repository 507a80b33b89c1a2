// internal/transport/http/response.go
package http

import (
	"encoding/json"
	"net/http"
)

type messageBody struct {
	Message string `json:"message"`
}

type detailBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, v interface{}) { writeJSON(w, http.StatusOK, v) }

func message(w http.ResponseWriter, msg string) { ok(w, messageBody{Message: msg}) }

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, detailBody{Detail: detail})
}

func internalError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusInternalServerError, detailBody{Detail: detail})
}
