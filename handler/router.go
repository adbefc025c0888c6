package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

// Router serves the same endpoints as Handle for the standalone server.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cors.allowedOrigins(),
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		ExposedHeaders: corsExposed,
		MaxAge:         corsMaxAge,
	}))

	r.Post("/chat", h.handleChat)
	r.Get("/health", h.handleHealth)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, chatResponse{Error: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, chatResponse{Error: "METHOD_NOT_ALLOWED"})
	})
	return r
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get(headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set(headerCorrelationID, correlationID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		body = nil
	}
	res := h.serveChat(r.Context(), correlationID, body, r.Header.Get(headerSessionID))
	if res.sessionID != "" {
		w.Header().Set(headerSessionID, res.sessionID)
	}
	writeJSON(w, res.status, res.body)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	res := health()
	writeJSON(w, res.status, res.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
