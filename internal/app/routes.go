package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"email-dispatcher/internal/middleware"
)

// Routes builds the HTTP router for the inbound and management surface.
func (a *App) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", a.Handlers.HandleHealth).Methods(http.MethodGet)

	r.HandleFunc("/inbound", a.Handlers.HandleInbound).Methods(http.MethodPost)
	r.HandleFunc("/inbound/raw", a.Handlers.HandleInboundRaw).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rules", a.Handlers.HandleListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", a.Handlers.HandleCreateRule).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}", a.Handlers.HandleGetRule).Methods(http.MethodGet)
	api.HandleFunc("/rules/{id}", a.Handlers.HandleUpdateRule).Methods(http.MethodPut)
	api.HandleFunc("/rules/{id}", a.Handlers.HandleDeleteRule).Methods(http.MethodDelete)
	api.HandleFunc("/stats", a.Handlers.HandleStats).Methods(http.MethodGet)

	return r
}
