package main

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/gateway"
)

func setupServer(wsHandler *gateway.WebSocketHandler, cfg *Config) *http.Server {
	mux := http.NewServeMux()

	wsHandler.RegisterRoutes(mux)
	setupHealthCheck(mux)

	handler := gateway.NewCORSHandler(mux, cfg.Gateway.AllowedOrigins)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: handler,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
