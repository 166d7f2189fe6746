package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// debugServer is a thin read-only HTTP surface alongside the
// broker-addressed RPC protocol: a liveness probe and a head-info
// snapshot for operators and deployment tooling, not a substitute for
// the RPC protocol.
func debugServer(addr string, n *node) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/head", func(w http.ResponseWriter, r *http.Request) {
		head := n.controller.GetHeadInfo()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Height    uint64 `json:"height"`
			ID        string `json:"id"`
			Previous  string `json:"previous"`
			Timestamp uint64 `json:"timestamp"`
		}{
			Height:    head.Height,
			ID:        head.ID.String(),
			Previous:  head.Previous.String(),
			Timestamp: head.Timestamp,
		})
	})

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
