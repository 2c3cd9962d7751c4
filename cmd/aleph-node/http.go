// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinklabs-io/goaleph/baseprotocol"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type slotsResponse struct {
	Limits   baseprotocol.SlotLimits   `json:"limits"`
	Counters baseprotocol.SlotCounters `json:"counters"`
}

func (n *node) serveHttp(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}),
	)
	mux.HandleFunc("/peers", func(w http.ResponseWriter, r *http.Request) {
		peers, err := n.service.PeersInfo(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJson(w, peers)
	})
	mux.HandleFunc("/slots", func(w http.ResponseWriter, r *http.Request) {
		counters, err := n.service.Counters(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJson(
			w,
			slotsResponse{
				Limits:   n.service.Limits(),
				Counters: counters,
			},
		)
	})
	server := &http.Server{
		Addr:              n.cfg.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownServer(shutdownCtx, server, n.logger)
	}()
	n.logger.Info(
		"serving metrics",
		"address", n.cfg.MetricsAddress,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownServer stops the server gracefully. Failing to do so only matters for
// diagnostics, as the process is going away
func shutdownServer(ctx context.Context, server *http.Server, logger *slog.Logger) {
	if err := server.Shutdown(ctx); err != nil {
		logger.Debug(
			"failed to shut down HTTP server",
			"error", err,
		)
	}
}

func writeJson(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
