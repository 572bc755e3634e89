// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pvetools/ryzenmon/internal/monitor"
)

// HealthService serves /health with the state of the sampling loop:
// whether a cycle has completed yet, the last cycle's timestamp and the
// failure counters.
type HealthService struct {
	logger    *slog.Logger
	apiServer APIService
	pm        monitor.PowerDataProvider
}

func NewHealthService(apiServer APIService, pm monitor.PowerDataProvider, logger *slog.Logger) *HealthService {
	return &HealthService{
		logger:    logger.With("service", "health"),
		apiServer: apiServer,
		pm:        pm,
	}
}

func (h *HealthService) Name() string {
	return "health"
}

func (h *HealthService) Init() error {
	h.logger.Info("Initializing health endpoint")
	if err := h.apiServer.Register("/health", "Health", "Sampling loop health", h.handler()); err != nil {
		return fmt.Errorf("failed to register health endpoint: %w", err)
	}
	return nil
}

func (h *HealthService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		stats := h.pm.Stats()
		response := map[string]any{
			"status":           "ok",
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
			"cycles":           stats.Cycles,
			"sample_failures":  stats.SampleFailures,
			"publish_failures": stats.PublishFailures,
		}

		latest := h.pm.Latest()
		if latest == nil {
			// no cycle yet: still starting up or sampling keeps failing
			w.WriteHeader(http.StatusServiceUnavailable)
			response["status"] = "no data"
		} else {
			w.WriteHeader(http.StatusOK)
			response["last_sample"] = latest.Timestamp.UTC().Format(time.RFC3339)
			response["core_watts_total"] = latest.CoreTotal.Watts()
			response["package_watts"] = latest.PackageWatts.Watts()
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode health response", "error", err)
		}
	})
}
