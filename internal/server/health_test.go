// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvetools/ryzenmon/internal/device"
	"github.com/pvetools/ryzenmon/internal/monitor"
)

type fakeProvider struct {
	metrics *monitor.PowerMetrics
	stats   monitor.Stats
}

func (f *fakeProvider) Latest() *monitor.PowerMetrics {
	return f.metrics
}

func (f *fakeProvider) Stats() monitor.Stats {
	return f.stats
}

func healthResponse(t *testing.T, h *HealthService) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_NoDataYet(t *testing.T) {
	h := NewHealthService(NewAPIServer(), &fakeProvider{}, slog.Default())

	code, body := healthResponse(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "no data", body["status"])
	assert.NotContains(t, body, "last_sample")
}

func TestHealth_WithData(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthService(NewAPIServer(), &fakeProvider{
		metrics: &monitor.PowerMetrics{
			Timestamp:    ts,
			CoreTotal:    12 * device.Watt,
			PackageWatts: 18 * device.Watt,
		},
		stats: monitor.Stats{Cycles: 5, SampleFailures: 1},
	}, slog.Default())

	code, body := healthResponse(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2026-05-01T12:00:00Z", body["last_sample"])
	assert.Equal(t, 12.0, body["core_watts_total"])
	assert.Equal(t, 18.0, body["package_watts"])
	assert.Equal(t, 5.0, body["cycles"])
	assert.Equal(t, 1.0, body["sample_failures"])
}

func TestHealth_RegistersEndpoint(t *testing.T) {
	api := NewAPIServer()
	require.NoError(t, api.Init())

	h := NewHealthService(api, &fakeProvider{}, slog.Default())
	require.NoError(t, h.Init())
	assert.Equal(t, "health", h.Name())

	rec := httptest.NewRecorder()
	api.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
