// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package prometheus exposes the monitor's latest cycle on /metrics.
package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pvetools/ryzenmon/internal/exporter/prometheus/collector"
	"github.com/pvetools/ryzenmon/internal/monitor"
	"github.com/pvetools/ryzenmon/internal/service"
)

type PowerDataProvider = monitor.PowerDataProvider

// APIRegistry is where the exporter mounts its scrape handler.
type APIRegistry interface {
	Register(endpoint, summary, description string, handler http.Handler) error
}

type Opts struct {
	logger          *slog.Logger
	debugCollectors map[string]bool
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		debugCollectors: map[string]bool{
			"go": true,
		},
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithDebugCollectors sets the runtime debug collectors to enable
func WithDebugCollectors(names []string) OptionFn {
	return func(o *Opts) {
		o.debugCollectors = make(map[string]bool)
		for _, name := range names {
			o.debugCollectors[name] = true
		}
	}
}

// Exporter serves power data in Prometheus exposition format
type Exporter struct {
	logger          *slog.Logger
	pm              PowerDataProvider
	registry        *prom.Registry
	server          APIRegistry
	debugCollectors map[string]bool
}

var _ service.Initializer = (*Exporter)(nil)

// NewExporter creates an Exporter backed by its own registry
func NewExporter(pm PowerDataProvider, s APIRegistry, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		pm:              pm,
		server:          s,
		logger:          opts.logger.With("service", "prometheus"),
		registry:        prom.NewRegistry(),
		debugCollectors: opts.debugCollectors,
	}
}

func collectorForName(name string) (prom.Collector, error) {
	switch name {
	case "go":
		return collectors.NewGoCollector(), nil
	case "process":
		return collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), nil
	default:
		return nil, fmt.Errorf("unknown collector: %s", name)
	}
}

func (e *Exporter) Init() error {
	e.logger.Info("Initializing Prometheus exporter")
	for name := range e.debugCollectors {
		c, err := collectorForName(name)
		if err != nil {
			e.logger.Error("Error creating collector", "collector", name, "error", err)
			return err
		}
		e.logger.Info("Enabling debug collector", "collector", name)
		e.registry.MustRegister(c)
	}

	e.registry.MustRegister(collector.NewBuildInfoCollector())
	e.registry.MustRegister(collector.NewPowerCollector(e.pm, e.logger))

	return e.server.Register("/metrics", "Metrics", "Prometheus metrics",
		promhttp.HandlerFor(
			e.registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          e.registry,
			},
		))
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "prometheus"
}
