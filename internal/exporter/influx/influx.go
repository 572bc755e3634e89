// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package influx publishes power metrics to an InfluxDB 2.x bucket.
package influx

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/pvetools/ryzenmon/internal/config"
	"github.com/pvetools/ryzenmon/internal/monitor"
	"github.com/pvetools/ryzenmon/internal/service"
)

// measurement is the single measurement all points are written under.
const measurement = "power"

// writeAPI is the subset of the blocking write client the publisher uses.
type writeAPI interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Opts struct {
	logger *slog.Logger
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Publisher
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// Publisher writes each cycle's PowerMetrics to InfluxDB as two points:
// one carrying the summed core power and one carrying the package power,
// both tagged with the deployment's host and service identifiers.
type Publisher struct {
	logger *slog.Logger
	cfg    config.Influx

	client influxdb2.Client
	write  writeAPI
}

var (
	_ service.Initializer = (*Publisher)(nil)
	_ service.Shutdowner  = (*Publisher)(nil)
	_ monitor.Publisher   = (*Publisher)(nil)
)

// NewPublisher creates a Publisher for the given sink configuration.
// The connection is established in Init.
func NewPublisher(cfg config.Influx, applyOpts ...OptionFn) *Publisher {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Publisher{
		logger: opts.logger.With("service", "influx"),
		cfg:    cfg,
	}
}

func (p *Publisher) Name() string {
	return "influx"
}

func (p *Publisher) Init() error {
	p.logger.Info("Initializing InfluxDB publisher",
		"host", p.cfg.Host, "org", p.cfg.Org, "bucket", p.cfg.Bucket)

	p.client = influxdb2.NewClient(p.cfg.Host, p.cfg.Token)
	p.write = p.client.WriteAPIBlocking(p.cfg.Org, p.cfg.Bucket)
	return nil
}

// Publish writes the cycle's points. Errors are returned to the caller;
// the monitor counts and logs them without stopping the sampling loop.
func (p *Publisher) Publish(ctx context.Context, metrics *monitor.PowerMetrics) error {
	if metrics == nil {
		return nil
	}

	if err := p.write.WritePoint(ctx, p.points(metrics)...); err != nil {
		return fmt.Errorf("failed to write points to %s: %w", p.cfg.Host, err)
	}
	return nil
}

func (p *Publisher) points(metrics *monitor.PowerMetrics) []*write.Point {
	tags := map[string]string{
		"host":    p.cfg.HostTag,
		"service": p.cfg.ServiceTag,
	}

	return []*write.Point{
		influxdb2.NewPoint(measurement, tags,
			map[string]any{"core-power": metrics.CoreTotal.Watts()},
			metrics.Timestamp),
		influxdb2.NewPoint(measurement, tags,
			map[string]any{"package-power": metrics.PackageWatts.Watts()},
			metrics.Timestamp),
	}
}

func (p *Publisher) Shutdown() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
