// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pvetools/ryzenmon/internal/device"
	"github.com/pvetools/ryzenmon/internal/service"
	"k8s.io/utils/clock"
)

// PowerDataProvider exposes the most recent cycle's result.
type PowerDataProvider interface {
	// Latest returns the last completed cycle's metrics, nil before the
	// first successful cycle
	Latest() *PowerMetrics

	// Stats returns loop counters since startup
	Stats() Stats
}

// Service defines the interface of the power monitoring service
type Service interface {
	service.Service
	PowerDataProvider
}

// EnergySampler produces one cycle's metrics; *Sampler implements it.
type EnergySampler interface {
	Sample(ctx context.Context, topo *device.Topology) (*PowerMetrics, error)
}

// Publisher ships one cycle's metrics to a telemetry sink.
type Publisher interface {
	service.Service
	Publish(ctx context.Context, metrics *PowerMetrics) error
}

// PowerMonitor drives the sampling loop: topology detection once at
// Init, then Sample -> Publish on a fixed period until the context is
// cancelled. Cycle failures are logged and the loop carries on; there
// is no retry, no backoff and no queueing.
type PowerMonitor struct {
	logger    *slog.Logger
	sampler   EnergySampler
	publisher Publisher

	clock     clock.Clock
	sysfsPath string
	interval  time.Duration

	topo   *device.Topology
	latest atomic.Pointer[PowerMetrics]

	cycles          atomic.Uint64
	sampleFailures  atomic.Uint64
	publishFailures atomic.Uint64
}

var _ Service = (*PowerMonitor)(nil)

// NewPowerMonitor creates a PowerMonitor. publisher may be nil, in which
// case cycles are sampled but only exposed through Latest.
func NewPowerMonitor(sampler EnergySampler, publisher Publisher, applyOpts ...OptionFn) *PowerMonitor {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &PowerMonitor{
		logger:    opts.logger.With("service", "monitor"),
		sampler:   sampler,
		publisher: publisher,
		clock:     opts.clock,
		sysfsPath: opts.sysfsPath,
		interval:  opts.interval,
	}
}

func (pm *PowerMonitor) Name() string {
	return "monitor"
}

// Init detects the CPU topology. Detection happens exactly once; the
// result is immutable for the process lifetime.
func (pm *PowerMonitor) Init() error {
	pm.topo = device.DetectTopology(pm.sysfsPath, pm.logger)
	return nil
}

// Run executes the sampling loop until ctx is cancelled. When no usable
// CPUs were detected it returns nil immediately so that the process can
// wind down cleanly instead of spinning on empty cycles.
func (pm *PowerMonitor) Run(ctx context.Context) error {
	if pm.topo == nil || pm.topo.CPUs() == 0 {
		pm.logger.Error("No usable CPUs detected, nothing to sample")
		return nil
	}

	pm.logger.Info("Monitor is running",
		"interval", pm.interval,
		"cpus", pm.topo.CPUs(),
		"sampled_cores", len(pm.topo.SampleCPUs()))

	for {
		pm.runCycle(ctx)

		select {
		case <-pm.clock.After(pm.interval):
		case <-ctx.Done():
			pm.logger.Info("Monitor has terminated")
			return nil
		}
	}
}

func (pm *PowerMonitor) Latest() *PowerMetrics {
	return pm.latest.Load()
}

func (pm *PowerMonitor) Stats() Stats {
	return Stats{
		Cycles:          pm.cycles.Load(),
		SampleFailures:  pm.sampleFailures.Load(),
		PublishFailures: pm.publishFailures.Load(),
	}
}

// runCycle performs one Sample -> Publish iteration. A sampling failure
// aborts the cycle with no partial metrics; a publish failure drops the
// metrics but leaves them visible through Latest.
func (pm *PowerMonitor) runCycle(ctx context.Context) {
	pm.cycles.Add(1)

	metrics, err := pm.sampler.Sample(ctx, pm.topo)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if errors.Is(err, ErrNoCPUs) {
			pm.logger.Debug("Empty sample set, skipping cycle")
			return
		}
		pm.sampleFailures.Add(1)
		pm.logger.Error("Sampling cycle failed", "error", err)
		return
	}

	pm.latest.Store(metrics)
	pm.logger.Debug("Computed power",
		"core_watts", metrics.CoreTotal.Watts(),
		"package_watts", metrics.PackageWatts.Watts(),
		"core_energy", metrics.CoreEnergy.String(),
		"cpus", len(metrics.CPUs))

	if pm.publisher == nil {
		return
	}
	if err := pm.publisher.Publish(ctx, metrics); err != nil {
		pm.publishFailures.Add(1)
		pm.logger.Error("Publishing metrics failed", "publisher", pm.publisher.Name(), "error", err)
	}
}
