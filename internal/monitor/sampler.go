// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pvetools/ryzenmon/internal/device"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// ErrNoCPUs is returned when the sample set is empty.
var ErrNoCPUs = errors.New("no CPUs to sample")

// registerDevice is the per-CPU register access the sampler needs;
// *device.MSR implements it.
type registerDevice interface {
	device.RegisterReader
	CPU() int
	Close() error
}

type openMSRFn func(pathTemplate string, cpu int) (registerDevice, error)

// Sampler takes two timed energy readings per cycle and converts the
// deltas to power. Device handles are scoped to a single Sample call.
type Sampler struct {
	logger          *slog.Logger
	clock           clock.Clock
	msrPath         string
	window          time.Duration
	readConcurrency int

	openMSR openMSRFn
}

// passReadings holds one read pass of the raw energy counters, indexed
// like the sampled CPU set.
type passReadings struct {
	core []uint64
	pkg  []uint64
}

// NewSampler creates a Sampler.
func NewSampler(applyOpts ...OptionFn) *Sampler {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	concurrency := opts.readConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Sampler{
		logger:          opts.logger.With("service", "sampler"),
		clock:           opts.clock,
		msrPath:         opts.msrPath,
		window:          opts.window,
		readConcurrency: concurrency,
		openMSR: func(pathTemplate string, cpu int) (registerDevice, error) {
			return device.OpenMSR(pathTemplate, cpu)
		},
	}
}

// Sample measures the power drawn over one window. It opens a fresh MSR
// handle per sampled CPU, reads all energy counters twice with the
// window in between and converts the wrap-corrected deltas to watts.
// Any open or read failure aborts the whole call; no partial metrics
// are ever returned.
func (s *Sampler) Sample(ctx context.Context, topo *device.Topology) (*PowerMetrics, error) {
	cpus := topo.SampleCPUs()
	if len(cpus) == 0 {
		return nil, ErrNoCPUs
	}

	devs := make([]registerDevice, len(cpus))
	defer func() {
		for _, dev := range devs {
			if dev == nil {
				continue
			}
			if err := dev.Close(); err != nil {
				s.logger.Warn("Failed to close MSR device", "cpu", dev.CPU(), "error", err)
			}
		}
	}()

	for i, cpu := range cpus {
		dev, err := s.openMSR(s.msrPath, cpu)
		if err != nil {
			return nil, err
		}
		devs[i] = dev
	}

	// re-read every cycle; expected constant across cycles and assumed
	// identical across packages
	unit, err := device.ReadEnergyUnit(devs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode energy unit on cpu %d: %w", devs[0].CPU(), err)
	}

	before, err := s.readPass(devs)
	if err != nil {
		return nil, err
	}

	select {
	case <-s.clock.After(s.window):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	after, err := s.readPass(devs)
	if err != nil {
		return nil, err
	}

	return s.computeMetrics(topo, cpus, unit, before, after), nil
}

// readPass reads the core and package energy counters of every sampled
// CPU once. With readConcurrency 1 the reads happen strictly in order;
// larger limits shrink the skew between per-core readings.
func (s *Sampler) readPass(devs []registerDevice) (*passReadings, error) {
	pass := &passReadings{
		core: make([]uint64, len(devs)),
		pkg:  make([]uint64, len(devs)),
	}

	g := new(errgroup.Group)
	g.SetLimit(s.readConcurrency)
	for i, dev := range devs {
		g.Go(func() error {
			core, err := dev.Read(device.MSRCoreEnergy)
			if err != nil {
				return err
			}
			pkg, err := dev.Read(device.MSRPackageEnergy)
			if err != nil {
				return err
			}
			pass.core[i], pass.pkg[i] = core, pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pass, nil
}

// computeMetrics converts raw counter deltas to power. unit is in
// microjoules per count.
func (s *Sampler) computeMetrics(topo *device.Topology, cpus []int, unit float64, before, after *passReadings) *PowerMetrics {
	secs := s.window.Seconds()
	metrics := &PowerMetrics{
		Timestamp:  s.clock.Now(),
		CPUs:       cpus,
		CoreWatts:  make([]device.Power, len(cpus)),
		PerPackage: make(map[int]device.Power),
	}

	var coreMicroJoules float64
	for i := range cpus {
		counts := device.EnergyCounterDelta(before.core[i], after.core[i])
		microJoules := float64(counts) * unit
		coreMicroJoules += microJoules

		watts := device.Power(microJoules / secs)
		metrics.CoreWatts[i] = watts
		metrics.CoreTotal += watts
	}
	metrics.CoreEnergy = device.Energy(coreMicroJoules)

	index := make(map[int]int, len(cpus))
	for i, cpu := range cpus {
		index[cpu] = i
	}

	// package energy was read on every CPU but only the designated CPU
	// of each package contributes to the result
	for pkg, cpu := range topo.PackageFirstCPU() {
		i, ok := index[cpu]
		if !ok {
			continue
		}
		counts := device.EnergyCounterDelta(before.pkg[i], after.pkg[i])
		watts := device.Power(float64(counts) * unit / secs)
		metrics.PerPackage[pkg] = watts
		metrics.PackageWatts += watts
	}

	return metrics
}
