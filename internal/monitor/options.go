// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"time"

	"github.com/pvetools/ryzenmon/internal/device"
	"k8s.io/utils/clock"
)

type Opts struct {
	logger          *slog.Logger
	clock           clock.Clock
	sysfsPath       string
	msrPath         string
	interval        time.Duration
	window          time.Duration
	readConcurrency int
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:          slog.Default(),
		clock:           clock.RealClock{},
		sysfsPath:       device.DefaultSysfsPath,
		msrPath:         device.DefaultMSRPath,
		interval:        10 * time.Second,
		window:          100 * time.Millisecond,
		readConcurrency: 1,
	}
}

// OptionFn is a function that sets one or more options in Opts
type OptionFn func(*Opts)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock used for the sampling window and loop period
func WithClock(c clock.Clock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithSysfsPath sets the sysfs mount point used for topology detection
func WithSysfsPath(path string) OptionFn {
	return func(o *Opts) {
		o.sysfsPath = path
	}
}

// WithMSRPath sets the MSR device path template
func WithMSRPath(template string) OptionFn {
	return func(o *Opts) {
		o.msrPath = template
	}
}

// WithInterval sets the period between sampling cycles
func WithInterval(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = d
	}
}

// WithWindow sets the measurement window between the two read passes
func WithWindow(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.window = d
	}
}

// WithReadConcurrency bounds the number of CPUs read in parallel during
// a pass. 1 keeps the passes strictly sequential; higher values reduce
// the temporal skew between per-core readings at the cost of interleaved
// device access.
func WithReadConcurrency(n int) OptionFn {
	return func(o *Opts) {
		o.readConcurrency = n
	}
}
