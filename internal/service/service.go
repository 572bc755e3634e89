// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package service defines the lifecycle contracts shared by the daemon's
// components and helpers to initialize and run them as a group.
package service

import "context"

// Service is the minimal interface every component implements.
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is implemented by services that need setup before running.
type Initializer interface {
	Service
	Init() error
}

// Runner is implemented by services that run in the background.
type Runner interface {
	Service
	// Run blocks until the service stops or ctx is cancelled
	Run(ctx context.Context) error
}

// Shutdowner is implemented by services that hold resources to release.
type Shutdowner interface {
	Service
	Shutdown() error
}
