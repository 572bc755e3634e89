// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "context"

type mockService struct {
	name string
}

func (m *mockService) Name() string {
	return m.name
}

// mockInitializer implements Initializer
type mockInitializer struct {
	mockService
	initFn    func() error
	initCount int
}

func (m *mockInitializer) Init() error {
	m.initCount++
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

// mockInitShutdowner implements both Initializer and Shutdowner
type mockInitShutdowner struct {
	mockInitializer
	shutdownCount int
}

func (m *mockInitShutdowner) Shutdown() error {
	m.shutdownCount++
	return nil
}

// mockRunner implements Runner
type mockRunner struct {
	mockService
	runFn    func(ctx context.Context) error
	runCount int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runCount++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

// mockRunShutdowner implements both Runner and Shutdowner
type mockRunShutdowner struct {
	mockRunner
	shutdownCount int
}

func (m *mockRunShutdowner) Shutdown() error {
	m.shutdownCount++
	return nil
}
