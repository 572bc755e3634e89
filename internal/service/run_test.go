// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("one runner returning stops the group", func(t *testing.T) {
		quick := &mockRunner{mockService: mockService{name: "quick"}}
		quick.runFn = func(ctx context.Context) error {
			return nil
		}
		blocking := &mockRunner{mockService: mockService{name: "blocking"}}
		blocking.runFn = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}

		done := make(chan error, 1)
		go func() {
			done <- Run(context.Background(), nil, []Service{quick, blocking})
		}()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after a runner exited")
		}
		assert.Equal(t, 1, quick.runCount)
		assert.Equal(t, 1, blocking.runCount)
	})

	t.Run("runner error is returned", func(t *testing.T) {
		runErr := errors.New("run error")
		failing := &mockRunner{mockService: mockService{name: "failing"}}
		failing.runFn = func(ctx context.Context) error {
			return runErr
		}

		err := Run(context.Background(), nil, []Service{failing})
		assert.ErrorIs(t, err, runErr)
	})

	t.Run("shutdowners are shut down when the group stops", func(t *testing.T) {
		sd := &mockRunShutdowner{
			mockRunner: mockRunner{mockService: mockService{name: "with-shutdown"}},
		}
		sd.runFn = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		quick := &mockRunner{mockService: mockService{name: "quick"}}

		err := Run(context.Background(), nil, []Service{sd, quick})
		assert.NoError(t, err)
		assert.Equal(t, 1, sd.shutdownCount)
	})

	t.Run("outer context cancellation stops the group", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		blocking := &mockRunner{mockService: mockService{name: "blocking"}}
		blocking.runFn = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}

		done := make(chan error, 1)
		go func() {
			done <- Run(ctx, nil, []Service{blocking})
		}()

		cancel()
		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after context cancellation")
		}
	})

	t.Run("non-runners are skipped", func(t *testing.T) {
		plain := &mockService{name: "plain"}
		err := Run(context.Background(), nil, []Service{plain})
		assert.NoError(t, err)
	})
}
