// go-msp
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-msp.
//
// go-msp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-msp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-msp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-msp"
	"github.com/ZaparooProject/go-msp/config"
	testutil "github.com/ZaparooProject/go-msp/internal/testing"
)

type countingRefresher struct {
	err   error
	calls atomic.Int64
	mu    sync.Mutex
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *countingRefresher) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.MaxInterval = 40 * time.Millisecond
	return cfg
}

func TestNewPollerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPoller(nil, Callbacks{})
	require.ErrorIs(t, err, ErrNoRefreshers)

	bad := DefaultConfig()
	bad.Interval = 0
	_, err = NewPoller(bad, Callbacks{}, &countingRefresher{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	bad = DefaultConfig()
	bad.MaxInterval = time.Millisecond
	_, err = NewPoller(bad, Callbacks{}, &countingRefresher{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	bad = DefaultConfig()
	bad.BackoffMultiplier = 0.5
	_, err = NewPoller(bad, Callbacks{}, &countingRefresher{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPollerBackoff(t *testing.T) {
	t.Parallel()

	r := &countingRefresher{err: errors.New("timeout")}
	var errCount atomic.Int64
	p, err := NewPoller(testConfig(), Callbacks{
		OnError: func(Refresher, error) { errCount.Add(1) },
	}, r)
	require.NoError(t, err)

	require.Error(t, p.Poll(context.Background()))
	assert.Equal(t, 20*time.Millisecond, p.CurrentInterval())
	require.Error(t, p.Poll(context.Background()))
	assert.Equal(t, 40*time.Millisecond, p.CurrentInterval())
	require.Error(t, p.Poll(context.Background()))
	assert.Equal(t, 40*time.Millisecond, p.CurrentInterval(), "interval is capped")

	metrics := p.GetMetrics()
	assert.Equal(t, int64(3), metrics.Cycles)
	assert.Equal(t, int64(3), metrics.Errors)
	assert.Equal(t, int64(3), metrics.ConsecutiveFailures)
	assert.Equal(t, int64(3), errCount.Load())

	r.setErr(nil)
	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, 10*time.Millisecond, p.CurrentInterval())
	assert.Zero(t, p.GetMetrics().ConsecutiveFailures)
	assert.Equal(t, int64(1), p.GetMetrics().Refreshes)
}

func TestPollerFailureDoesNotSkipOthers(t *testing.T) {
	t.Parallel()

	bad := &countingRefresher{err: errors.New("rejected")}
	good := &countingRefresher{}
	var refreshed []Refresher
	p, err := NewPoller(testConfig(), Callbacks{
		OnRefresh: func(r Refresher) { refreshed = append(refreshed, r) },
	}, bad, good)
	require.NoError(t, err)

	require.Error(t, p.Poll(context.Background()))
	assert.Equal(t, int64(1), good.calls.Load())
	assert.Equal(t, []Refresher{good}, refreshed)
}

func TestPollerStartStop(t *testing.T) {
	t.Parallel()

	r := &countingRefresher{}
	p, err := NewPoller(testConfig(), Callbacks{}, r)
	require.NoError(t, err)

	require.ErrorIs(t, p.Stop(), ErrNotRunning)
	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)
	assert.Equal(t, StatePolling, p.State())

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)

	require.NoError(t, p.Stop())
	assert.Equal(t, StateStopped, p.State())
	calls := r.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, r.calls.Load(), "no refresh after Stop")
}

func TestPollerStopsWithContext(t *testing.T) {
	t.Parallel()

	r := &countingRefresher{}
	p, err := NewPoller(testConfig(), Callbacks{}, r)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool { return p.State() == StateStopped }, 2*time.Second, time.Millisecond)
	require.ErrorIs(t, p.Stop(), ErrNotRunning)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, StatePolling, p.State())
	require.NoError(t, p.Stop())
	assert.Equal(t, StateStopped, p.State())
}

func TestPollerRefreshesPropertySet(t *testing.T) {
	t.Parallel()

	fc := testutil.NewVirtualFC()
	fc.Respond(msp.MSPStatus, []byte{0xF4, 0x01, 0, 0, 0x01, 0, 0, 0, 0, 0, 0})
	fc.Respond(msp.MSPAnalog, []byte{111, 0, 0, 0, 0, 0, 0})
	engine, err := msp.New(fc, nil, msp.WithDefaultTimeout(200*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	status, err := config.NewProvider(engine).NewSet("STATUS")
	require.NoError(t, err)

	p, err := NewPoller(testConfig(), Callbacks{}, status)
	require.NoError(t, err)
	require.NoError(t, p.Poll(context.Background()))

	value, fresh := status.Get("cycle_time")
	assert.True(t, fresh)
	assert.Equal(t, uint16(500), value)
	assert.InDelta(t, 11.1, status.Value("voltage"), 0.001)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "backing_off", StateBackingOff.String())
	assert.Equal(t, "unknown", State(42).String())
}
