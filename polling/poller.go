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
	"time"
)

// Refresher is anything that can be refreshed from the flight controller;
// *config.PropertySet implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Callbacks defines callback functions for refresh events
type Callbacks struct {
	OnRefresh func(r Refresher)
	OnError   func(r Refresher, err error)
}

// Metrics tracks operational metrics for a Poller
type Metrics struct {
	Cycles              int64         // Total number of refresh cycles
	Refreshes           int64         // Successful refreshes
	Errors              int64         // Failed refreshes
	ConsecutiveFailures int64         // Failed cycles since the last good one
	LastCycleLatency    time.Duration // Duration of the last cycle
}

// Poller refreshes a list of Refreshers on an interval. After a cycle with
// failures the interval grows until MaxInterval; a clean cycle restores it.
type Poller struct {
	config     *Config
	cancel     context.CancelFunc
	done       chan struct{}
	callbacks  Callbacks
	refreshers []Refresher
	mu         sync.Mutex
	// Atomic counters for metrics
	cycles           atomic.Int64
	refreshes        atomic.Int64
	errors           atomic.Int64
	failures         atomic.Int64
	lastCycleLatency atomic.Int64 // in nanoseconds
	currentInterval  atomic.Int64 // in nanoseconds
	state            atomic.Int32
}

// NewPoller creates a poller for refreshers. A nil config uses DefaultConfig.
func NewPoller(config *Config, callbacks Callbacks, refreshers ...Refresher) (*Poller, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(refreshers) == 0 {
		return nil, ErrNoRefreshers
	}

	p := &Poller{
		config:     config,
		callbacks:  callbacks,
		refreshers: append([]Refresher(nil), refreshers...),
	}
	p.currentInterval.Store(config.Interval.Nanoseconds())
	return p, nil
}

// Start begins polling in a goroutine until Stop is called or ctx ends.
// A poller stopped either way can be started again.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.setState(StatePolling)

	go p.pollLoop(ctx, p.done)
	return nil
}

// Stop ends polling and waits for the running cycle to finish.
func (p *Poller) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done
	p.setState(StateStopped)
	return nil
}

func (p *Poller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.loopExited(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.Poll(ctx)
			timer.Reset(p.CurrentInterval())
		}
	}
}

// loopExited clears the running state when the loop ends on its own
// context; after Stop the fields already belong to nobody.
func (p *Poller) loopExited(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != done {
		return
	}
	p.cancel()
	p.cancel = nil
	p.done = nil
	p.setState(StateStopped)
}

// Poll runs one refresh cycle over every refresher and returns the joined
// failures.
func (p *Poller) Poll(ctx context.Context) error {
	if p.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.CycleTimeout)
		defer cancel()
	}

	start := time.Now()
	var errs []error
	for _, r := range p.refreshers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.Refresh(ctx); err != nil {
			p.errors.Add(1)
			errs = append(errs, err)
			p.config.Logger.Debug().Err(err).Msg("refresh failed")
			if p.callbacks.OnError != nil {
				p.callbacks.OnError(r, err)
			}
			continue
		}
		p.refreshes.Add(1)
		if p.callbacks.OnRefresh != nil {
			p.callbacks.OnRefresh(r)
		}
	}

	p.cycles.Add(1)
	p.lastCycleLatency.Store(time.Since(start).Nanoseconds())
	err := errors.Join(errs...)
	p.adjustInterval(err != nil)
	return err
}

// adjustInterval implements the failure backoff
func (p *Poller) adjustInterval(failed bool) {
	if !failed {
		p.failures.Store(0)
		p.currentInterval.Store(p.config.Interval.Nanoseconds())
		p.setRunningState(StatePolling)
		return
	}

	p.failures.Add(1)
	next := time.Duration(float64(p.currentInterval.Load()) * p.config.BackoffMultiplier)
	if next > p.config.MaxInterval {
		next = p.config.MaxInterval
	}
	p.currentInterval.Store(next.Nanoseconds())
	p.setRunningState(StateBackingOff)
	p.config.Logger.Warn().
		Int64("failures", p.failures.Load()).
		Dur("interval", next).
		Msg("refresh cycle failed, slowing down")
}

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
}

// setRunningState only moves between polling states; Poll may also be
// called directly on a poller that was never started.
func (p *Poller) setRunningState(s State) {
	current := State(p.state.Load())
	if current == StatePolling || current == StateBackingOff {
		p.state.CompareAndSwap(int32(current), int32(s))
	}
}

// State returns the lifecycle state
func (p *Poller) State() State {
	return State(p.state.Load())
}

// CurrentInterval returns the current adaptive polling interval
func (p *Poller) CurrentInterval() time.Duration {
	return time.Duration(p.currentInterval.Load())
}

// GetMetrics returns current operational metrics
func (p *Poller) GetMetrics() Metrics {
	return Metrics{
		Cycles:              p.cycles.Load(),
		Refreshes:           p.refreshes.Load(),
		Errors:              p.errors.Load(),
		ConsecutiveFailures: p.failures.Load(),
		LastCycleLatency:    time.Duration(p.lastCycleLatency.Load()),
	}
}
