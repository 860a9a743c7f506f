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

package msp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Reply is the response that resolved a Call.
type Reply struct {
	// Value is the decoded payload, nil when the id has no decoder
	Value     any
	Payload   []byte
	MessageID uint16
	Extended  bool
}

type callState int

const (
	callQueued callState = iota
	callInFlight
	callDone
)

// Call is a pending request. It is resolved exactly once, by a matching
// response, a timeout, a transport failure or cancellation.
type Call struct {
	CreatedAt time.Time
	err       error
	engine    *Engine
	reply     *Reply
	done      chan struct{}
	timer     *time.Timer
	frame     []byte
	cfg       sendConfig
	gen       uint64
	state     callState
	attempts  atomic.Int32
	ID        uuid.UUID
	MessageID uint16
}

func newCall(e *Engine, id uint16, cfg sendConfig) *Call {
	return &Call{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		MessageID: id,
		engine:    e,
		cfg:       cfg,
		done:      make(chan struct{}),
	}
}

// failedCall returns a call that is already resolved with err.
func failedCall(id uint16, err error) *Call {
	c := newCall(nil, id, sendConfig{})
	c.state = callDone
	c.err = err
	close(c.done)
	return c
}

// Done is closed when the call is resolved.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Attempts returns how many times the request has been written.
func (c *Call) Attempts() int {
	return int(c.attempts.Load())
}

// Result returns the outcome of a resolved call. It must only be called
// after Done is closed.
func (c *Call) Result() (*Reply, error) {
	return c.reply, c.err
}

// Wait blocks until the call is resolved or ctx is done. When ctx ends first
// the call is cancelled.
func (c *Call) Wait(ctx context.Context) (*Reply, error) {
	select {
	case <-c.done:
		return c.reply, c.err
	case <-ctx.Done():
	}

	c.cancel(fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
	<-c.done
	return c.reply, c.err
}

// Cancel removes the call from the queue. A cancelled call is never retried.
// Cancelling a resolved call has no effect.
func (c *Call) Cancel() {
	c.cancel(ErrCancelled)
}

func (c *Call) cancel(cause error) {
	if c.engine == nil {
		return
	}
	c.engine.cancel(c, cause)
}

// matches reports whether an inbound frame with id answers this call.
func (c *Call) matches(id uint16) bool {
	if c.cfg.anyResponse {
		return true
	}
	if c.cfg.hasResponse {
		return id == c.cfg.responseID
	}
	return id == c.MessageID
}

// finish resolves the call. The caller holds the engine lock.
func (c *Call) finish(reply *Reply, err error) bool {
	if c.state == callDone {
		return false
	}
	c.state = callDone
	if c.timer != nil {
		c.timer.Stop()
	}
	c.reply = reply
	c.err = err
	close(c.done)
	return true
}

func (c *Call) requestError(err error) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	return &RequestError{MessageID: c.MessageID, Attempts: c.Attempts(), Err: err}
}
