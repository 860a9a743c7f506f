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
	"time"

	"github.com/rs/zerolog"
)

// EngineConfig contains configuration options for the Engine
type EngineConfig struct {
	// RetryConfig configures Reconnect
	RetryConfig *RetryConfig
	// EventHandler receives parser and request events (may be nil)
	EventHandler func(Event)
	// Logger receives structured logs
	Logger zerolog.Logger
	// Timeout is the default per-attempt request timeout
	Timeout time.Duration
	// Retries is the default number of re-sends after a timeout
	Retries int
	// MaxPayload bounds extended frames in both directions
	MaxPayload int
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		RetryConfig: DefaultRetryConfig(),
		Logger:      zerolog.Nop(),
		Timeout:     1 * time.Second,
		Retries:     0,
		MaxPayload:  4096,
	}
}

// Option is a functional option for configuring an Engine
type Option func(*Engine) error

// WithDefaultTimeout sets the timeout used by requests that do not set one
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if err := validateTimeout(timeout); err != nil {
			return err
		}
		e.config.Timeout = timeout
		return nil
	}
}

// WithDefaultRetries sets the retry count used by requests that do not set one
func WithDefaultRetries(retries int) Option {
	return func(e *Engine) error {
		if err := validateRetries(retries); err != nil {
			return err
		}
		e.config.Retries = retries
		return nil
	}
}

// WithMaxPayload bounds the payload size of every frame sent or accepted
func WithMaxPayload(n int) Option {
	return func(e *Engine) error {
		if err := validateMaxPayload(n); err != nil {
			return err
		}
		e.config.MaxPayload = n
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) error {
		e.config.Logger = logger
		return nil
	}
}

// WithEventHandler installs a handler that observes engine events.
// The handler runs synchronously on the goroutine that produced the event.
func WithEventHandler(fn func(Event)) Option {
	return func(e *Engine) error {
		e.config.EventHandler = fn
		return nil
	}
}

// WithRetryConfig sets the backoff used by Reconnect
func WithRetryConfig(config *RetryConfig) Option {
	return func(e *Engine) error {
		if config == nil {
			config = DefaultRetryConfig()
		}
		e.config.RetryConfig = config
		return nil
	}
}

// sendConfig holds the per-request settings
type sendConfig struct {
	timeout     time.Duration
	retries     int
	responseID  uint16
	hasResponse bool
	anyResponse bool
	bypass      bool
}

// SendOption configures a single request
type SendOption func(*sendConfig) error

// WithTimeout sets how long each attempt waits for a response
func WithTimeout(timeout time.Duration) SendOption {
	return func(c *sendConfig) error {
		if err := validateTimeout(timeout); err != nil {
			return err
		}
		c.timeout = timeout
		return nil
	}
}

// WithRetries sets how many times the request is re-sent after a timeout
func WithRetries(retries int) SendOption {
	return func(c *sendConfig) error {
		if err := validateRetries(retries); err != nil {
			return err
		}
		c.retries = retries
		return nil
	}
}

// WithBypassQueue writes the request immediately, ignoring the queue. The
// call resolves as soon as the write succeeds; use it for commands after
// which the flight controller does not answer, such as MSP_REBOOT.
func WithBypassQueue() SendOption {
	return func(c *sendConfig) error {
		c.bypass = true
		return nil
	}
}

// WithResponseID matches the response by id instead of the request id
func WithResponseID(id uint16) SendOption {
	return func(c *sendConfig) error {
		c.responseID = id
		c.hasResponse = true
		return nil
	}
}

// WithAnyResponse resolves the request with the next inbound frame
func WithAnyResponse() SendOption {
	return func(c *sendConfig) error {
		c.anyResponse = true
		return nil
	}
}
