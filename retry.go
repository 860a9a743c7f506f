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
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for reconnects
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first)
	MaxAttempts int
	// InitialBackoff is the delay after the first failure
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after every failure
	BackoffMultiplier float64
	// Jitter spreads delays by up to this fraction (0 disables it)
	Jitter float64
	// RetryTimeout bounds the whole retry sequence (0 means no bound)
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the retry configuration used when none is given.
// Flight controllers re-enumerate on USB within a couple of seconds after a reboot.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      15 * time.Second,
	}
}

// backoff returns the delay before attempt n (1-based) is retried.
func (c *RetryConfig) backoff(attempt int) time.Duration {
	if c.InitialBackoff <= 0 {
		return 0
	}
	multiplier := c.BackoffMultiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	delay := float64(c.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxBackoff > 0 && delay > float64(c.MaxBackoff) {
		delay = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		//nolint:gosec // jitter does not need a secure source
		delay += delay * c.Jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// RetryWithConfig runs fn until it succeeds, returns a non-retryable error,
// the attempts run out or ctx is done.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempt(s): %w (last error: %v)", attempt-1, err, lastErr)
			}
			return fmt.Errorf("retry aborted: %w", err)
		}

		attempts = attempt
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(config.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	return fmt.Errorf("giving up after %d attempt(s): %w", attempts, lastErr)
}
