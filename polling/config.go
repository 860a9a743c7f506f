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
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the polling configuration
type Config struct {
	// Logger receives refresh failures
	Logger zerolog.Logger
	// Interval between refresh cycles while the flight controller answers
	Interval time.Duration
	// MaxInterval caps the interval after consecutive failures
	MaxInterval time.Duration
	// CycleTimeout bounds one refresh cycle (0 means no bound)
	CycleTimeout time.Duration
	// BackoffMultiplier grows the interval after every failed cycle
	BackoffMultiplier float64
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		Logger:            zerolog.Nop(),
		Interval:          250 * time.Millisecond,
		MaxInterval:       5 * time.Second,
		CycleTimeout:      2 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.MaxInterval < c.Interval {
		return fmt.Errorf("%w: max interval %v below interval %v", ErrInvalidConfig, c.MaxInterval, c.Interval)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("%w: backoff multiplier must be at least 1", ErrInvalidConfig)
	}
	return nil
}
