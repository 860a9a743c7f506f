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
	"fmt"
	"math"
	"strconv"
	"time"
)

// toInt64 converts the numeric kinds produced by Go code, TOML, JSON and
// CBOR decoding into an int64.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(n, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidParameter, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidParameter, v)
	}
}

func uintToInt64(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidParameter, n)
	}
	return int64(n), nil
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidParameter, f)
	}
	return int64(f), nil
}

// propInt reads an integer property and checks it against [lo, hi]. A
// missing property is an error.
func propInt(props map[string]any, key string, lo, hi int64) (int64, error) {
	raw, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("%w: property %s is required", ErrInvalidParameter, key)
	}
	n, err := toInt64(raw)
	if err != nil {
		return 0, fmt.Errorf("property %s: %w", key, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: property %s=%d outside [%d, %d]", ErrInvalidParameter, key, n, lo, hi)
	}
	return n, nil
}

func propUint8(props map[string]any, key string, def uint8) (uint8, error) {
	if _, ok := props[key]; !ok {
		return def, nil
	}
	n, err := propInt(props, key, 0, math.MaxUint8)
	return uint8(n), err
}

func propUint16(props map[string]any, key string, def uint16) (uint16, error) {
	if _, ok := props[key]; !ok {
		return def, nil
	}
	n, err := propInt(props, key, 0, math.MaxUint16)
	return uint16(n), err
}

// validateTimeout rejects durations the engine cannot arm a timer with.
func validateTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidParameter, timeout)
	}
	return nil
}

func validateRetries(retries int) error {
	if retries < 0 {
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalidParameter, retries)
	}
	return nil
}

func validateMaxPayload(n int) error {
	if n < 1 || n > 0xFFFF {
		return fmt.Errorf("%w: max payload %d outside [1, 65535]", ErrInvalidParameter, n)
	}
	return nil
}
