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

import "errors"

// State is the lifecycle state of a Poller
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateBackingOff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateBackingOff:
		return "backing_off"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Poller errors
var (
	ErrInvalidConfig  = errors.New("invalid polling config")
	ErrAlreadyRunning = errors.New("poller already running")
	ErrNotRunning     = errors.New("poller is not running")
	ErrNoRefreshers   = errors.New("no refreshers to poll")
)
