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

package frame

// Frame start bytes
const (
	StartByte  = '$' // First byte of every frame
	MarkerByte = 'M' // Protocol marker following the start byte
)

// Direction is the third byte of a frame.
type Direction byte

const (
	DirectionRequest  Direction = '<' // Host to flight controller
	DirectionResponse Direction = '>' // Flight controller to host
	DirectionError    Direction = '!' // Flight controller rejected the command
)

// Valid reports whether d is one of the known direction bytes.
func (d Direction) Valid() bool {
	switch d {
	case DirectionRequest, DirectionResponse, DirectionError:
		return true
	default:
		return false
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	case DirectionError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	ExtendedIDMarker   = 0xFF   // ID byte announcing a 16-bit id and widened length
	MaxLegacyID        = 0xFE   // Highest id encodable in the legacy form
	MaxLegacyPayload   = 0xFF   // Legacy length field is a single byte
	MaxExtendedPayload = 0xFFFF // Widened length field is two bytes

	// DefaultMaxExtendedPayload bounds extended frames unless the codec is told otherwise.
	DefaultMaxExtendedPayload = 4096

	LegacyOverhead   = 6 // '$' 'M' dir LEN ID ... CHK
	ExtendedOverhead = 9 // '$' 'M' dir LEN_LO 0xFF ID_LO ID_HI LEN_HI ... CHK
)
