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

package testing

import (
	"github.com/ZaparooProject/go-msp/internal/frame"
)

// BuildResponse creates a response frame
func BuildResponse(id uint16, payload []byte) []byte {
	return mustEncode(frame.DirectionResponse, id, payload)
}

// BuildErrorResponse creates the frame firmware sends for a rejected command
func BuildErrorResponse(id uint16) []byte {
	return mustEncode(frame.DirectionError, id, nil)
}

// BuildRequest creates a request frame
func BuildRequest(id uint16, payload []byte) []byte {
	return mustEncode(frame.DirectionRequest, id, payload)
}

// BuildBlackboxConfigPayload creates an MSP_BLACKBOX_CONFIG payload with all seven fields
func BuildBlackboxConfigPayload(device, rateNum, rateDenom byte, pDenom uint16, sampleRate byte) []byte {
	return []byte{0x01, device, rateNum, rateDenom, byte(pDenom), byte(pDenom >> 8), sampleRate}
}

// BuildAPIVersionPayload creates an MSP_API_VERSION payload
func BuildAPIVersionPayload(major, minor byte) []byte {
	return []byte{0, major, minor}
}

// BuildDataflashSummaryPayload creates an MSP_DATAFLASH_SUMMARY payload for a ready chip
func BuildDataflashSummaryPayload(sectors, total, used uint32) []byte {
	p := []byte{0x03}
	p = appendUint32(p, sectors)
	p = appendUint32(p, total)
	return appendUint32(p, used)
}

func appendUint32(p []byte, v uint32) []byte {
	return append(p, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func mustEncode(dir frame.Direction, id uint16, payload []byte) []byte {
	raw, err := frame.DefaultCodec().Encode(dir, id, payload)
	if err != nil {
		panic(err)
	}
	return raw
}
