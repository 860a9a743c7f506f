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
)

// Transport is the byte pipe to a flight controller. The engine treats it as
// unreliable: any chunking is allowed and any error means disconnect.
//
// If the transport also implements io.Reader the engine runs a read loop on
// it. Otherwise the host pushes inbound bytes with Engine.Feed and reports
// loss of the link with Engine.Disconnect.
type Transport interface {
	// Write sends bytes to the flight controller
	Write(p []byte) (int, error)

	// Close closes the transport connection
	Close() error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport (USB VCP included).
	TransportUART TransportType = "uart"
	// TransportTCP represents a TCP connection (SITL, wifi bridges).
	TransportTCP TransportType = "tcp"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
	// TransportUnknown is reported for transports that do not describe themselves
	TransportUnknown TransportType = "unknown"
)

// TypedTransport is implemented by transports that report their type.
type TypedTransport interface {
	Type() TransportType
}

// DialFunc opens a new transport, used by Engine.Reconnect.
type DialFunc func(ctx context.Context) (Transport, error)

func transportType(t Transport) TransportType {
	if typed, ok := t.(TypedTransport); ok {
		return typed.Type()
	}
	return TransportUnknown
}

// transportName identifies t in errors and logs.
func transportName(t Transport) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return string(transportType(t))
}
