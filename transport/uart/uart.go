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


// Package uart implements the MSP transport over a serial port, covering
// USB virtual COM ports and plain UARTs behind an adapter.
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-msp"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate flight controller firmwares configure for MSP.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single Read so Close never waits on a quiet port.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Option configures a Transport before the port is opened.
type Option func(*serial.Mode, *settings)

type settings struct {
	readTimeout time.Duration
}

// WithBaudRate overrides the line rate.
func WithBaudRate(rate int) Option {
	return func(m *serial.Mode, _ *settings) {
		m.BaudRate = rate
	}
}

// WithReadTimeout sets how long a Read may block before returning no data.
func WithReadTimeout(d time.Duration) Option {
	return func(_ *serial.Mode, s *settings) {
		s.readTimeout = d
	}
}

// Transport is a serial port speaking MSP. It implements msp.Transport and
// io.Reader, so the engine runs its own read loop on it.
type Transport struct {
	port     serial.Port
	portName string
	mu       sync.RWMutex
}

// New opens portName at 8N1.
func New(portName string, opts ...Option) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	s := &settings{readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(mode, s)
	}
	if mode.BaudRate <= 0 {
		return nil, msp.NewTransportError("open", portName,
			fmt.Errorf("invalid baud rate %d", mode.BaudRate), msp.ErrorTypePermanent)
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, openError(portName, err)
	}
	if s.readTimeout > 0 {
		if err := port.SetReadTimeout(s.readTimeout); err != nil {
			_ = port.Close()
			return nil, msp.NewTransportError("open", portName, err, msp.ErrorTypePermanent)
		}
	}

	return &Transport{port: port, portName: portName}, nil
}

// Dialer returns a msp.DialFunc that reopens portName, for Engine.Reconnect.
func Dialer(portName string, opts ...Option) msp.DialFunc {
	return func(ctx context.Context) (msp.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(portName, opts...)
	}
}

// openError classifies serial open failures. A busy port may free up, a
// missing or unusable one will not.
func openError(portName string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy:
			return msp.NewTransportError("open", portName, err, msp.ErrorTypeTransient)
		case serial.PortNotFound, serial.InvalidSerialPort, serial.PermissionDenied,
			serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
			return msp.NewTransportError("open", portName, err, msp.ErrorTypePermanent)
		default:
			return msp.NewTransportError("open", portName, err, msp.ErrorTypeTransient)
		}
	}
	return msp.NewTransportError("open", portName, err, msp.ErrorTypePermanent)
}

// Read reads from the port. A read timeout returns 0, nil.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()
	if port == nil {
		return 0, msp.ErrNotConnected
	}
	return port.Read(p)
}

// Write writes to the port.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()
	if port == nil {
		return 0, msp.ErrNotConnected
	}
	return port.Write(p)
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() msp.TransportType {
	return msp.TransportUART
}

// String returns the port name.
func (t *Transport) String() string {
	return t.portName
}
