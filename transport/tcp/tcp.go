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


// Package tcp implements the MSP transport over TCP, as exposed by SITL
// builds and serial-to-wifi bridges.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ZaparooProject/go-msp"
)

// DefaultDialTimeout bounds connection setup when the context has no deadline.
const DefaultDialTimeout = 5 * time.Second

// Transport is a TCP connection speaking MSP. It implements msp.Transport
// and io.Reader.
type Transport struct {
	conn net.Conn
	addr string
	mu   sync.RWMutex
}

// Dial connects to addr (host:port).
func Dial(ctx context.Context, addr string) (*Transport, error) {
	dialer := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		errType := msp.ErrorTypeTransient
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) || errors.Is(err, context.Canceled) {
			errType = msp.ErrorTypePermanent
		}
		return nil, msp.NewTransportError("dial", addr, err, errType)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return NewFromConn(conn), nil
}

// NewFromConn wraps an established connection.
func NewFromConn(conn net.Conn) *Transport {
	return &Transport{conn: conn, addr: conn.RemoteAddr().String()}
}

// Dialer returns a msp.DialFunc for Engine.Reconnect.
func Dialer(addr string) msp.DialFunc {
	return func(ctx context.Context) (msp.Transport, error) {
		return Dial(ctx, addr)
	}
}

func (t *Transport) current() net.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn
}

// Read reads from the connection.
func (t *Transport) Read(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, msp.ErrNotConnected
	}
	return conn.Read(p)
}

// Write writes to the connection.
func (t *Transport) Write(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, msp.ErrNotConnected
	}
	return conn.Write(p)
}

// Close closes the connection. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.addr, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() msp.TransportType {
	return msp.TransportTCP
}

// String returns the remote address.
func (t *Transport) String() string {
	return t.addr
}
