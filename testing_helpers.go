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
	"sync"
	"time"
)

// MockTransport is a write-only transport for push-style hosts and tests.
// It records every write; inbound bytes are delivered with Engine.Feed.
type MockTransport struct {
	blockChan chan struct{}
	writeErr  error
	OnWrite   func(p []byte)
	writes    [][]byte
	mu        sync.Mutex
	closed    bool
	blocking  bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{blockChan: make(chan struct{})}
}

// Write records p. It blocks while Block is in effect.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	blockChan := m.blockChan
	blocking := m.blocking
	m.mu.Unlock()

	if blocking {
		<-blockChan
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return 0, err
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	onWrite := m.OnWrite
	m.mu.Unlock()

	if onWrite != nil {
		onWrite(p)
	}
	return len(p), nil
}

// Block makes writes wait until Unblock or Close
func (m *MockTransport) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = true
}

// Unblock releases blocked writes
func (m *MockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocking && !m.closed {
		m.blocking = false
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// SetWriteError makes every following write fail with err
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns a copy of everything written so far
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WaitForWrites waits until at least n writes happened or timeout passes
func (m *MockTransport) WaitForWrites(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		got := len(m.writes)
		m.mu.Unlock()
		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Close unblocks all writes and marks the transport as closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		if m.blocking {
			close(m.blockChan)
		}
	}
	return nil
}

// IsClosed reports whether Close was called
func (m *MockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
