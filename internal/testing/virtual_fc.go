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
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-msp/internal/frame"
)

// ErrVirtualClosed is returned by writes after Close or Disconnect
var ErrVirtualClosed = errors.New("virtual flight controller closed")

// Request is one request frame received by the virtual flight controller
type Request struct {
	Payload  []byte
	ID       uint16
	Extended bool
}

// Handler produces the raw bytes sent back for a request. Returning nil
// leaves the request unanswered.
type Handler func(req Request) []byte

// VirtualFC simulates a flight controller behind a byte stream. It decodes
// the request frames written to it and answers through Read.
type VirtualFC struct {
	readErr  error
	writeErr error
	decoder  *frame.Decoder
	handlers map[uint16]Handler
	drops    map[uint16]int
	cond     *sync.Cond
	out      []byte
	requests []Request
	chunk    int
	mu       sync.Mutex
	closed   bool
}

// NewVirtualFC creates a virtual flight controller with no handlers
func NewVirtualFC() *VirtualFC {
	v := &VirtualFC{
		decoder:  frame.NewDecoder(frame.DefaultCodec()),
		handlers: make(map[uint16]Handler),
		drops:    make(map[uint16]int),
	}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// Handle installs h for requests with id
func (v *VirtualFC) Handle(id uint16, h Handler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers[id] = h
}

// Respond answers every request with id using a response frame carrying payload
func (v *VirtualFC) Respond(id uint16, payload []byte) {
	resp := BuildResponse(id, payload)
	v.Handle(id, func(Request) []byte { return resp })
}

// Reject answers every request with id using an error frame
func (v *VirtualFC) Reject(id uint16) {
	resp := BuildErrorResponse(id)
	v.Handle(id, func(Request) []byte { return resp })
}

// Drop ignores the next n requests with id, as if they were lost on the wire
func (v *VirtualFC) Drop(id uint16, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.drops[id] = n
}

// SetChunkSize limits how many bytes a single Read returns (0 means no limit)
func (v *VirtualFC) SetChunkSize(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunk = n
}

// FailWrites makes every following Write return err
func (v *VirtualFC) FailWrites(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writeErr = err
}

// Push queues raw bytes for the host, for unsolicited frames or noise
func (v *VirtualFC) Push(raw []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.out = append(v.out, raw...)
	v.cond.Broadcast()
}

// Requests returns a copy of the requests received so far
func (v *VirtualFC) Requests() []Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Request, len(v.requests))
	copy(out, v.requests)
	return out
}

// WaitForRequests waits until at least n requests arrived or timeout passes
func (v *VirtualFC) WaitForRequests(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		v.mu.Lock()
		got := len(v.requests)
		v.mu.Unlock()
		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Write decodes request frames and queues the handler replies
func (v *VirtualFC) Write(p []byte) (int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, ErrVirtualClosed
	}
	if v.writeErr != nil {
		err := v.writeErr
		v.mu.Unlock()
		return 0, err
	}

	type pending struct {
		handler Handler
		req     Request
	}
	var answer []pending
	for f, err := range v.decoder.Feed(p) {
		if err != nil || f.Direction != frame.DirectionRequest {
			continue
		}
		req := Request{ID: f.ID, Payload: f.Payload, Extended: f.Extended}
		v.requests = append(v.requests, req)
		if v.drops[f.ID] > 0 {
			v.drops[f.ID]--
			continue
		}
		if h, ok := v.handlers[f.ID]; ok {
			answer = append(answer, pending{req: req, handler: h})
		}
	}
	v.mu.Unlock()

	var replies []byte
	for _, a := range answer {
		replies = append(replies, a.handler(a.req)...)
	}
	if len(replies) > 0 {
		v.Push(replies)
	}
	return len(p), nil
}

// Read returns queued reply bytes, blocking until some are available
func (v *VirtualFC) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for len(v.out) == 0 && !v.closed && v.readErr == nil {
		v.cond.Wait()
	}
	if v.readErr != nil {
		return 0, v.readErr
	}
	if v.closed {
		return 0, io.EOF
	}

	n := len(p)
	if v.chunk > 0 && n > v.chunk {
		n = v.chunk
	}
	n = copy(p[:n], v.out)
	v.out = v.out[n:]
	return n, nil
}

// Disconnect simulates the link dropping: pending reads fail with err and
// writes fail afterwards.
func (v *VirtualFC) Disconnect(err error) {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readErr = err
	v.writeErr = err
	v.cond.Broadcast()
}

// Close unblocks readers
func (v *VirtualFC) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.cond.Broadcast()
	return nil
}

// Closed reports whether Close was called
func (v *VirtualFC) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// String identifies the transport in logs
func (*VirtualFC) String() string {
	return "virtual-fc"
}
