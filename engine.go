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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-msp/internal/frame"
)

// readBufferSize is the chunk size of the transport read loop
const readBufferSize = 512

// Engine correlates requests with responses over one transport.
//
// Requests are queued and written one at a time: the next request goes out
// only after the previous one resolved. Inbound frames that answer no
// request are decoded and routed to the table's listeners.
//
// Thread Safety: Engine is safe for concurrent use. Listeners run on the
// goroutine feeding bytes and must not block on Send; they may use Go.
type Engine struct {
	transport  Transport
	table      *Table
	config     *EngineConfig
	decoder    *frame.Decoder
	active     *Call
	logger     zerolog.Logger
	queue      []*Call
	codec      frame.Codec
	stats      counters
	decodeMu   sync.Mutex
	mu         sync.Mutex
	writeMu    sync.Mutex
	connected  bool
	closed     bool
}

// New creates an engine on transport using table for decoding. A nil table
// uses DefaultTable; a nil transport starts the engine disconnected until
// Attach is called. The table is sealed.
func New(transport Transport, table *Table, opts ...Option) (*Engine, error) {
	if table == nil {
		table = DefaultTable()
	}

	e := &Engine{
		table:  table,
		config: DefaultEngineConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	table.Seal()
	e.logger = e.config.Logger
	e.codec = frame.DefaultCodec()
	e.codec.MaxExtendedPayload = e.config.MaxPayload
	e.decoder = frame.NewDecoder(e.codec)

	if transport != nil {
		if err := e.Attach(transport); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Table returns the dispatch table the engine decodes with.
func (e *Engine) Table() *Table {
	return e.table
}

// Encode encodes value as the payload of message id.
func (e *Engine) Encode(id uint16, value any) ([]byte, error) {
	return e.table.Encode(id, value)
}

// Connected reports whether a transport is attached.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Pending returns the number of queued and in-flight requests.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.queue)
	if e.active != nil {
		n++
	}
	return n
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Send writes a request and blocks until it is answered, fails or ctx ends.
func (e *Engine) Send(ctx context.Context, id uint16, payload []byte, opts ...SendOption) (*Reply, error) {
	return e.Go(id, payload, opts...).Wait(ctx)
}

// Go enqueues a request and returns without waiting for the response.
func (e *Engine) Go(id uint16, payload []byte, opts ...SendOption) *Call {
	cfg := sendConfig{
		timeout: e.config.Timeout,
		retries: e.config.Retries,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return failedCall(id, err)
		}
	}

	raw, err := e.codec.Encode(frame.DirectionRequest, id, payload)
	if err != nil {
		return failedCall(id, fmt.Errorf("encode %s: %w", e.table.Name(id), err))
	}

	call := newCall(e, id, cfg)
	call.frame = raw

	e.mu.Lock()
	if err := e.acceptLocked(); err != nil {
		e.mu.Unlock()
		return failedCall(id, err)
	}
	if cfg.bypass {
		t := e.transport
		call.state = callInFlight
		e.mu.Unlock()
		e.sendBypass(t, call)
		return call
	}
	e.queue = append(e.queue, call)
	e.mu.Unlock()

	e.logger.Debug().
		Str("call", call.ID.String()).
		Uint16("msg_id", id).
		Str("msg", e.table.Name(id)).
		Msg("request queued")

	e.pump()
	return call
}

func (e *Engine) acceptLocked() error {
	if e.closed {
		return NewTransportError("send", "", ErrClosed, ErrorTypePermanent)
	}
	if !e.connected {
		return NewTransportError("send", "", ErrNotConnected, ErrorTypeTransient)
	}
	return nil
}

func (e *Engine) sendBypass(t Transport, call *Call) {
	call.attempts.Add(1)
	err := e.write(t, call.frame)

	e.mu.Lock()
	if err != nil {
		call.finish(nil, err)
	} else {
		call.finish(&Reply{MessageID: call.MessageID}, nil)
	}
	e.mu.Unlock()

	if err != nil {
		e.disconnectFrom(t, err)
	}
}

// pump writes the head of the queue when nothing is in flight.
func (e *Engine) pump() {
	e.mu.Lock()
	if e.active != nil || len(e.queue) == 0 || !e.connected {
		e.mu.Unlock()
		return
	}
	call := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	e.active = call
	call.state = callInFlight
	t := e.transport
	e.armLocked(call)
	e.mu.Unlock()

	e.transmit(t, call)
}

// armLocked starts a new attempt of call with a fresh timeout.
func (e *Engine) armLocked(call *Call) {
	call.gen++
	call.attempts.Add(1)
	gen := call.gen
	if call.timer != nil {
		call.timer.Stop()
	}
	call.timer = time.AfterFunc(call.cfg.timeout, func() {
		e.onTimeout(call, gen)
	})
}

func (e *Engine) transmit(t Transport, call *Call) {
	e.logger.Debug().
		Str("call", call.ID.String()).
		Uint16("msg_id", call.MessageID).
		Int("attempt", call.Attempts()).
		Msg("request sent")

	if err := e.write(t, call.frame); err != nil {
		e.disconnectFrom(t, err)
	}
}

// write serializes writes to the transport and wraps failures.
func (e *Engine) write(t Transport, p []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.stats.requestsSent.Add(1)
	for len(p) > 0 {
		n, err := t.Write(p)
		if err != nil {
			return NewTransportError("write", transportName(t), err, ErrorTypeTransient)
		}
		if n == 0 {
			return NewTransportError("write", transportName(t), io.ErrShortWrite, ErrorTypeTransient)
		}
		p = p[n:]
	}
	return nil
}

func (e *Engine) onTimeout(call *Call, gen uint64) {
	e.mu.Lock()
	if e.active != call || call.gen != gen || call.state != callInFlight {
		e.mu.Unlock()
		return
	}

	if call.cfg.retries > 0 {
		call.cfg.retries--
		t := e.transport
		e.armLocked(call)
		e.mu.Unlock()

		e.emit(Event{Type: EventRetry, MessageID: call.MessageID, HasMessageID: true, Err: ErrTimeout})
		e.logger.Debug().
			Str("call", call.ID.String()).
			Uint16("msg_id", call.MessageID).
			Int("attempt", call.Attempts()).
			Msg("request timed out, retrying")
		e.transmit(t, call)
		return
	}

	e.active = nil
	err := NewTimeoutError(call.MessageID, call.Attempts(), call.cfg.timeout)
	call.finish(nil, err)
	e.mu.Unlock()

	e.emit(Event{Type: EventTimeout, MessageID: call.MessageID, HasMessageID: true, Err: err})
	e.logger.Warn().
		Str("call", call.ID.String()).
		Uint16("msg_id", call.MessageID).
		Str("msg", e.table.Name(call.MessageID)).
		Int("attempts", call.Attempts()).
		Msg("request timed out")
	e.pump()
}

func (e *Engine) cancel(call *Call, cause error) {
	e.mu.Lock()
	if call.state == callDone {
		e.mu.Unlock()
		return
	}

	wasActive := e.active == call
	if wasActive {
		e.active = nil
	} else {
		for i, queued := range e.queue {
			if queued == call {
				e.queue = append(e.queue[:i], e.queue[i+1:]...)
				break
			}
		}
	}
	call.finish(nil, call.requestError(cause))
	e.mu.Unlock()

	e.logger.Debug().
		Str("call", call.ID.String()).
		Uint16("msg_id", call.MessageID).
		Msg("request cancelled")
	if wasActive {
		e.pump()
	}
}

// Feed pushes inbound bytes into the decoder. Hosts whose transport does not
// implement io.Reader call it with every chunk they receive, in order.
func (e *Engine) Feed(p []byte) {
	e.decodeMu.Lock()
	defer e.decodeMu.Unlock()

	for f, err := range e.decoder.Feed(p) {
		if err != nil {
			e.handleDecodeError(err)
			continue
		}
		e.handleFrame(f)
	}
}

func (e *Engine) handleDecodeError(err error) {
	ev := Event{Type: EventFramingError, Err: err}
	if errors.Is(err, frame.ErrChecksum) {
		ev.Type = EventChecksumError
	}
	var de *frame.DecodeError
	if errors.As(err, &de) && de.HasID {
		ev.MessageID = de.ID
		ev.HasMessageID = true
	}
	e.emit(ev)
	e.logger.Debug().Err(err).Msg("dropped inbound bytes")
}

func (e *Engine) handleFrame(f frame.Frame) {
	e.stats.framesDecoded.Add(1)

	// Half-duplex and loopback links echo our own requests back.
	if f.Direction == frame.DirectionRequest {
		e.emit(Event{Type: EventInboundRequest, MessageID: f.ID, HasMessageID: true})
		e.logger.Debug().Uint16("msg_id", f.ID).Int("len", len(f.Payload)).Msg("ignored inbound request frame")
		return
	}

	var value any
	var decodeErr error
	if f.Direction == frame.DirectionResponse {
		value, decodeErr = e.table.Decode(f.ID, f.Payload)
	}
	malformed := errors.Is(decodeErr, ErrMalformedPayload)

	var call *Call
	if !malformed {
		e.mu.Lock()
		if e.active != nil && e.active.matches(f.ID) {
			call = e.active
			e.active = nil
		}
		e.mu.Unlock()
	}

	switch {
	case malformed:
		e.emit(Event{Type: EventMalformedPayload, MessageID: f.ID, HasMessageID: true, Err: decodeErr})
		e.logger.Warn().Err(decodeErr).Uint16("msg_id", f.ID).Msg("dropped malformed payload")
	case call != nil:
		e.resolve(call, f, value)
		if decodeErr == nil && f.Direction == frame.DirectionResponse {
			e.route(f.ID, value)
		}
	case f.Direction == frame.DirectionError:
		e.emit(Event{Type: EventRejected, MessageID: f.ID, HasMessageID: true, Err: ErrCommandRejected})
		e.logger.Debug().Uint16("msg_id", f.ID).Msg("unsolicited error frame")
	case errors.Is(decodeErr, ErrUnknownMessageID):
		e.emit(Event{Type: EventUnknownMessage, MessageID: f.ID, HasMessageID: true, Err: decodeErr})
		e.logger.Debug().Uint16("msg_id", f.ID).Int("len", len(f.Payload)).Msg("unknown unsolicited message")
	default:
		e.emit(Event{Type: EventUnsolicited, MessageID: f.ID, HasMessageID: true})
		e.route(f.ID, value)
	}
}

// resolve completes call with f. The call was already removed from the
// in-flight slot; the next request is pumped from a new goroutine so the
// feeding path never writes.
func (e *Engine) resolve(call *Call, f frame.Frame, value any) {
	e.mu.Lock()
	if f.Direction == frame.DirectionError {
		call.finish(nil, call.requestError(ErrCommandRejected))
	} else {
		call.finish(&Reply{
			MessageID: f.ID,
			Payload:   f.Payload,
			Value:     value,
			Extended:  f.Extended,
		}, nil)
	}
	e.mu.Unlock()

	if f.Direction == frame.DirectionError {
		e.emit(Event{Type: EventRejected, MessageID: f.ID, HasMessageID: true, Err: ErrCommandRejected})
		e.logger.Warn().Str("call", call.ID.String()).Uint16("msg_id", f.ID).Msg("command rejected")
	} else {
		e.emit(Event{Type: EventResponse, MessageID: f.ID, HasMessageID: true})
		e.logger.Debug().
			Str("call", call.ID.String()).
			Uint16("msg_id", f.ID).
			Dur("elapsed", time.Since(call.CreatedAt)).
			Msg("request resolved")
	}

	go e.pump()
}

func (e *Engine) route(id uint16, value any) {
	err := e.table.Route(id, value)
	if err == nil {
		return
	}
	e.emit(Event{Type: EventListenerError, MessageID: id, HasMessageID: true, Err: err})
	e.logger.Warn().Err(err).Uint16("msg_id", id).Msg("listener failed")
}

// Attach connects the engine to a new transport after a disconnect.
func (e *Engine) Attach(t Transport) error {
	if t == nil {
		return fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.connected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.transport = t
	e.connected = true
	e.mu.Unlock()

	e.decodeMu.Lock()
	e.decoder.Reset()
	e.decodeMu.Unlock()

	if r, ok := t.(io.Reader); ok {
		go e.readLoop(t, r)
	}

	e.emit(Event{Type: EventConnected})
	e.logger.Info().
		Str("transport", transportName(t)).
		Str("type", string(transportType(t))).
		Msg("transport attached")
	return nil
}

// Reconnect dials a new transport with backoff and attaches it.
func (e *Engine) Reconnect(ctx context.Context, dial DialFunc) error {
	return RetryWithConfig(ctx, e.config.RetryConfig, func() error {
		t, err := dial(ctx)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				return err
			}
			return NewTransportError("dial", "", err, ErrorTypeTransient)
		}
		if err := e.Attach(t); err != nil {
			_ = t.Close()
			return err
		}
		return nil
	})
}

func (e *Engine) readLoop(t Transport, r io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			e.Feed(buf[:n])
		}
		if err != nil {
			e.disconnectFrom(t, NewTransportError("read", transportName(t), err, ErrorTypeTransient))
			return
		}
	}
}

// Disconnect reports the loss of the transport. Every queued and in-flight
// request fails with a *TransportError and the transport is closed.
func (e *Engine) Disconnect(err error) {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if err == nil {
		err = io.EOF
	}
	e.disconnectFrom(t, err)
}

// disconnectFrom tears down t if it is still the attached transport.
func (e *Engine) disconnectFrom(t Transport, cause error) {
	var te *TransportError
	if !errors.As(cause, &te) {
		te = NewTransportError("disconnect", transportName(t), cause, ErrorTypeTransient)
	}

	e.mu.Lock()
	if e.transport != t || (!e.connected && t == nil) {
		e.mu.Unlock()
		return
	}
	wasConnected := e.connected
	e.connected = false
	e.transport = nil
	failed := e.queue
	e.queue = nil
	if e.active != nil {
		failed = append(failed, e.active)
		e.active = nil
	}
	for _, call := range failed {
		call.finish(nil, te)
	}
	e.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	if wasConnected {
		e.emit(Event{Type: EventDisconnected, Err: te})
		e.logger.Warn().Err(te).Int("failed", len(failed)).Msg("transport disconnected")
	}
}

// Close fails every pending request and closes the transport. The engine
// cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	t := e.transport
	e.mu.Unlock()

	e.disconnectFrom(t, NewTransportError("close", "", ErrClosed, ErrorTypePermanent))
	return nil
}

func (e *Engine) emit(ev Event) {
	switch ev.Type {
	case EventFramingError:
		e.stats.framingErrors.Add(1)
	case EventChecksumError:
		e.stats.checksumErrors.Add(1)
	case EventUnknownMessage:
		e.stats.unknownMessages.Add(1)
	case EventMalformedPayload:
		e.stats.malformedPayloads.Add(1)
	case EventUnsolicited:
		e.stats.unsolicited.Add(1)
	case EventRetry:
		e.stats.retries.Add(1)
	case EventTimeout:
		e.stats.timeouts.Add(1)
	case EventRejected:
		e.stats.rejected.Add(1)
	case EventListenerError:
		e.stats.listenerErrors.Add(1)
	case EventDisconnected:
		e.stats.disconnects.Add(1)
	case EventInboundRequest:
		e.stats.inboundRequests.Add(1)
	case EventResponse, EventConnected:
	}

	if e.config.EventHandler == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.config.EventHandler(ev)
}
