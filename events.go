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
	"sync/atomic"
	"time"
)

// EventType identifies what happened inside the engine.
type EventType int

const (
	EventFramingError EventType = iota
	EventChecksumError
	EventUnknownMessage
	EventMalformedPayload
	EventUnsolicited
	EventResponse
	EventRetry
	EventTimeout
	EventRejected
	EventListenerError
	EventDisconnected
	EventConnected
	EventInboundRequest
)

func (t EventType) String() string {
	switch t {
	case EventFramingError:
		return "framing_error"
	case EventChecksumError:
		return "checksum_error"
	case EventUnknownMessage:
		return "unknown_message"
	case EventMalformedPayload:
		return "malformed_payload"
	case EventUnsolicited:
		return "unsolicited"
	case EventResponse:
		return "response"
	case EventRetry:
		return "retry"
	case EventTimeout:
		return "timeout"
	case EventRejected:
		return "rejected"
	case EventListenerError:
		return "listener_error"
	case EventDisconnected:
		return "disconnected"
	case EventConnected:
		return "connected"
	case EventInboundRequest:
		return "inbound_request"
	default:
		return "unknown"
	}
}

// Event is delivered to the handler installed with WithEventHandler.
// Handlers run synchronously and must not block.
type Event struct {
	Time         time.Time
	Err          error
	Type         EventType
	MessageID    uint16
	HasMessageID bool
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	FramesDecoded     int64
	FramingErrors     int64
	ChecksumErrors    int64
	UnknownMessages   int64
	MalformedPayloads int64
	Unsolicited       int64
	RequestsSent      int64
	Retries           int64
	Timeouts          int64
	Rejected          int64
	ListenerErrors    int64
	Disconnects       int64
	// InboundRequests counts '<' frames read back from the link (echo, loopback)
	InboundRequests   int64
}

type counters struct {
	framesDecoded     atomic.Int64
	framingErrors     atomic.Int64
	checksumErrors    atomic.Int64
	unknownMessages   atomic.Int64
	malformedPayloads atomic.Int64
	unsolicited       atomic.Int64
	requestsSent      atomic.Int64
	retries           atomic.Int64
	timeouts          atomic.Int64
	rejected          atomic.Int64
	listenerErrors    atomic.Int64
	disconnects       atomic.Int64
	inboundRequests   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesDecoded:     c.framesDecoded.Load(),
		FramingErrors:     c.framingErrors.Load(),
		ChecksumErrors:    c.checksumErrors.Load(),
		UnknownMessages:   c.unknownMessages.Load(),
		MalformedPayloads: c.malformedPayloads.Load(),
		Unsolicited:       c.unsolicited.Load(),
		RequestsSent:      c.requestsSent.Load(),
		Retries:           c.retries.Load(),
		Timeouts:          c.timeouts.Load(),
		Rejected:          c.rejected.Load(),
		ListenerErrors:    c.listenerErrors.Load(),
		Disconnects:       c.disconnects.Load(),
		InboundRequests:   c.inboundRequests.Load(),
	}
}
