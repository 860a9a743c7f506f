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

/*
Package msp provides a pure Go engine for the MultiWii Serial Protocol spoken
by flight controller firmware such as Betaflight and INAV.

The engine turns a raw byte stream into frames, correlates requests with
their responses and routes unsolicited messages to listeners. It works over
any byte pipe: USB virtual COM ports, hardware UARTs, TCP bridges to SITL
builds, or a transport fed by the host.

Features:
  - Legacy ($M, XOR checksum) and extended (16-bit id, CRC-8 DVB-S2) frames
  - Streaming decoder that resynchronizes after noise
  - Single in-flight request queue with timeouts and retries
  - Dispatch table with typed decoders and listeners
  - Config domains populated from and saved to the flight controller

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-msp"
	    "github.com/ZaparooProject/go-msp/transport/uart"
	)

	transport, err := uart.New("/dev/ttyACM0")
	if err != nil {
	    log.Fatal(err)
	}

	engine, err := msp.New(transport, nil,
	    msp.WithDefaultTimeout(500*time.Millisecond),
	    msp.WithDefaultRetries(2),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer engine.Close()

	reply, err := engine.Send(ctx, msp.MSPBlackboxConfig, nil)
	if err != nil {
	    log.Fatal(err)
	}
	cfg := reply.Value.(msp.BlackboxConfig)
	fmt.Printf("blackbox device %d, rate 1/%d\n", cfg.Device, cfg.RateDenom)

Listeners:

Frames the flight controller sends without being asked are decoded with the
table and delivered to listeners:

	engine.Table().Subscribe(msp.MSPStatus, func(id uint16, v any) error {
	    status := v.(msp.Status)
	    fmt.Println("cycle time", status.CycleTime)
	    return nil
	})

Push-style hosts:

When the transport does not implement io.Reader the engine does not read
from it. The host passes every received chunk to Engine.Feed and reports
the loss of the link with Engine.Disconnect.

Error Handling:

Parser errors never reach callers; they are counted in Stats and reported
through the event handler. Requests fail with errors that can be inspected:

	if errors.Is(err, msp.ErrTimeout) {
	    // no response
	}
	var te *msp.TransportError
	if errors.As(err, &te) {
	    // link lost, reconnect
	}
*/
package msp
