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

import (
	"errors"
	"fmt"
)

// Recoverable decode errors. The decoder reports them and keeps going.
var (
	ErrFraming          = errors.New("frame: unexpected byte")
	ErrChecksum         = errors.New("frame: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrInvalidDirection = errors.New("frame: invalid direction")
)

// DecodeError describes a candidate frame the decoder dropped.
type DecodeError struct {
	Err      error
	Length   int
	ID       uint16
	Got      byte
	HasID    bool
	Extended bool
}

func (e *DecodeError) Error() string {
	if e.HasID {
		return fmt.Sprintf("%v (id %d, length %d)", e.Err, e.ID, e.Length)
	}
	return fmt.Sprintf("%v (byte 0x%02X)", e.Err, e.Got)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Frame is one complete wire unit.
type Frame struct {
	Payload       []byte
	ID            uint16
	Direction     Direction
	Extended      bool
	ChecksumValid bool
}

// header returns the checksummed bytes that precede the payload.
func (f Frame) header() []byte {
	n := len(f.Payload)
	if f.Extended {
		return []byte{byte(n), ExtendedIDMarker, byte(f.ID), byte(f.ID >> 8), byte(n >> 8)}
	}
	return []byte{byte(n), byte(f.ID)}
}

// Codec encodes frames and computes their checksums.
type Codec struct {
	Legacy   Checksum
	Extended Checksum
	// MaxExtendedPayload bounds the payload of every frame, encoded or
	// decoded. Below 255 it also narrows legacy frames.
	MaxExtendedPayload int
}

// DefaultCodec returns the codec used by flight controller firmware.
func DefaultCodec() Codec {
	return Codec{
		Legacy:             XOR,
		Extended:           CRC8DVBS2,
		MaxExtendedPayload: DefaultMaxExtendedPayload,
	}
}

func (c Codec) normalized() Codec {
	if c.Legacy == nil {
		c.Legacy = XOR
	}
	if c.Extended == nil {
		c.Extended = CRC8DVBS2
	}
	if c.MaxExtendedPayload <= 0 || c.MaxExtendedPayload > MaxExtendedPayload {
		c.MaxExtendedPayload = MaxExtendedPayload
	}
	return c
}

// NeedsExtended reports whether id or a payload of n bytes forces the extended form.
func NeedsExtended(id uint16, n int) bool {
	return id > MaxLegacyID || n > MaxLegacyPayload
}

// MaxPayload returns the largest payload the codec will encode or accept.
func (c Codec) MaxPayload() int {
	return c.normalized().MaxExtendedPayload
}

func (c Codec) checksumFor(extended bool) Checksum {
	c = c.normalized()
	if extended {
		return c.Extended
	}
	return c.Legacy
}

// Compute returns the checksum of f for the form it uses.
func (c Codec) Compute(f Frame) byte {
	return Calculate(c.checksumFor(f.Extended), f.header(), f.Payload)
}

// Verify reports whether sum is the correct checksum for f.
func (c Codec) Verify(f Frame, sum byte) bool {
	return c.Compute(f) == sum
}

// Encode builds the wire bytes for a frame, picking the smallest form that fits.
func (c Codec) Encode(dir Direction, id uint16, payload []byte) ([]byte, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidDirection, byte(dir))
	}
	c = c.normalized()
	if len(payload) > c.MaxExtendedPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), c.MaxExtendedPayload)
	}

	f := Frame{
		Direction: dir,
		ID:        id,
		Payload:   payload,
		Extended:  NeedsExtended(id, len(payload)),
	}
	header := f.header()

	buf := make([]byte, 0, 3+len(header)+len(payload)+1)
	buf = append(buf, StartByte, MarkerByte, byte(dir))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	buf = append(buf, c.Compute(f))
	return buf, nil
}
