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

import "iter"

type state int

const (
	stateSeekStart state = iota
	stateSeekMarker
	stateSeekDirection
	stateReadLength
	stateReadID
	stateReadExtIDLow
	stateReadExtIDHigh
	stateReadExtLength
	stateReadPayload
	stateReadChecksum
)

const (
	legacyHeaderLen   = 5 // '$' 'M' dir LEN ID
	extendedHeaderLen = 8 // '$' 'M' dir LEN_LO 0xFF ID_LO ID_HI LEN_HI
)

// Decoder turns a byte stream into frames. The result never depends on how
// the stream was split across Feed calls.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	backlog  []byte
	raw      []byte // candidate frame, starting at its '$'
	codec    Codec
	state    state
	length   int
	id       uint16
	dir      Direction
	extended bool
}

// NewDecoder creates a decoder using the checksums and limits of codec.
func NewDecoder(codec Codec) *Decoder {
	return &Decoder{codec: codec.normalized()}
}

// Feed queues p and returns an iterator over the frames and recoverable
// errors the queued bytes produce. Bytes left unread when the caller stops
// early are processed by the next iteration.
func (d *Decoder) Feed(p []byte) iter.Seq2[Frame, error] {
	d.backlog = append(d.backlog, p...)
	return func(yield func(Frame, error) bool) {
		for len(d.backlog) > 0 {
			b := d.backlog[0]
			d.backlog = d.backlog[1:]
			f, err, ok := d.step(b)
			if !ok {
				continue
			}
			if !yield(f, err) {
				return
			}
		}
		d.backlog = nil
	}
}

// Reset drops any partial frame and queued bytes.
func (d *Decoder) Reset() {
	d.backlog = nil
	d.resetFrame()
}

// Buffered returns the number of bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.backlog) + len(d.raw)
}

func (d *Decoder) resetFrame() {
	d.raw = d.raw[:0]
	d.state = stateSeekStart
	d.length = 0
	d.id = 0
	d.dir = 0
	d.extended = false
}

func (d *Decoder) step(b byte) (Frame, error, bool) {
	if d.state == stateSeekStart {
		if b == StartByte {
			d.raw = append(d.raw[:0], b)
			d.state = stateSeekMarker
		}
		return Frame{}, nil, false
	}

	d.raw = append(d.raw, b)

	switch d.state {
	case stateSeekMarker:
		if b != MarkerByte {
			return d.fail(ErrFraming, b)
		}
		d.state = stateSeekDirection
	case stateSeekDirection:
		dir := Direction(b)
		if !dir.Valid() {
			return d.fail(ErrFraming, b)
		}
		d.dir = dir
		d.state = stateReadLength
	case stateReadLength:
		d.length = int(b)
		d.state = stateReadID
	case stateReadID:
		if b == ExtendedIDMarker {
			d.extended = true
			d.state = stateReadExtIDLow
			break
		}
		d.id = uint16(b)
		if d.length > d.codec.MaxExtendedPayload {
			return d.fail(ErrPayloadTooLarge, b)
		}
		d.state = d.afterHeader()
	case stateReadExtIDLow:
		d.id = uint16(b)
		d.state = stateReadExtIDHigh
	case stateReadExtIDHigh:
		d.id |= uint16(b) << 8
		d.state = stateReadExtLength
	case stateReadExtLength:
		d.length |= int(b) << 8
		if d.length > d.codec.MaxExtendedPayload {
			return d.fail(ErrPayloadTooLarge, b)
		}
		d.state = d.afterHeader()
	case stateReadPayload:
		if len(d.raw) == d.headerLen()+d.length {
			d.state = stateReadChecksum
		}
	case stateReadChecksum:
		return d.finish(b)
	}
	return Frame{}, nil, false
}

func (d *Decoder) headerLen() int {
	if d.extended {
		return extendedHeaderLen
	}
	return legacyHeaderLen
}

func (d *Decoder) afterHeader() state {
	if d.length == 0 {
		return stateReadChecksum
	}
	return stateReadPayload
}

func (d *Decoder) finish(sum byte) (Frame, error, bool) {
	// Everything after the direction byte up to the checksum itself.
	expected := Calculate(d.codec.checksumFor(d.extended), d.raw[3:len(d.raw)-1])
	if expected != sum {
		return d.fail(ErrChecksum, sum)
	}

	start := d.headerLen()
	payload := make([]byte, d.length)
	copy(payload, d.raw[start:start+d.length])

	f := Frame{
		Direction:     d.dir,
		ID:            d.id,
		Payload:       payload,
		Extended:      d.extended,
		ChecksumValid: true,
	}
	d.resetFrame()
	return f, nil, true
}

// fail drops the candidate frame and replays everything after its '$' so a
// start byte hidden inside the garbage can begin the next frame.
func (d *Decoder) fail(err error, got byte) (Frame, error, bool) {
	derr := &DecodeError{
		Err:      err,
		Got:      got,
		Length:   d.length,
		ID:       d.id,
		HasID:    d.state >= stateReadExtLength,
		Extended: d.extended,
	}

	replay := make([]byte, 0, len(d.raw)-1+len(d.backlog))
	replay = append(replay, d.raw[1:]...)
	replay = append(replay, d.backlog...)
	d.backlog = replay
	d.resetFrame()
	return Frame{}, derr, true
}
