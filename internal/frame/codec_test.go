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
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decoded struct {
	frames []Frame
	errs   []error
}

func feedAll(d *Decoder, p []byte) decoded {
	var out decoded
	for f, err := range d.Feed(p) {
		if err != nil {
			out.errs = append(out.errs, err)
			continue
		}
		out.frames = append(out.frames, f)
	}
	return out
}

func feedChunks(d *Decoder, p []byte, sizes func() int) decoded {
	var out decoded
	for len(p) > 0 {
		n := sizes()
		if n > len(p) {
			n = len(p)
		}
		got := feedAll(d, p[:n])
		out.frames = append(out.frames, got.frames...)
		out.errs = append(out.errs, got.errs...)
		p = p[n:]
	}
	return out
}

func mustEncode(t *testing.T, c Codec, dir Direction, id uint16, payload []byte) []byte {
	t.Helper()
	wire, err := c.Encode(dir, id, payload)
	require.NoError(t, err)
	return wire
}

func TestEncodeLegacyBytes(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	assert.Equal(t, []byte{'$', 'M', '<', 0x00, 0x01, 0x01}, mustEncode(t, codec, DirectionRequest, 1, nil))
	assert.Equal(t,
		[]byte{'$', 'M', '>', 0x03, 0x50, 0x01, 0x00, 0x02, 0x50},
		mustEncode(t, codec, DirectionResponse, 80, []byte{1, 0, 2}))
}

func TestEncodeExtendedBytes(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	wire := mustEncode(t, codec, DirectionRequest, 0x1001, []byte{0xAA})
	require.Len(t, wire, ExtendedOverhead+1)
	assert.Equal(t, []byte{'$', 'M', '<', 0x01, 0xFF, 0x01, 0x10, 0x00, 0xAA}, wire[:9])
	assert.Equal(t, Calculate(CRC8DVBS2, wire[3:9]), wire[9])
}

func TestEncodeSelectsMinimalForm(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	tests := []struct {
		name     string
		id       uint16
		size     int
		extended bool
	}{
		{name: "small id small payload", id: 10, size: 10, extended: false},
		{name: "highest legacy id", id: MaxLegacyID, size: 0, extended: false},
		{name: "largest legacy payload", id: 1, size: MaxLegacyPayload, extended: false},
		{name: "id needs extension", id: 0xFF, size: 0, extended: true},
		{name: "payload needs extension", id: 1, size: MaxLegacyPayload + 1, extended: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wire := mustEncode(t, codec, DirectionRequest, tt.id, make([]byte, tt.size))
			if tt.extended {
				assert.Len(t, wire, ExtendedOverhead+tt.size)
				assert.Equal(t, byte(ExtendedIDMarker), wire[4])
			} else {
				assert.Len(t, wire, LegacyOverhead+tt.size)
			}
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	codec.MaxExtendedPayload = 300

	_, err := codec.Encode(DirectionRequest, 1, make([]byte, 301))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = codec.Encode(Direction('x'), 1, nil)
	require.ErrorIs(t, err, ErrInvalidDirection)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	tests := []struct {
		name    string
		payload []byte
		id      uint16
	}{
		{name: "empty legacy", id: 1},
		{name: "legacy payload", id: 80, payload: []byte{1, 0, 2}},
		{name: "payload containing start bytes", id: 101, payload: []byte("$M<$M>")},
		{name: "full legacy payload", id: 254, payload: bytes.Repeat([]byte{0x7E}, 255)},
		{name: "extended id", id: 0x3000, payload: []byte{9, 8, 7}},
		{name: "extended length", id: 71, payload: bytes.Repeat([]byte{0x01}, 1000)},
		{name: "max id", id: 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wire := mustEncode(t, codec, DirectionResponse, tt.id, tt.payload)
			got := feedAll(NewDecoder(codec), wire)
			require.Empty(t, got.errs)
			require.Len(t, got.frames, 1)

			f := got.frames[0]
			assert.Equal(t, tt.id, f.ID)
			assert.Equal(t, DirectionResponse, f.Direction)
			assert.True(t, f.ChecksumValid)
			assert.Equal(t, len(tt.payload), len(f.Payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, f.Payload)
			}
		})
	}
}

func buildStream(t *testing.T, codec Codec, rng *rand.Rand, n int) ([]byte, []Frame) {
	t.Helper()
	var stream []byte
	var want []Frame
	for i := 0; i < n; i++ {
		id := uint16(rng.Intn(300))
		if i%7 == 0 {
			id = uint16(0x1000 + rng.Intn(0x2000))
		}
		payload := make([]byte, rng.Intn(40))
		rng.Read(payload)
		stream = append(stream, mustEncode(t, codec, DirectionResponse, id, payload)...)
		want = append(want, Frame{
			Direction:     DirectionResponse,
			ID:            id,
			Payload:       payload,
			Extended:      NeedsExtended(id, len(payload)),
			ChecksumValid: true,
		})
	}
	return stream, want
}

func TestFeedChunkingDoesNotAffectOutput(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	rng := rand.New(rand.NewSource(42))
	stream, want := buildStream(t, codec, rng, 50)

	whole := feedAll(NewDecoder(codec), stream)
	require.Empty(t, whole.errs)
	require.Equal(t, want, whole.frames)

	oneByte := feedChunks(NewDecoder(codec), stream, func() int { return 1 })
	assert.Equal(t, whole, oneByte)

	for seed := int64(1); seed <= 5; seed++ {
		chunkRng := rand.New(rand.NewSource(seed))
		random := feedChunks(NewDecoder(codec), stream, func() int { return 1 + chunkRng.Intn(64) })
		assert.Equal(t, whole, random, "seed %d", seed)
	}
}

func TestFeedChunkingWithGarbage(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	rng := rand.New(rand.NewSource(7))
	stream, _ := buildStream(t, codec, rng, 20)

	// Splice noise between frames; errors and frames must still be chunk independent.
	noisy := append([]byte{'$', 'M', 'x', 0x00, '$'}, stream...)
	noisy = append(noisy, 0x13, '$', 'M', '>', 0x05)

	whole := feedAll(NewDecoder(codec), noisy)
	oneByte := feedChunks(NewDecoder(codec), noisy, func() int { return 1 })
	assert.Equal(t, whole, oneByte)
	assert.Len(t, whole.frames, 20)
}

func TestChecksumMismatchDropsFrame(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	bad := mustEncode(t, codec, DirectionResponse, 80, []byte{1, 0, 2})
	bad[len(bad)-1] ^= 0xFF
	good := mustEncode(t, codec, DirectionResponse, 101, []byte{4, 5})

	got := feedAll(NewDecoder(codec), append(bad, good...))
	require.Len(t, got.errs, 1)
	assert.ErrorIs(t, got.errs[0], ErrChecksum)

	var derr *DecodeError
	require.True(t, errors.As(got.errs[0], &derr))
	assert.True(t, derr.HasID)
	assert.Equal(t, uint16(80), derr.ID)

	require.Len(t, got.frames, 1)
	assert.Equal(t, uint16(101), got.frames[0].ID)
}

func TestUnexpectedByteResynchronizes(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	good := mustEncode(t, codec, DirectionResponse, 2, []byte("BTFL"))

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "bad marker", input: []byte{'$', 'X'}},
		{name: "bad direction", input: []byte{'$', 'M', '?'}},
		{name: "restart inside header", input: []byte{'$', 'M', '$'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := feedAll(NewDecoder(codec), append(append([]byte{}, tt.input...), good...))
			require.NotEmpty(t, got.errs)
			assert.ErrorIs(t, got.errs[0], ErrFraming)
			require.Len(t, got.frames, 1)
			assert.Equal(t, []byte("BTFL"), got.frames[0].Payload)
		})
	}
}

func TestStartByteInsideBadFrameIsRescanned(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	good := mustEncode(t, codec, DirectionResponse, 3, []byte{4, 5, 0})

	// A truncated frame claims a 2 byte payload; the real frame starts inside it.
	input := append([]byte{'$', 'M', '>', 0x02, 0x01}, good...)
	got := feedAll(NewDecoder(codec), input)

	require.Len(t, got.frames, 1)
	assert.Equal(t, uint16(3), got.frames[0].ID)
	assert.Equal(t, []byte{4, 5, 0}, got.frames[0].Payload)
	require.Len(t, got.errs, 1)
	assert.ErrorIs(t, got.errs[0], ErrChecksum)
}

func TestSingleCorruptedByteDropsAtMostOneFrame(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	payload := []byte{0x10, 0x20, 0x30, 0x40, 0x50}
	first := mustEncode(t, codec, DirectionResponse, 101, payload)
	// Keep the start byte out of the checksum so leftover bytes stay inert.
	for first[len(first)-1] == StartByte {
		payload[0]++
		first = mustEncode(t, codec, DirectionResponse, 101, payload)
	}
	second := mustEncode(t, codec, DirectionResponse, 110, []byte{0x61, 0x62})
	checksum := first[len(first)-1]
	noise := checksum ^ 0x5A

	// Insert one foreign byte at every position from the id to the checksum.
	for pos := 4; pos < len(first); pos++ {
		corrupted := make([]byte, 0, len(first)+1+len(second))
		corrupted = append(corrupted, first[:pos]...)
		corrupted = append(corrupted, noise)
		corrupted = append(corrupted, first[pos:]...)
		corrupted = append(corrupted, second...)

		got := feedAll(NewDecoder(codec), corrupted)
		require.Len(t, got.frames, 1, "insert at %d", pos)
		assert.Equal(t, uint16(110), got.frames[0].ID, "insert at %d", pos)
		assert.Equal(t, []byte{0x61, 0x62}, got.frames[0].Payload, "insert at %d", pos)
		assert.NotEmpty(t, got.errs, "insert at %d", pos)
	}
}

func TestOversizedLengthIsDiscarded(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	codec.MaxExtendedPayload = 16

	oversized := []byte{'$', 'M', '>', 0x00, 0xFF, 0x01, 0x10, 0x01}
	good := mustEncode(t, codec, DirectionResponse, 0x1001, []byte{1, 2, 3})

	got := feedAll(NewDecoder(codec), append(oversized, good...))
	require.Len(t, got.errs, 1)
	assert.ErrorIs(t, got.errs[0], ErrPayloadTooLarge)
	require.Len(t, got.frames, 1)
	assert.Equal(t, uint16(0x1001), got.frames[0].ID)
	assert.True(t, got.frames[0].Extended)
}

func TestPayloadLimitAppliesToLegacyFrames(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	codec.MaxExtendedPayload = 4

	_, err := codec.Encode(DirectionResponse, 110, make([]byte, 5))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	oversized := mustEncode(t, DefaultCodec(), DirectionResponse, 110, make([]byte, 5))
	good := mustEncode(t, codec, DirectionResponse, 110, []byte{1, 2, 3, 4})

	got := feedAll(NewDecoder(codec), append(oversized, good...))
	require.NotEmpty(t, got.errs)
	assert.ErrorIs(t, got.errs[0], ErrPayloadTooLarge)
	require.Len(t, got.frames, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.frames[0].Payload)
	assert.False(t, got.frames[0].Extended)
}

func TestFeedBreakKeepsRemainingBytes(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	d := NewDecoder(codec)

	stream := append(mustEncode(t, codec, DirectionResponse, 1, []byte{1}),
		mustEncode(t, codec, DirectionResponse, 2, []byte{2})...)

	for f, err := range d.Feed(stream) {
		require.NoError(t, err)
		assert.Equal(t, uint16(1), f.ID)
		break
	}
	assert.Positive(t, d.Buffered())

	rest := feedAll(d, nil)
	require.Len(t, rest.frames, 1)
	assert.Equal(t, uint16(2), rest.frames[0].ID)
	assert.Zero(t, d.Buffered())
}

func TestResetDropsPartialFrame(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()
	d := NewDecoder(codec)
	wire := mustEncode(t, codec, DirectionResponse, 5, []byte{1, 2, 3})

	got := feedAll(d, wire[:4])
	assert.Empty(t, got.frames)
	d.Reset()
	assert.Zero(t, d.Buffered())

	got = feedAll(d, wire[4:])
	assert.Empty(t, got.frames)

	got = feedAll(d, wire)
	require.Len(t, got.frames, 1)
}
