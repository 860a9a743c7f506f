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

import "testing"

func TestXOR(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0,
		},
		{
			name: "single byte",
			data: []byte{0x42},
			want: 0x42,
		},
		{
			name: "self cancelling",
			data: []byte{0x5A, 0x5A},
			want: 0x00,
		},
		{
			name: "api version request",
			data: []byte{0x00, 0x01},
			want: 0x01,
		},
		{
			name: "status request",
			data: []byte{0x00, 0x65},
			want: 0x65,
		},
		{
			name: "blackbox config response",
			data: []byte{0x03, 0x50, 0x01, 0x00, 0x02},
			want: 0x50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Calculate(XOR, tt.data); got != tt.want {
				t.Errorf("Calculate(XOR) = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestCRC8DVBS2(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x00,
		},
		{
			name: "single one bit",
			data: []byte{0x01},
			want: 0xD5,
		},
		{
			name: "check value",
			data: []byte("123456789"),
			want: 0xBC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Calculate(CRC8DVBS2, tt.data); got != tt.want {
				t.Errorf("Calculate(CRC8DVBS2) = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestCalculateChunksMatchWhole(t *testing.T) {
	t.Parallel()
	data := []byte("the quick brown fox")
	for _, c := range []Checksum{XOR, CRC8DVBS2} {
		whole := Calculate(c, data)
		split := Calculate(c, data[:4], data[4:11], data[11:])
		if whole != split {
			t.Errorf("chunked checksum 0x%02X differs from whole 0x%02X", split, whole)
		}
	}
}

func TestCodecVerify(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	legacy := Frame{Direction: DirectionResponse, ID: 80, Payload: []byte{1, 0, 2}}
	if !codec.Verify(legacy, 0x50) {
		t.Error("expected legacy frame checksum 0x50 to verify")
	}
	if codec.Verify(legacy, 0x51) {
		t.Error("expected wrong legacy checksum to fail")
	}

	extended := Frame{Direction: DirectionResponse, ID: 0x1001, Extended: true}
	want := Calculate(CRC8DVBS2, []byte{0x00, 0xFF, 0x01, 0x10, 0x00})
	if got := codec.Compute(extended); got != want {
		t.Errorf("extended checksum = 0x%02X, want 0x%02X", got, want)
	}
}

func TestCodecChecksumSelectedByForm(t *testing.T) {
	t.Parallel()
	codec := DefaultCodec()

	// Same small id, once per form: the form alone picks the algorithm.
	payload := []byte{0x10, 0x20}
	legacy := Frame{ID: 5, Payload: payload}
	extended := Frame{ID: 5, Payload: payload, Extended: true}

	if got, want := codec.Compute(legacy), Calculate(XOR, []byte{2, 5}, payload); got != want {
		t.Errorf("legacy checksum = 0x%02X, want 0x%02X", got, want)
	}
	if got, want := codec.Compute(extended), Calculate(CRC8DVBS2, []byte{2, 0xFF, 5, 0, 0}, payload); got != want {
		t.Errorf("extended checksum = 0x%02X, want 0x%02X", got, want)
	}
}
