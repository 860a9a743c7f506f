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

// Checksum folds one byte into a running checksum.
type Checksum func(sum, b byte) byte

// XOR is the checksum of legacy frames.
func XOR(sum, b byte) byte {
	return sum ^ b
}

const crc8DVBS2Poly = 0xD5

var crc8DVBS2Table = func() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crc8DVBS2Poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// CRC8DVBS2 is CRC-8/DVB-S2 (poly 0xD5, init 0, unreflected), used by extended frames.
func CRC8DVBS2(sum, b byte) byte {
	return crc8DVBS2Table[sum^b]
}

// Calculate runs c over every chunk in order, starting from zero.
func Calculate(c Checksum, chunks ...[]byte) byte {
	var sum byte
	for _, chunk := range chunks {
		for _, b := range chunk {
			sum = c(sum, b)
		}
	}
	return sum
}
