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


package uart

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB devices that enumerate as serial ports but
// must never be opened for MSP.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"0483:DF11", // STM32 in DFU mode
		"2E3C:DF11", // AT32 in DFU mode
		"1209:DB42", // Black Magic Probe
		"0483:374B", // ST-LINK/V2-1
		"0483:374E", // ST-LINK/V3
	}
}

// KnownControllers maps VID:PID of USB bridges flight controllers commonly
// expose to a short description.
func KnownControllers() map[string]string {
	return map[string]string{
		"0483:5740": "STM32 virtual COM port",
		"2E3C:5740": "AT32 virtual COM port",
		"10C4:EA60": "CP210x UART bridge",
		"1A86:7523": "CH340 UART bridge",
		"0403:6001": "FTDI UART bridge",
	}
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}

	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// ParseVIDPID extracts VID:PID from various USB descriptor formats:
// "VID:0483 PID:5740", "VID_0483&PID_5740", "vendor=0483 product=5740"
// and the bare "0483:5740".
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	vid := valueAfter(descriptor, "VID:", "VID_", "VID=", "VENDOR=")
	pid := valueAfter(descriptor, "PID:", "PID_", "PID=", "PRODUCT=")
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if parts := strings.Split(strings.TrimSpace(descriptor), ":"); len(parts) == 2 &&
		isHex(parts[0]) && isHex(parts[1]) {
		return parts[0] + ":" + parts[1]
	}
	return ""
}

func valueAfter(s string, prefixes ...string) string {
	for _, prefix := range prefixes {
		if idx := strings.Index(s, prefix); idx >= 0 {
			if v := extractHex(s[idx+len(prefix):]); v != "" {
				return v
			}
		}
	}
	return ""
}

// extractHex extracts the leading run of hex digits.
func extractHex(s string) string {
	end := 0
	for end < len(s) && isHexDigit(rune(s[end])) {
		end++
	}
	return s[:end]
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

// IsPathIgnored checks if a device path should be ignored.
// Paths are compared cleaned and case-folded.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
