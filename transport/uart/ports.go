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
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port a flight controller may sit behind.
type PortInfo struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	// Known is set when VIDPID matches a common flight controller bridge.
	Known bool
}

// ListOptions filters ListPorts.
type ListOptions struct {
	Blocklist   []string
	IgnorePaths []string
	// OnlyKnown drops ports whose USB id is not a known controller.
	OnlyKnown bool
}

// DefaultListOptions blocks DFU and debug probes and keeps everything else.
func DefaultListOptions() ListOptions {
	return ListOptions{Blocklist: DefaultBlocklist()}
}

// ListPorts enumerates serial ports, known flight controllers first.
func ListPorts(opts ListOptions) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return filterPorts(details, opts), nil
}

func filterPorts(details []*enumerator.PortDetails, opts ListOptions) []PortInfo {
	known := KnownControllers()
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		if IsPathIgnored(d.Name, opts.IgnorePaths) {
			continue
		}

		info := PortInfo{
			Path:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			info.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
			_, info.Known = known[info.VIDPID]
		}
		if IsBlocked(info.VIDPID, opts.Blocklist) {
			continue
		}
		if opts.OnlyKnown && !info.Known {
			continue
		}
		ports = append(ports, info)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Known != ports[j].Known {
			return ports[i].Known
		}
		return ports[i].Path < ports[j].Path
	})
	return ports
}
