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

package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ZaparooProject/go-msp"
)

// Domain maps a group of properties onto the messages that read and
// write them.
type Domain struct {
	Name string
	// Populate lists the ids requested, in order, to fill the set
	Populate []uint16
	// Commit lists the ids sent after a successful save, such as MSP_EEPROM_WRITE
	Commit []uint16
	// Save is the id the set snapshot is encoded with; valid when HasSave is set
	Save    uint16
	HasSave bool
}

// DomainTable holds the known config domains. It is safe for concurrent use.
type DomainTable struct {
	domains map[string]Domain
	mu      sync.RWMutex
}

// NewDomainTable returns an empty domain table.
func NewDomainTable() *DomainTable {
	return &DomainTable{domains: make(map[string]Domain)}
}

// DefaultDomains returns the domains understood by Betaflight and INAV firmware.
func DefaultDomains() *DomainTable {
	t := NewDomainTable()
	for _, d := range []Domain{
		{
			Name:     "BLACKBOX",
			Populate: []uint16{msp.MSPBlackboxConfig},
			Save:     msp.MSPSetBlackboxConfig,
			HasSave:  true,
			Commit:   []uint16{msp.MSPEEPROMWrite},
		},
		{Name: "DATAFLASH", Populate: []uint16{msp.MSPDataflashSummary}},
		{Name: "SDCARD", Populate: []uint16{msp.MSPSDCardSummary}},
		{Name: "STATUS", Populate: []uint16{msp.MSPStatus, msp.MSPAnalog}},
		{
			Name:     "IDENTITY",
			Populate: []uint16{msp.MSPAPIVersion, msp.MSPFCVariant, msp.MSPFCVersion, msp.MSPBuildInfo},
		},
		{
			Name:     "NAME",
			Populate: []uint16{msp.MSPName},
			Save:     msp.MSPSetName,
			HasSave:  true,
			Commit:   []uint16{msp.MSPEEPROMWrite},
		},
	} {
		if err := t.Register(d); err != nil {
			panic(err)
		}
	}
	return t
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Register adds d, replacing any domain with the same name. Names are
// case-insensitive.
func (t *DomainTable) Register(d Domain) error {
	d.Name = normalizeName(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: domain without a name", ErrInvalidDomainTable)
	}
	if len(d.Populate) == 0 {
		return fmt.Errorf("%w: domain %s has no populate ids", ErrInvalidDomainTable, d.Name)
	}
	d.Populate = slices.Clone(d.Populate)
	d.Commit = slices.Clone(d.Commit)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.domains[d.Name] = d
	return nil
}

// Lookup returns the domain called name.
func (t *DomainTable) Lookup(name string) (Domain, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.domains[normalizeName(name)]
	return d, ok
}

// Names returns the registered domain names in sorted order.
func (t *DomainTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.domains))
	for name := range t.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge registers every domain of other into t.
func (t *DomainTable) Merge(other *DomainTable) {
	for _, name := range other.Names() {
		if d, ok := other.Lookup(name); ok {
			_ = t.Register(d)
		}
	}
}
