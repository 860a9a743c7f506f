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
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const snapshotVersion = 1

// Snapshot holds persisted property values keyed by domain.
type Snapshot struct {
	Taken   time.Time
	Domains map[string]map[string]any
}

type snapshotFile struct {
	Domains map[string]map[string]any `cbor:"domains"`
	Taken   int64                     `cbor:"taken"`
	Version int                       `cbor:"version"`
}

// WriteSnapshot encodes the values of sets as CBOR.
func WriteSnapshot(w io.Writer, sets ...*PropertySet) error {
	file := snapshotFile{
		Version: snapshotVersion,
		Taken:   time.Now().Unix(),
		Domains: make(map[string]map[string]any, len(sets)),
	}
	for _, set := range sets {
		file.Domains[set.Domain()] = set.Snapshot()
	}

	data, err := cbor.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot. Numbers come back
// as int64, uint64 or float64.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if file.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidSnapshot, file.Version)
	}

	return &Snapshot{
		Taken:   time.Unix(file.Taken, 0),
		Domains: file.Domains,
	}, nil
}

// Restore loads the values saved for each set's domain as stale values.
func (s *Snapshot) Restore(sets ...*PropertySet) {
	for _, set := range sets {
		if values, ok := s.Domains[set.Domain()]; ok {
			set.Restore(values)
		}
	}
}
