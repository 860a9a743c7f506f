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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	provider := NewProvider(newFakeRequester())
	blackbox, err := provider.NewSet("BLACKBOX")
	require.NoError(t, err)
	blackbox.Set("device", uint8(1))
	blackbox.Set("supported", true)
	name, err := provider.NewSet("NAME")
	require.NoError(t, err)
	name.Set("name", "quad")

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, blackbox, name))

	snap, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), snap.Taken, 5*time.Second)

	restoredBlackbox, err := provider.NewSet("BLACKBOX")
	require.NoError(t, err)
	restoredName, err := provider.NewSet("NAME")
	require.NoError(t, err)
	restoredName.Set("name", "local")
	snap.Restore(restoredBlackbox, restoredName)

	value, fresh := restoredBlackbox.Get("device")
	assert.Equal(t, uint64(1), value)
	assert.False(t, fresh, "restored values are stale")
	assert.Equal(t, true, restoredBlackbox.Value("supported"))
	assert.Empty(t, restoredBlackbox.Dirty())

	assert.Equal(t, "local", restoredName.Value("name"), "restore keeps known values")
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ReadSnapshot(bytes.NewReader([]byte{0xFF, 0x00, 0x13}))
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = ReadSnapshot(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrInvalidSnapshot)
}
