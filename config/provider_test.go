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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-msp"
	testutil "github.com/ZaparooProject/go-msp/internal/testing"
)

// fakeRequester answers from a table of canned replies.
type fakeRequester struct {
	replies map[uint16]*msp.Reply
	errs    map[uint16]error
	table   *msp.Table
	sent    []sentRequest
	mu      sync.Mutex
}

type sentRequest struct {
	payload []byte
	id      uint16
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{
		replies: make(map[uint16]*msp.Reply),
		errs:    make(map[uint16]error),
		table:   msp.DefaultTable(),
	}
}

func (f *fakeRequester) reply(id uint16, payload []byte) {
	value, err := f.table.Decode(id, payload)
	if err != nil {
		panic(err)
	}
	f.replies[id] = &msp.Reply{MessageID: id, Payload: payload, Value: value}
}

func (f *fakeRequester) Send(_ context.Context, id uint16, payload []byte, _ ...msp.SendOption) (*msp.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentRequest{id: id, payload: payload})
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	if r, ok := f.replies[id]; ok {
		return r, nil
	}
	return &msp.Reply{MessageID: id}, nil
}

func (f *fakeRequester) Encode(id uint16, value any) ([]byte, error) {
	return f.table.Encode(id, value)
}

func (f *fakeRequester) sentIDs() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint16, 0, len(f.sent))
	for _, s := range f.sent {
		ids = append(ids, s.id)
	}
	return ids
}

func TestProviderPopulateBlackbox(t *testing.T) {
	t.Parallel()

	fc := testutil.NewVirtualFC()
	fc.Respond(msp.MSPBlackboxConfig, []byte{1, 0, 2})
	engine, err := msp.New(fc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	provider := NewProvider(engine)
	set, err := provider.NewSet("blackbox")
	require.NoError(t, err)
	assert.Equal(t, "BLACKBOX", set.Domain())

	_, fresh := set.Get("device")
	assert.False(t, fresh)

	require.NoError(t, set.Populate(context.Background()))

	value, fresh := set.Get("supported")
	assert.True(t, fresh)
	assert.Equal(t, true, value)
	assert.Equal(t, uint8(0), set.Value("device"))
	assert.Equal(t, uint8(2), set.Value("rate_num"))
	assert.False(t, set.RefreshedAt().IsZero())
}

func TestProviderPopulateIsAllOrNothing(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.reply(msp.MSPStatus, []byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	req.errs[msp.MSPAnalog] = msp.NewTimeoutError(msp.MSPAnalog, 1, time.Second)

	provider := NewProvider(req)
	set, err := provider.NewSet("STATUS")
	require.NoError(t, err)

	err = set.Populate(context.Background())
	require.ErrorIs(t, err, msp.ErrTimeout)
	assert.Contains(t, err.Error(), "MSP_ANALOG")
	assert.Empty(t, set.Snapshot(), "no value may be stored after a failed populate")
	assert.Equal(t, []uint16{msp.MSPStatus, msp.MSPAnalog}, req.sentIDs())

	delete(req.errs, msp.MSPAnalog)
	req.reply(msp.MSPAnalog, []byte{126, 0, 0, 0, 0, 0, 0})
	require.NoError(t, set.Populate(context.Background()))
	assert.Equal(t, uint16(1000), set.Value("cycle_time"))
	assert.InDelta(t, 12.6, set.Value("voltage"), 0.001)
}

func TestProviderSave(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.reply(msp.MSPBlackboxConfig, []byte{1, 1, 1, 2, 32, 0, 1})

	provider := NewProvider(req)
	set, err := provider.NewSet("BLACKBOX")
	require.NoError(t, err)
	require.NoError(t, set.Populate(context.Background()))

	set.Set("rate_denom", 4)
	assert.Equal(t, []string{"rate_denom"}, set.Dirty())

	require.NoError(t, set.Save(context.Background()))
	assert.Empty(t, set.Dirty())

	assert.Equal(t, []uint16{msp.MSPBlackboxConfig, msp.MSPSetBlackboxConfig, msp.MSPEEPROMWrite}, req.sentIDs())
	assert.Equal(t, []byte{1, 1, 4, 32, 0, 1}, req.sent[1].payload)
}

func TestProviderSaveNotSupported(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	provider := NewProvider(req)
	set, err := provider.NewSet("DATAFLASH")
	require.NoError(t, err)

	set.Set("ready", true)
	require.NoError(t, set.Save(context.Background()))
	assert.Empty(t, req.sentIDs())
	assert.Equal(t, []string{"ready"}, set.Dirty())
}

func TestProviderSaveFailureKeepsDirty(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.errs[msp.MSPEEPROMWrite] = msp.ErrCommandRejected

	provider := NewProvider(req)
	set, err := provider.NewSet("NAME")
	require.NoError(t, err)
	set.Set("name", "wing")

	err = set.Save(context.Background())
	require.ErrorIs(t, err, msp.ErrCommandRejected)
	assert.Equal(t, []string{"name"}, set.Dirty())
	assert.Equal(t, []byte("wing"), req.sent[0].payload)
}

func TestProviderUnknownDomain(t *testing.T) {
	t.Parallel()

	provider := NewProvider(newFakeRequester())
	_, err := provider.NewSet("OSD")
	require.ErrorIs(t, err, ErrUnknownDomain)

	set := newPropertySet("GONE", provider)
	require.ErrorIs(t, provider.Update(context.Background(), set, OpPopulate), ErrUnknownDomain)
	require.ErrorIs(t, provider.Update(context.Background(), set, OpSave), ErrUnknownDomain)
}

func TestProviderRawValues(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.replies[0x4000] = &msp.Reply{MessageID: 0x4000, Payload: []byte{9, 9}}

	domains := NewDomainTable()
	require.NoError(t, domains.Register(Domain{Name: "custom", Populate: []uint16{0x4000}}))

	provider := NewProvider(req, WithDomains(domains))
	set, err := provider.NewSet("CUSTOM")
	require.NoError(t, err)
	require.NoError(t, set.Populate(context.Background()))
	assert.Equal(t, []byte{9, 9}, set.Value("MSP2_0x4000"))
}

func TestPropertySetLoadFallsBack(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.reply(msp.MSPName, []byte("quad"))

	provider := NewProvider(req)
	set, err := provider.NewSet("NAME")
	require.NoError(t, err)

	value, err := set.Load(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "quad", value)

	// Fresh values are served from the cache.
	_, err = set.Load(context.Background(), "name")
	require.NoError(t, err)
	assert.Len(t, req.sentIDs(), 1)

	set.Invalidate("name")
	req.errs[msp.MSPName] = errors.New("link down")
	value, err = set.Load(context.Background(), "name")
	require.Error(t, err)
	assert.Equal(t, "quad", value, "last known value is returned when the refresh fails")
	assert.False(t, set.IsFresh("name"))
}

func TestPropertySetOnChange(t *testing.T) {
	t.Parallel()

	req := newFakeRequester()
	req.reply(msp.MSPName, []byte("quad"))
	set, err := NewProvider(req).NewSet("NAME")
	require.NoError(t, err)

	var changes []string
	unsubscribe := set.OnChange(func(name string, value any) {
		changes = append(changes, name+"="+value.(string))
	})

	require.NoError(t, set.Populate(context.Background()))
	require.NoError(t, set.Populate(context.Background()))
	set.Set("name", "wing")
	unsubscribe()
	set.Set("name", "plane")

	assert.Equal(t, []string{"name=quad", "name=wing"}, changes)
}

func TestPropertySetInvalidateAll(t *testing.T) {
	t.Parallel()

	set := newPropertySet("NAME", NewProvider(newFakeRequester()))
	set.Set("a", 1)
	set.Set("b", 2)
	set.Invalidate()

	assert.False(t, set.IsFresh("a"))
	assert.False(t, set.IsFresh("b"))
	assert.Equal(t, 1, set.Value("a"))
}

func TestOperationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "populate", OpPopulate.String())
	assert.Equal(t, "save", OpSave.String())
	assert.Equal(t, "operation(7)", Operation(7).String())
}
