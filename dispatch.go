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

package msp

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Unbounded disables the upper payload length check of an Entry.
const Unbounded = -1

// DecodeFunc turns a payload into a typed value.
type DecodeFunc func(payload []byte) (any, error)

// EncodeFunc turns a value into a payload.
type EncodeFunc func(value any) ([]byte, error)

// Listener receives values routed for a message id.
type Listener func(id uint16, value any) error

// Entry describes how one message id is decoded and encoded.
//
// The table rejects payloads shorter than MinLen or longer than MaxLen before
// calling Decode. The zero Entry accepts only empty payloads.
type Entry struct {
	Decode DecodeFunc
	Encode EncodeFunc
	Name   string
	MinLen int
	MaxLen int
}

func (e Entry) checkLength(id uint16, n int) error {
	if n < e.MinLen {
		return NewMalformedPayloadError(id, n, "shorter than %d bytes", e.MinLen)
	}
	if e.MaxLen != Unbounded && n > e.MaxLen {
		return NewMalformedPayloadError(id, n, "longer than %d bytes", e.MaxLen)
	}
	return nil
}

// ListenerError reports a listener that failed or panicked.
type ListenerError struct {
	Err       error
	Index     int
	MessageID uint16
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %d for id %d: %v", e.Index, e.MessageID, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

type subscription struct {
	fn Listener
	id uint64
}

// Table maps message ids to decoders and encoders and routes decoded values
// to listeners.
//
// Entries are registered at startup. Building an Engine seals the table,
// after which it is read-only and safe for concurrent lookups. Listeners may
// subscribe and unsubscribe at any time.
type Table struct {
	entries    map[uint16]Entry
	names      map[string]uint16
	listeners  map[uint16][]subscription
	wildcard   []subscription
	mu         sync.RWMutex
	listenerMu sync.RWMutex
	nextSub    uint64
	sealed     atomic.Bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		entries:   make(map[uint16]Entry),
		names:     make(map[string]uint16),
		listeners: make(map[uint16][]subscription),
	}
}

// Register adds the entry for id.
func (t *Table) Register(id uint16, entry Entry) error {
	if entry.MaxLen != Unbounded && entry.MaxLen < entry.MinLen {
		return fmt.Errorf("%w: max length %d below min length %d", ErrInvalidParameter, entry.MaxLen, entry.MinLen)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed.Load() {
		return ErrTableSealed
	}
	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateMessageID, id)
	}
	t.entries[id] = entry
	if entry.Name != "" {
		t.names[entry.Name] = id
	}
	return nil
}

// Seal makes the table read-only. It is safe to call more than once.
func (t *Table) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed.Store(true)
}

// Sealed reports whether Register is still allowed.
func (t *Table) Sealed() bool {
	return t.sealed.Load()
}

// Lookup returns the entry registered for id.
func (t *Table) Lookup(id uint16) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	return entry, ok
}

// IDByName resolves a message name registered in the table, falling back to
// the built-in catalogue.
func (t *Table) IDByName(name string) (uint16, bool) {
	t.mu.RLock()
	id, ok := t.names[name]
	t.mu.RUnlock()
	if ok {
		return id, true
	}
	return LookupMessageID(name)
}

// Name returns the registered name of id, or the catalogue name.
func (t *Table) Name(id uint16) string {
	if entry, ok := t.Lookup(id); ok && entry.Name != "" {
		return entry.Name
	}
	return MessageName(id)
}

// Decode turns payload into the typed value registered for id.
func (t *Table) Decode(id uint16, payload []byte) (any, error) {
	entry, ok := t.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageID, id)
	}
	if err := entry.checkLength(id, len(payload)); err != nil {
		return nil, err
	}
	if entry.Decode == nil {
		return nil, nil
	}

	value, err := entry.Decode(payload)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			return nil, err
		}
		return nil, NewMalformedPayloadError(id, len(payload), "%v", err)
	}
	return value, nil
}

// Encode turns value into the payload for id. Entries without an encoder
// accept nil (empty payload) and raw byte slices.
func (t *Table) Encode(id uint16, value any) ([]byte, error) {
	entry, ok := t.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageID, id)
	}
	if entry.Encode != nil {
		payload, err := entry.Encode(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t.Name(id), err)
		}
		return payload, nil
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s has no encoder for %T", ErrInvalidParameter, t.Name(id), value)
	}
}

// Subscribe registers l for id and returns a function removing it.
func (t *Table) Subscribe(id uint16, l Listener) (unsubscribe func()) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	t.nextSub++
	sub := subscription{id: t.nextSub, fn: l}
	t.listeners[id] = append(t.listeners[id], sub)

	return func() {
		t.listenerMu.Lock()
		defer t.listenerMu.Unlock()
		t.listeners[id] = removeSubscription(t.listeners[id], sub.id)
		if len(t.listeners[id]) == 0 {
			delete(t.listeners, id)
		}
	}
}

// SubscribeAll registers l for every id. Wildcard listeners run after the
// listeners of the specific id.
func (t *Table) SubscribeAll(l Listener) (unsubscribe func()) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	t.nextSub++
	sub := subscription{id: t.nextSub, fn: l}
	t.wildcard = append(t.wildcard, sub)

	return func() {
		t.listenerMu.Lock()
		defer t.listenerMu.Unlock()
		t.wildcard = removeSubscription(t.wildcard, sub.id)
	}
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Route calls every listener subscribed to id, synchronously and in
// subscription order. A failing or panicking listener does not stop the
// others; the failures are returned joined.
func (t *Table) Route(id uint16, value any) error {
	t.listenerMu.RLock()
	subs := make([]subscription, 0, len(t.listeners[id])+len(t.wildcard))
	subs = append(subs, t.listeners[id]...)
	subs = append(subs, t.wildcard...)
	t.listenerMu.RUnlock()

	var errs []error
	for i, sub := range subs {
		if err := callListener(sub.fn, id, value); err != nil {
			errs = append(errs, &ListenerError{MessageID: id, Index: i, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Listeners returns the number of listeners that Route would call for id.
func (t *Table) Listeners(id uint16) int {
	t.listenerMu.RLock()
	defer t.listenerMu.RUnlock()
	return len(t.listeners[id]) + len(t.wildcard)
}

func callListener(fn Listener, id uint16, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(id, value)
}
