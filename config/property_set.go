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
	"maps"
	"reflect"
	"sort"
	"sync"
	"time"
)

// ChangeFunc observes property changes
type ChangeFunc func(name string, value any)

type changeSub struct {
	fn ChangeFunc
	id uint64
}

// PropertySet is the last known state of one config domain.
//
// Reads never talk to the flight controller: Get returns the cached value
// and whether it was refreshed since the last invalidation. Load refreshes
// stale values through the provider.
type PropertySet struct {
	refreshedAt time.Time
	provider    *Provider
	values      map[string]any
	fresh       map[string]bool
	dirty       map[string]bool
	domain      string
	subs        []changeSub
	nextSub     uint64
	mu          sync.RWMutex
}

func newPropertySet(domain string, p *Provider) *PropertySet {
	return &PropertySet{
		domain:   domain,
		provider: p,
		values:   make(map[string]any),
		fresh:    make(map[string]bool),
		dirty:    make(map[string]bool),
	}
}

// Domain returns the config domain the set belongs to.
func (s *PropertySet) Domain() string {
	return s.domain
}

// Get returns the last known value of name and whether it is fresh.
func (s *PropertySet) Get(name string) (value any, fresh bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name], s.fresh[name]
}

// Value returns the last known value of name, or nil.
func (s *PropertySet) Value(name string) any {
	v, _ := s.Get(name)
	return v
}

// IsFresh reports whether name was refreshed since its last invalidation.
func (s *PropertySet) IsFresh(name string) bool {
	_, fresh := s.Get(name)
	return fresh
}

// Load returns name, populating the set first when the value is stale. If
// the refresh fails the last known value is returned with the error.
func (s *PropertySet) Load(ctx context.Context, name string) (any, error) {
	if value, fresh := s.Get(name); fresh {
		return value, nil
	}
	err := s.Populate(ctx)
	return s.Value(name), err
}

// Set writes name locally. The value counts as fresh and stays dirty until
// the next successful Save.
func (s *PropertySet) Set(name string, value any) {
	s.mu.Lock()
	changed := !reflect.DeepEqual(s.values[name], value)
	s.values[name] = value
	s.fresh[name] = true
	s.dirty[name] = true
	subs := s.subscribers()
	s.mu.Unlock()

	if changed {
		notify(subs, name, value)
	}
}

// Populate refreshes the whole set from the flight controller.
func (s *PropertySet) Populate(ctx context.Context) error {
	return s.provider.Populate(ctx, s)
}

// Refresh is Populate; it lets a poller keep the set current.
func (s *PropertySet) Refresh(ctx context.Context) error {
	return s.Populate(ctx)
}

// Save writes the set to the flight controller.
func (s *PropertySet) Save(ctx context.Context) error {
	return s.provider.Save(ctx, s)
}

// Invalidate marks names stale, or every value when no name is given.
func (s *PropertySet) Invalidate(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(names) == 0 {
		clear(s.fresh)
		return
	}
	for _, name := range names {
		delete(s.fresh, name)
	}
}

// Snapshot returns a copy of every known value.
func (s *PropertySet) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Dirty returns the names changed locally since the last save, sorted.
func (s *PropertySet) Dirty() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.dirty))
	for name := range s.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefreshedAt returns when the set was last populated.
func (s *PropertySet) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// OnChange registers fn for value changes and returns a function removing it.
func (s *PropertySet) OnChange(fn ChangeFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, changeSub{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Restore loads persisted values as stale, so reads have something to
// return before the first populate. Existing values are kept.
func (s *PropertySet) Restore(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range values {
		if _, known := s.values[name]; known {
			continue
		}
		s.values[name] = value
	}
}

// merge stores a successful populate: values become fresh and clean.
func (s *PropertySet) merge(values map[string]any) {
	type change struct {
		value any
		name  string
	}

	s.mu.Lock()
	var changes []change
	for name, value := range values {
		if !reflect.DeepEqual(s.values[name], value) {
			changes = append(changes, change{name: name, value: value})
		}
		s.values[name] = value
		s.fresh[name] = true
		delete(s.dirty, name)
	}
	s.refreshedAt = time.Now()
	subs := s.subscribers()
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].name < changes[j].name })
	for _, c := range changes {
		notify(subs, c.name, c.value)
	}
}

func (s *PropertySet) markSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.dirty)
}

// subscribers copies the subscription list; the caller holds the lock.
func (s *PropertySet) subscribers() []changeSub {
	return append([]changeSub(nil), s.subs...)
}

func notify(subs []changeSub, name string, value any) {
	for _, sub := range subs {
		sub.fn(name, value)
	}
}
