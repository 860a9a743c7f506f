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
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-msp"
)

// Requester sends requests to the flight controller; *msp.Engine implements it.
type Requester interface {
	Send(ctx context.Context, id uint16, payload []byte, opts ...msp.SendOption) (*msp.Reply, error)
	Encode(id uint16, value any) ([]byte, error)
}

// Propertied is implemented by decoded message values that expose config
// properties.
type Propertied interface {
	Properties() map[string]any
}

// Operation selects what Update does.
type Operation int

const (
	// OpPopulate reads the domain from the flight controller
	OpPopulate Operation = iota
	// OpSave writes the domain to the flight controller
	OpSave
)

func (op Operation) String() string {
	switch op {
	case OpPopulate:
		return "populate"
	case OpSave:
		return "save"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Provider moves property sets to and from the flight controller. Many sets
// may share one provider; only the provider talks to the engine.
type Provider struct {
	requester Requester
	domains   *DomainTable
	logger    zerolog.Logger
	sendOpts  []msp.SendOption
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithDomains replaces the default domain table
func WithDomains(domains *DomainTable) ProviderOption {
	return func(p *Provider) {
		p.domains = domains
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithSendOptions applies opts to every request the provider sends
func WithSendOptions(opts ...msp.SendOption) ProviderOption {
	return func(p *Provider) {
		p.sendOpts = append(p.sendOpts, opts...)
	}
}

// NewProvider creates a provider sending through r.
func NewProvider(r Requester, opts ...ProviderOption) *Provider {
	p := &Provider{
		requester: r,
		domains:   DefaultDomains(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Domains returns the domain table the provider resolves sets with.
func (p *Provider) Domains() *DomainTable {
	return p.domains
}

// NewSet returns an empty property set bound to domain.
func (p *Provider) NewSet(domain string) (*PropertySet, error) {
	d, ok := p.domains.Lookup(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return newPropertySet(d.Name, p), nil
}

// Populate requests every populate id of the set's domain in order. The set
// is updated only when all of them succeed.
func (p *Provider) Populate(ctx context.Context, set *PropertySet) error {
	return p.Update(ctx, set, OpPopulate)
}

// Save encodes the set with the domain's save id, sends it and then sends the
// commit ids. Saving a domain without a save id is logged and does nothing.
func (p *Provider) Save(ctx context.Context, set *PropertySet) error {
	return p.Update(ctx, set, OpSave)
}

// Update runs op for set using the ids its domain maps to.
func (p *Provider) Update(ctx context.Context, set *PropertySet, op Operation) error {
	d, ok := p.domains.Lookup(set.Domain())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, set.Domain())
	}

	switch op {
	case OpPopulate:
		return p.populate(ctx, d, set)
	case OpSave:
		return p.save(ctx, d, set)
	default:
		return fmt.Errorf("%w: %v", msp.ErrInvalidParameter, op)
	}
}

func (p *Provider) populate(ctx context.Context, d Domain, set *PropertySet) error {
	values := make(map[string]any)
	for _, id := range d.Populate {
		reply, err := p.requester.Send(ctx, id, nil, p.sendOpts...)
		if err != nil {
			p.logger.Debug().Err(err).Str("domain", d.Name).Uint16("msg_id", id).Msg("populate failed")
			return fmt.Errorf("populate %s: %s: %w", d.Name, msp.MessageName(id), err)
		}
		mergeReply(values, reply)
	}

	set.merge(values)
	p.logger.Debug().Str("domain", d.Name).Int("properties", len(values)).Msg("populated")
	return nil
}

// mergeReply adds the properties of one reply; values without properties
// are stored raw under the message name.
func mergeReply(values map[string]any, reply *msp.Reply) {
	if props, ok := reply.Value.(Propertied); ok {
		for name, value := range props.Properties() {
			values[name] = value
		}
		return
	}
	values[msp.MessageName(reply.MessageID)] = reply.Payload
}

func (p *Provider) save(ctx context.Context, d Domain, set *PropertySet) error {
	if !d.HasSave {
		p.logger.Warn().Err(ErrSaveNotSupported).Str("domain", d.Name).Msg("save skipped")
		return nil
	}

	payload, err := p.requester.Encode(d.Save, set.Snapshot())
	if err != nil {
		return fmt.Errorf("save %s: %w", d.Name, err)
	}
	if _, err := p.requester.Send(ctx, d.Save, payload, p.sendOpts...); err != nil {
		return fmt.Errorf("save %s: %s: %w", d.Name, msp.MessageName(d.Save), err)
	}
	for _, id := range d.Commit {
		if _, err := p.requester.Send(ctx, id, nil, p.sendOpts...); err != nil {
			return fmt.Errorf("save %s: commit %s: %w", d.Name, msp.MessageName(id), err)
		}
	}

	set.markSaved()
	p.logger.Info().Str("domain", d.Name).Msg("saved")
	return nil
}
