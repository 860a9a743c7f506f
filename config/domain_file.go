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
	"math"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ZaparooProject/go-msp"
)

// IDResolver resolves message names; *msp.Table implements it.
type IDResolver interface {
	IDByName(name string) (uint16, bool)
}

type catalogueResolver struct{}

func (catalogueResolver) IDByName(name string) (uint16, bool) {
	return msp.LookupMessageID(name)
}

// domainTableSchema describes the TOML domain table after decoding:
//
//	[domains.BLACKBOX]
//	populate = ["MSP_BLACKBOX_CONFIG"]
//	save = "MSP_SET_BLACKBOX_CONFIG"
//	commit = [250]
const domainTableSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["domains"],
  "additionalProperties": false,
  "properties": {
    "domains": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": { "$ref": "#/definitions/domain" }
    }
  },
  "definitions": {
    "id": {
      "oneOf": [
        { "type": "integer", "minimum": 0, "maximum": 65535 },
        { "type": "string", "minLength": 1 }
      ]
    },
    "domain": {
      "type": "object",
      "required": ["populate"],
      "additionalProperties": false,
      "properties": {
        "populate": { "type": "array", "minItems": 1, "items": { "$ref": "#/definitions/id" } },
        "save": { "$ref": "#/definitions/id" },
        "commit": { "type": "array", "items": { "$ref": "#/definitions/id" } }
      }
    }
  }
}`

var domainSchema = gojsonschema.NewStringLoader(domainTableSchema)

// LoadDomainTable reads a TOML domain table from path.
func LoadDomainTable(path string, names IDResolver) (*DomainTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("domain table load failed (%s): %w", path, err)
	}
	table, err := ParseDomainTable(data, names)
	if err != nil {
		return nil, fmt.Errorf("domain table %s: %w", path, err)
	}
	return table, nil
}

// ParseDomainTable decodes a TOML domain table. Message ids may be given as
// numbers or as names resolved through names (nil uses the built-in
// catalogue).
func ParseDomainTable(data []byte, names IDResolver) (*DomainTable, error) {
	if names == nil {
		names = catalogueResolver{}
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDomainTable, err)
	}
	if err := validateDomainDocument(doc); err != nil {
		return nil, err
	}

	domains, _ := doc["domains"].(map[string]any)
	table := NewDomainTable()
	for name, raw := range domains {
		fields, _ := raw.(map[string]any)
		d, err := parseDomain(name, fields, names)
		if err != nil {
			return nil, err
		}
		if err := table.Register(d); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func validateDomainDocument(doc map[string]any) error {
	result, err := gojsonschema.Validate(domainSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDomainTable, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDomainTable, strings.Join(details, "; "))
}

func parseDomain(name string, fields map[string]any, names IDResolver) (Domain, error) {
	d := Domain{Name: name}

	populate, err := parseIDList(fields["populate"], names)
	if err != nil {
		return Domain{}, fmt.Errorf("domain %s populate: %w", name, err)
	}
	d.Populate = populate

	if raw, ok := fields["save"]; ok {
		id, err := parseID(raw, names)
		if err != nil {
			return Domain{}, fmt.Errorf("domain %s save: %w", name, err)
		}
		d.Save = id
		d.HasSave = true
	}

	if raw, ok := fields["commit"]; ok {
		commit, err := parseIDList(raw, names)
		if err != nil {
			return Domain{}, fmt.Errorf("domain %s commit: %w", name, err)
		}
		d.Commit = commit
	}
	return d, nil
}

func parseIDList(raw any, names IDResolver) ([]uint16, error) {
	items, _ := raw.([]any)
	ids := make([]uint16, 0, len(items))
	for _, item := range items {
		id, err := parseID(item, names)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(raw any, names IDResolver) (uint16, error) {
	switch v := raw.(type) {
	case int64:
		if v < 0 || v > math.MaxUint16 {
			return 0, fmt.Errorf("%w: id %d out of range", ErrInvalidDomainTable, v)
		}
		return uint16(v), nil
	case string:
		id, ok := names.IDByName(strings.TrimSpace(v))
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownMessageName, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: id must be a number or a name, got %T", ErrInvalidDomainTable, raw)
	}
}
