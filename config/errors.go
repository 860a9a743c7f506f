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

import "errors"

// Config provider errors
var (
	ErrUnknownDomain      = errors.New("unknown config domain")
	ErrSaveNotSupported   = errors.New("config domain cannot be saved")
	ErrUnknownMessageName = errors.New("unknown message name")
	ErrInvalidDomainTable = errors.New("invalid domain table")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
)
