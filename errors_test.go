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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "timeout", err: ErrTimeout, want: true},
		{name: "wrapped timeout", err: NewTimeoutError(MSPStatus, 3, time.Second), want: true},
		{name: "checksum", err: ErrChecksum, want: true},
		{name: "framing", err: fmt.Errorf("feed: %w", ErrFraming), want: true},
		{name: "transient transport", err: NewTransportError("read", "/dev/ttyACM0", errors.New("eof"), ErrorTypeTransient), want: true},
		{name: "permanent transport", err: NewTransportError("open", "/dev/ttyACM0", errors.New("no such file"), ErrorTypePermanent), want: false},
		{name: "rejected", err: ErrCommandRejected, want: false},
		{name: "malformed payload", err: NewMalformedPayloadError(MSPStatus, 2, "short"), want: false},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "nil", err: nil, want: ErrorTypePermanent},
		{name: "timeout", err: ErrTimeout, want: ErrorTypeTimeout},
		{name: "context deadline", err: context.DeadlineExceeded, want: ErrorTypeTimeout},
		{name: "checksum", err: ErrChecksum, want: ErrorTypeTransient},
		{name: "transport keeps its type", err: NewTransportError("write", "", errors.New("x"), ErrorTypeTimeout), want: ErrorTypeTimeout},
		{name: "unknown id", err: ErrUnknownMessageID, want: ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	cause := errors.New("device reports readiness to read but returned no data")
	err := NewTransportError("read", "/dev/ttyACM0", cause, ErrorTypeTransient)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "/dev/ttyACM0")
	assert.Contains(t, err.Error(), "read")

	noPort := NewTransportError("send", "", ErrNotConnected, ErrorTypeTransient)
	assert.Equal(t, "transport send: transport not connected", noPort.Error())
	assert.ErrorIs(t, noPort, ErrNotConnected)

	var te *TransportError
	wrapped := fmt.Errorf("populate: %w", err)
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "read", te.Op)
}

func TestRequestAndPayloadErrors(t *testing.T) {
	t.Parallel()

	timeout := NewTimeoutError(MSPBlackboxConfig, 2, 50*time.Millisecond)
	assert.ErrorIs(t, timeout, ErrTimeout)
	assert.Equal(t, 2, timeout.Attempts)
	assert.Contains(t, timeout.Error(), "MSP_BLACKBOX_CONFIG")

	payload := NewMalformedPayloadError(MSPUID, 4, "shorter than %d bytes", 12)
	assert.ErrorIs(t, payload, ErrMalformedPayload)
	assert.Equal(t, "shorter than 12 bytes", payload.Reason)
	assert.Contains(t, payload.Error(), "MSP_UID")
}

func TestErrorTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
}
