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
	"time"

	"github.com/ZaparooProject/go-msp/internal/frame"
)

// Parser errors. They are reported through events and never stop the engine.
var (
	ErrFraming          = frame.ErrFraming
	ErrChecksum         = frame.ErrChecksum
	ErrPayloadTooLarge  = frame.ErrPayloadTooLarge
	ErrUnknownMessageID = errors.New("unknown message id")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Request errors, surfaced to the caller of Send.
var (
	ErrTimeout         = errors.New("request timeout")
	ErrTransport       = errors.New("transport error")
	ErrNotConnected    = errors.New("transport not connected")
	ErrClosed          = errors.New("engine closed")
	ErrCommandRejected = errors.New("command rejected by flight controller")
	ErrCancelled       = errors.New("request cancelled")
)

// Setup errors
var (
	ErrDuplicateMessageID = errors.New("message id already registered")
	ErrTableSealed        = errors.New("dispatch table is sealed")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrAlreadyConnected   = errors.New("transport already attached")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by trying again
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on a later attempt
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by a deadline
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError reports a failure of the underlying byte pipe.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransport.
func (*TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// RequestError reports the terminal failure of one request.
type RequestError struct {
	Err       error
	Attempts  int
	MessageID uint16
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (id %d) after %d attempt(s): %v", MessageName(e.MessageID), e.MessageID, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates the error a request fails with when no response arrives in time.
func NewTimeoutError(messageID uint16, attempts int, timeout time.Duration) *RequestError {
	return &RequestError{
		MessageID: messageID,
		Attempts:  attempts,
		Err:       fmt.Errorf("%w after %v", ErrTimeout, timeout),
	}
}

// PayloadError reports a payload that does not fit its message decoder.
type PayloadError struct {
	Err       error
	Reason    string
	Length    int
	MessageID uint16
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%v: %s (id %d, %d bytes): %s", e.Err, MessageName(e.MessageID), e.MessageID, e.Length, e.Reason)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// NewMalformedPayloadError creates a payload error wrapping ErrMalformedPayload.
func NewMalformedPayloadError(messageID uint16, length int, format string, args ...any) *PayloadError {
	return &PayloadError{
		Err:       ErrMalformedPayload,
		MessageID: messageID,
		Length:    length,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// IsRetryable reports whether trying the operation again may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrChecksum),
		errors.Is(err, ErrFraming):
		return true
	default:
		return false
	}
}

// GetErrorType returns the error type classification
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, ErrChecksum), errors.Is(err, ErrFraming):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
