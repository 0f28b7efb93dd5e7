// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// HubError represents a structured error response from the Leapmux hub.
// Callers can use errors.As to extract the structured information:
//
//	var hubErr *wire.HubError
//	if errors.As(err, &hubErr) {
//	    if hubErr.Code == wire.ErrCodeNotFound { ... }
//	}
type HubError struct {
	// Code is the hub error code (e.g., "unauthenticated", "not_found").
	Code string `json:"code"`
	// Message is the human-readable error description from the hub.
	Message string `json:"message"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard hub error codes.
const (
	ErrCodeUnauthenticated    = "unauthenticated"
	ErrCodePermissionDenied   = "permission_denied"
	ErrCodeNotFound           = "not_found"
	ErrCodeInvalidArgument    = "invalid_argument"
	ErrCodeFailedPrecondition = "failed_precondition"
	ErrCodeUnavailable        = "unavailable"
	ErrCodeInternal           = "internal"
)

// IsHubError checks whether err is a *HubError with the given error code.
func IsHubError(err error, code string) bool {
	var hubErr *HubError
	if errors.As(err, &hubErr) {
		return hubErr.Code == code
	}
	return false
}
