// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNilParameter        = errors.New("nil parameter")
	ErrInvalidCACert       = errors.New("invalid CA certificate")
	ErrInvalidResponseMode = errors.New("invalid response mode")

	// flow errors

	ErrTransport           = errors.New("transport failure")
	ErrUnexpectedResponse  = errors.New("unexpected provider response")
	ErrMissingIdToken      = errors.New("id_token is missing")
	ErrMissingSubjectClaim = errors.New("sub claim is missing")
)

// ApiError is a structured error response from the provider's token
// endpoint, carrying the provider-supplied error code and description.
type ApiError struct {
	// Code is the provider's error code, e.g. "invalid_grant".
	Code string

	// Description is the provider's human-readable detail, if any.
	Description string

	// StatusCode is the HTTP status of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *ApiError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider returned %q: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("provider returned %q", e.Code)
}
