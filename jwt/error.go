// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package jwt

import "errors"

var (
	// token validation errors; these are fatal for the current attempt
	// and are never downgraded to an unverified parse.

	ErrMalformedToken       = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrTokenExpired         = errors.New("token is expired")
	ErrMissingExpiryClaim   = errors.New("exp claim is missing")
	ErrNoSigningKeys        = errors.New("no signing keys available")

	// key set retrieval errors

	ErrInvalidKeySet = errors.New("invalid key set")
	ErrTransport     = errors.New("transport failure")

	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
)
