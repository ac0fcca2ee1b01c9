// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package clientsecret

import "time"

// Option configures the ClientSecret
type Option func(*ClientSecret)

// WithPrivateKeyPEM supplies the PEM-encoded EC P-256 key directly
// instead of a key file path.
func WithPrivateKeyPEM(pemBytes []byte) Option {
	return func(c *ClientSecret) {
		c.keyPEM = pemBytes
	}
}

// WithClock overrides the wall clock used for the iat/exp claims.
// Intended for tests, where exp must be deterministic.
func WithClock(now func() time.Time) Option {
	return func(c *ClientSecret) {
		if now != nil {
			c.now = now
		}
	}
}
