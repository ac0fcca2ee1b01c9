// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"net/http"
	"time"
)

// Option defines a common functional options type which can be used in
// a variadic parameter pattern.
type Option func(*options)

type options struct {
	withLeeway time.Duration
	withCAPEM  string
	withClient *http.Client
}

// optionDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func optionDefaults() options {
	return options{
		withLeeway: DefaultLeeway,
	}
}

// getOpts gets the defaults and applies the opt overrides passed in.
func getOpts(opt ...Option) options {
	opts := optionDefaults()
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(&opts)
	}
	return opts
}

// WithLeeway overrides DefaultLeeway for expiry checks.
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		o.withLeeway = d
	}
}

// WithCAPEM provides an optional CA certificate PEM used to verify the
// JWKS endpoint's TLS certificate.
func WithCAPEM(caPEM string) Option {
	return func(o *options) {
		o.withCAPEM = caPEM
	}
}

// WithHTTPClient provides a pre-built client for key set fetches,
// replacing the default cleanhttp client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.withClient = c
	}
}
