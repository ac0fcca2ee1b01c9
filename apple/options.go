// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vissimo-group/hybridauth/jwt"
	"github.com/vissimo-group/hybridauth/storage"
)

// Option defines a common functional options type which can be used in
// a variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// configOptions is the set of available options for Config functions
type configOptions struct {
	withKeyFile          string
	withPrivateKeyPEM    []byte
	withScopes           []string
	withResponseMode     ResponseMode
	withSkipVerification bool
	withLeeway           time.Duration
	withProviderCA       string
	withLogger           hclog.Logger
	withAuthorizeURL     string
	withTokenURL         string
	withKeysURL          string
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withResponseMode: ResponseModeFormPost,
		withLeeway:       jwt.DefaultLeeway,
	}
}

// getConfigOpts gets the config defaults and applies the opt
// overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithKeyFile provides the path to the PEM-encoded EC P-256 private
// key downloaded from the developer portal.
func WithKeyFile(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withKeyFile = path
		}
	}
}

// WithPrivateKeyPEM provides the PEM-encoded key material directly,
// as an alternative to WithKeyFile.
func WithPrivateKeyPEM(pemBytes []byte) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPrivateKeyPEM = pemBytes
		}
	}
}

// WithScopes provides an optional list of scopes to request, replacing
// the "name email" default.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithResponseMode overrides the form_post default response mode.
func WithResponseMode(mode ResponseMode) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withResponseMode = mode
		}
	}
}

// WithSkipIDTokenVerification disables id_token signature
// verification. See Config.SkipIDTokenVerification for the caveats:
// identities produced this way carry no integrity guarantee.
func WithSkipIDTokenVerification() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSkipVerification = true
		}
	}
}

// WithLeeway overrides the expiry clock skew allowance used when
// verifying id_tokens.
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLeeway = d
		}
	}
}

// WithProviderCA provides an optional CA cert PEM used when sending
// requests to the provider.
func WithProviderCA(caPEM string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = caPEM
		}
	}
}

// WithLogger provides an optional logger for the provider's config.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}

// WithEndpoints overrides the fixed Apple endpoints. Intended for
// tests against a local provider.
func WithEndpoints(authorizeURL, tokenURL, keysURL string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthorizeURL = authorizeURL
			o.withTokenURL = tokenURL
			o.withKeysURL = keysURL
		}
	}
}

// providerOptions is the set of available options for New
type providerOptions struct {
	withStorage      storage.Storage
	withSecretSource SecretSource
	withKeySet       jwt.KeySet
}

func providerDefaults() providerOptions {
	return providerOptions{}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithStorage provides the token storage collaborator, replacing the
// default in-memory store.
func WithStorage(s storage.Storage) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withStorage = s
		}
	}
}

// WithSecretSource replaces the default client secret minter with a
// caller-provided strategy.
func WithSecretSource(s SecretSource) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withSecretSource = s
		}
	}
}

// WithKeySet replaces the default remote JWKS key set with a
// caller-provided strategy.
func WithKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withKeySet = ks
		}
	}
}

// identityOptions is the set of available options for
// Provider.Identity
type identityOptions struct {
	withUserPayload []byte
}

func identityDefaults() identityOptions {
	return identityOptions{}
}

func getIdentityOpts(opt ...Option) identityOptions {
	opts := identityDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithUserPayload provides the raw JSON "user" payload Apple's
// client-side flow posts alongside the very first authorization
// response. It is unsigned and display-only; it is threaded through
// explicitly, never read from ambient state, and Apple never re-sends
// it on later authorizations.
func WithUserPayload(raw []byte) Option {
	return func(o interface{}) {
		if o, ok := o.(*identityOptions); ok {
			o.withUserPayload = raw
		}
	}
}

// authURLOptions is the set of available options for Provider.AuthURL
type authURLOptions struct {
	withNonce string
}

func authURLDefaults() authURLOptions {
	return authURLOptions{}
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNonce provides an optional nonce for the authorize URL.
func WithNonce(nonce string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withNonce = nonce
		}
	}
}
