// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/vissimo-group/hybridauth/apple/clientsecret"
)

// Apple's endpoints are fixed; there is no discovery step.
const (
	// AuthorizeEndpoint is where the user's browser is sent to start
	// the flow.
	AuthorizeEndpoint = "https://appleid.apple.com/auth/authorize"

	// TokenEndpoint is where the authorization code is exchanged for
	// tokens.
	TokenEndpoint = "https://appleid.apple.com/auth/token"

	// KeysEndpoint serves the JWKS used to verify id_token signatures.
	KeysEndpoint = "https://appleid.apple.com/auth/keys"
)

// ResponseMode selects how Apple delivers the authorization response
// to the redirect URL.
type ResponseMode string

const (
	// ResponseModeFormPost delivers the response as an HTTP POST form.
	// Apple requires this mode whenever the name or email scope is
	// requested, and it is the default.
	ResponseModeFormPost ResponseMode = "form_post"
	ResponseModeQuery    ResponseMode = "query"
	ResponseModeFragment ResponseMode = "fragment"
)

// DefaultScopes is requested when no scopes are configured.
var DefaultScopes = []string{"name", "email"}

// Config describes a Sign in with Apple client.
type Config struct {
	// ClientID is the Services ID (or App ID) registered with Apple.
	ClientID string

	// TeamID is the 10-character Apple Developer Team ID.
	TeamID string

	// KeyID is the 10-character identifier of the private key.
	KeyID string

	// KeyFile is the path to the PEM-encoded EC P-256 private key
	// downloaded from the developer portal. Either KeyFile or
	// PrivateKeyPEM must be set.
	KeyFile string

	// PrivateKeyPEM is the PEM-encoded key material itself, as an
	// alternative to KeyFile.
	PrivateKeyPEM []byte

	// RedirectURL is where Apple sends the authorization response.
	RedirectURL string

	// Scopes are the requested scopes. Defaults to DefaultScopes.
	Scopes []string

	// ResponseMode defaults to ResponseModeFormPost.
	ResponseMode ResponseMode

	// SkipIDTokenVerification disables id_token signature
	// verification. When set, Identity decodes claims without any
	// authenticity guarantee: it exists for trusted/offline scenarios
	// and is an explicit choice, never a fallback from a failed
	// verification.
	SkipIDTokenVerification bool

	// Leeway is the clock skew tolerated when checking the id_token
	// expiry. Defaults to jwt.DefaultLeeway (60s).
	Leeway time.Duration

	// ProviderCA is an optional CA cert PEM to use when sending
	// requests to the provider.
	ProviderCA string

	// Logger is an optional logger
	Logger hclog.Logger

	// AuthorizeURL, TokenURL and KeysURL override the fixed Apple
	// endpoints. Intended for tests against a local provider.
	AuthorizeURL string
	TokenURL     string
	KeysURL      string
}

// NewConfig composes a new client config with defaults applied.
// Supported options: WithKeyFile, WithPrivateKeyPEM, WithScopes,
// WithResponseMode, WithProviderCA, WithLeeway, WithLogger,
// WithSkipIDTokenVerification, WithEndpoints.
func NewConfig(clientID, teamID, keyID, redirectURL string, opt ...Option) (*Config, error) {
	const op = "apple.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:                clientID,
		TeamID:                  teamID,
		KeyID:                   keyID,
		RedirectURL:             redirectURL,
		KeyFile:                 opts.withKeyFile,
		PrivateKeyPEM:           opts.withPrivateKeyPEM,
		Scopes:                  opts.withScopes,
		ResponseMode:            opts.withResponseMode,
		SkipIDTokenVerification: opts.withSkipVerification,
		Leeway:                  opts.withLeeway,
		ProviderCA:              opts.withProviderCA,
		Logger:                  opts.withLogger,
		AuthorizeURL:            opts.withAuthorizeURL,
		TokenURL:                opts.withTokenURL,
		KeysURL:                 opts.withKeysURL,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config. Credential problems reuse the clientsecret
// sentinels (ErrMissingTeamID, ErrMissingClientID, ...) so callers can
// branch on the specific missing field; all problems found are
// aggregated.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.TeamID == "" {
		result = multierror.Append(result, clientsecret.ErrMissingTeamID)
	}
	if c.ClientID == "" {
		result = multierror.Append(result, clientsecret.ErrMissingClientID)
	}
	if c.KeyID == "" {
		result = multierror.Append(result, clientsecret.ErrMissingKeyID)
	}
	if c.KeyFile == "" && len(c.PrivateKeyPEM) == 0 {
		result = multierror.Append(result, clientsecret.ErrMissingKeyFile)
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	}
	switch c.responseMode() {
	case ResponseModeFormPost, ResponseModeQuery, ResponseModeFragment:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrInvalidResponseMode, c.ResponseMode))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HttpClient is a helper function that creates a new http client for
// the configured provider, trusting ProviderCA when set.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value successfully: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

func (c *Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return DefaultScopes
	}
	return c.Scopes
}

func (c *Config) responseMode() ResponseMode {
	if c.ResponseMode == "" {
		return ResponseModeFormPost
	}
	return c.ResponseMode
}

func (c *Config) authorizeURL() string {
	if c.AuthorizeURL != "" {
		return c.AuthorizeURL
	}
	return AuthorizeEndpoint
}

func (c *Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return TokenEndpoint
}

func (c *Config) keysURL() string {
	if c.KeysURL != "" {
		return c.KeysURL
	}
	return KeysEndpoint
}

func (c *Config) logger() hclog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return hclog.NewNullLogger()
}
