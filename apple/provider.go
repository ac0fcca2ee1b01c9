// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"golang.org/x/oauth2"

	"github.com/vissimo-group/hybridauth/apple/clientsecret"
	"github.com/vissimo-group/hybridauth/jwt"
	"github.com/vissimo-group/hybridauth/storage"
)

// SecretSource provides the client_secret value for a token exchange.
// A fresh secret is requested per exchange, so implementations may
// mint short-lived values.
type SecretSource interface {
	Token() (string, error)
}

// Provider implements the Sign in with Apple authorization code flow.
// The Config and credentials are read-only after New and a Provider is
// safe for concurrent use, but its token storage holds one user's
// flow: give simultaneous authentication attempts their own Provider
// or their own Storage.
type Provider struct {
	config  *Config
	client  *http.Client
	secrets SecretSource
	keySet  jwt.KeySet
	store   storage.Storage
	logger  hclog.Logger
}

// New creates a Provider from the config. Credential problems surface
// here, before any network call.
//
// Supported options: WithStorage, WithSecretSource, WithKeySet.
func New(c *Config, opt ...Option) (*Provider, error) {
	const op = "apple.New"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	opts := getProviderOpts(opt...)

	secrets := opts.withSecretSource
	if secrets == nil {
		var csOpts []clientsecret.Option
		if len(c.PrivateKeyPEM) > 0 {
			csOpts = append(csOpts, clientsecret.WithPrivateKeyPEM(c.PrivateKeyPEM))
		}
		secrets, err = clientsecret.New(c.TeamID, c.ClientID, c.KeyID, c.KeyFile, csOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	keySet := opts.withKeySet
	if keySet == nil {
		ksOpts := []jwt.Option{jwt.WithHTTPClient(client)}
		if c.Leeway > 0 {
			ksOpts = append(ksOpts, jwt.WithLeeway(c.Leeway))
		}
		keySet, err = jwt.NewRemoteKeySet(c.keysURL(), ksOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	store := opts.withStorage
	if store == nil {
		store = storage.NewMem()
	}

	return &Provider{
		config:  c,
		client:  client,
		secrets: secrets,
		keySet:  keySet,
		store:   store,
		logger:  c.logger(),
	}, nil
}

// AuthURL generates the URL the user's browser is sent to in order to
// kick off the flow. Apple rejects '+'-encoded spaces in query
// parameters, so spaces are strictly encoded as %20.
//
// Supported options: WithNonce.
func (p *Provider) AuthURL(state string, opt ...Option) (string, error) {
	const op = "Provider.AuthURL"
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)

	v := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"response_mode": {string(p.config.responseMode())},
		"scope":         {strings.Join(p.config.scopes(), " ")},
		"state":         {state},
	}
	if opts.withNonce != "" {
		v.Set("nonce", opts.withNonce)
	}
	// Encode() emits '+' only for spaces (a literal '+' becomes %2B),
	// so this rewrite is safe.
	q := strings.ReplaceAll(v.Encode(), "+", "%20")
	return p.config.authorizeURL() + "?" + q, nil
}

// Exchange trades the authorization code for tokens. The client
// authenticates with a freshly minted client secret; the exchange
// itself is delegated to the oauth2 engine. On success the id_token,
// when present, is persisted in the token storage before returning.
//
// Exchange does not retry: an ambiguous failure may already have been
// applied server-side, and retry policy belongs to the caller.
func (p *Provider) Exchange(ctx context.Context, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	// minted fresh per exchange, never reused or stored
	secret, err := p.secrets.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to mint client secret: %w", op, err)
	}

	oauth2Config := oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: secret,
		RedirectURL:  p.config.RedirectURL,
		Scopes:       p.config.scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.authorizeURL(),
			TokenURL:  p.config.tokenURL(),
			AuthStyle: oauth2.AuthStyleInParams, // Apple wants credentials in the POST body
		},
	}

	oidcCtx := context.WithValue(ctx, oauth2.HTTPClient, p.client)
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyExchangeErr(err))
	}
	if oauth2Token.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is missing from the exchange response: %w", op, ErrUnexpectedResponse)
	}

	t := &Token{
		AccessToken:  AccessToken(oauth2Token.AccessToken),
		RefreshToken: RefreshToken(oauth2Token.RefreshToken),
		TokenType:    oauth2Token.TokenType,
		Expiry:       oauth2Token.Expiry,
	}
	if idToken, ok := oauth2Token.Extra("id_token").(string); ok && idToken != "" {
		t.IdToken = IdToken(idToken)
	}

	p.store.Set("access_token", oauth2Token.AccessToken)
	if oauth2Token.TokenType != "" {
		p.store.Set("token_type", oauth2Token.TokenType)
	}
	if oauth2Token.RefreshToken != "" {
		p.store.Set("refresh_token", oauth2Token.RefreshToken)
	}
	if !oauth2Token.Expiry.IsZero() {
		p.store.Set("expires_at", strconv.FormatInt(oauth2Token.Expiry.Unix(), 10))
	}
	if expiresIn, ok := exchangeNumber(oauth2Token.Extra("expires_in")); ok {
		p.store.Set("expires_in", strconv.FormatInt(expiresIn, 10))
	}
	if t.IdToken != "" {
		p.store.Set("id_token", string(t.IdToken))
	}

	p.logger.Debug("exchanged authorization code", "id_token_present", t.IdToken != "")
	return t, nil
}

// Identity verifies the stored id_token and extracts the user's
// identity from its claims. In the default mode the provider's current
// JWKS is fetched and the signature verified; with
// SkipIDTokenVerification the claims are decoded with no authenticity
// guarantee. In both modes a missing sub claim is fatal.
//
// Supported options: WithUserPayload, for the unsigned one-time "user"
// JSON Apple posts on first authorization. Apple never re-sends it, so
// callers who need the name long-term must persist it themselves.
func (p *Provider) Identity(ctx context.Context, opt ...Option) (*Identity, error) {
	const op = "Provider.Identity"
	opts := getIdentityOpts(opt...)

	rawToken := p.store.Get("id_token")
	if rawToken == "" {
		return nil, fmt.Errorf("%s: no id_token in storage: %w", op, ErrMissingIdToken)
	}

	var claims map[string]interface{}
	var err error
	if p.config.SkipIDTokenVerification {
		claims, err = jwt.ParseUnverified(rawToken)
	} else {
		claims, err = p.keySet.VerifySignature(ctx, rawToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSubjectClaim)
	}
	if exp, ok := exchangeNumber(claims["exp"]); ok {
		p.store.Set("expires_at", strconv.FormatInt(exp, 10))
	}

	return extractIdentity(claims, opts.withUserPayload, p.logger), nil
}

// AccessToken returns the stored tokens by name. Only names with a
// stored value appear: absent fields are omitted, not null-filled.
func (p *Provider) AccessToken() map[string]string {
	tokens := map[string]string{}
	for _, name := range []string{
		"access_token",
		"id_token",
		"access_token_secret",
		"token_type",
		"refresh_token",
		"expires_in",
		"expires_at",
	} {
		if v := p.store.Get(name); v != "" {
			tokens[name] = v
		}
	}
	return tokens
}

// IsConnected reports whether an access token is stored and not
// expired per the stored expires_at.
func (p *Provider) IsConnected() bool {
	if p.store.Get("access_token") == "" {
		return false
	}
	if expiresAt := p.store.Get("expires_at"); expiresAt != "" {
		sec, err := strconv.ParseInt(expiresAt, 10, 64)
		if err == nil && !time.Now().Before(time.Unix(sec, 0)) {
			return false
		}
	}
	return true
}

// Disconnect clears all stored tokens.
func (p *Provider) Disconnect() {
	p.store.Clear()
}

// NewState generates a random value suitable for the state parameter.
func NewState() (string, error) {
	const op = "apple.NewState"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	return id, nil
}

// NewNonce generates a random value suitable for the nonce parameter.
func NewNonce() (string, error) {
	const op = "apple.NewNonce"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	return id, nil
}

// classifyExchangeErr maps an oauth2 exchange failure onto the error
// taxonomy: a structured provider error becomes *ApiError, a network
// failure ErrTransport, anything else ErrUnexpectedResponse.
func classifyExchangeErr(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		apiErr := &ApiError{
			Code:        rErr.ErrorCode,
			Description: rErr.ErrorDescription,
		}
		if rErr.Response != nil {
			apiErr.StatusCode = rErr.Response.StatusCode
		}
		if apiErr.Code == "" {
			var body struct {
				Code string `json:"error"`
				Desc string `json:"error_description"`
			}
			if jsonErr := json.Unmarshal(rErr.Body, &body); jsonErr == nil && body.Code != "" {
				apiErr.Code = body.Code
				apiErr.Description = body.Desc
			}
		}
		if apiErr.Code == "" {
			return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return apiErr
	}
	var uErr *url.Error
	if errors.As(err, &uErr) {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
}

// exchangeNumber converts the numeric values the oauth2 engine and
// JSON decoding hand back (float64, int64, json.Number, numeric
// string) to an int64.
func exchangeNumber(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
