// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// Package jwt verifies the signatures of JWTs against a provider's
// JSON Web Key Set (JWKS). It is the verification half of an OIDC
// id_token flow: key sets are fetched fresh per verification (keys
// rotate), candidate keys are tried in provider order, and the signing
// algorithm is pinned.
package jwt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/hashicorp/go-cleanhttp"
)

// SigningAlgorithm is the only algorithm tokens may be signed with.
// Apple signs id_tokens with RS256; a token asserting anything else is
// rejected before any key is tried, which closes the algorithm
// confusion class of attacks.
const SigningAlgorithm = jose.RS256

// DefaultLeeway is the clock skew tolerated when checking a token's
// expiry.
const DefaultLeeway = 60 * time.Second

// KeySet represents a set of keys that can be used to verify the signatures of JWTs.
// A KeySet is expected to be backed by a set of local or remote keys.
type KeySet interface {

	// VerifySignature parses the given JWT, verifies its signature, and returns the claims in its payload.
	VerifySignature(ctx context.Context, token string) (claims map[string]interface{}, err error)
}

// RemoteKeySet verifies JWT signatures using keys fetched from a JWKS
// URL. The set is fetched on every verification and never cached: the
// provider may rotate keys between fetches, so a key absent on one
// fetch may be present shortly after.
type RemoteKeySet struct {
	jwksURL string
	client  *http.Client
	leeway  time.Duration

	// overwritten for testing
	now func() time.Time
}

// ensure that RemoteKeySet implements the KeySet interface
var _ KeySet = (*RemoteKeySet)(nil)

// NewRemoteKeySet returns a KeySet backed by the JWKS at jwksURL.
// Supported options: WithHTTPClient, WithCAPEM, WithLeeway.
func NewRemoteKeySet(jwksURL string, opt ...Option) (*RemoteKeySet, error) {
	const op = "jwt.NewRemoteKeySet"
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: jwksURL must not be empty", op)
	}
	opts := getOpts(opt...)
	client := opts.withClient
	if client == nil {
		var err error
		client, err = newClient(opts.withCAPEM)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &RemoteKeySet{
		jwksURL: jwksURL,
		client:  client,
		leeway:  opts.withLeeway,
		now:     time.Now,
	}, nil
}

// VerifySignature fetches the current JWKS and verifies the given JWT
// against it, returning the claims in its payload. The given JWT must
// be of the JWS compact serialization form.
func (ks *RemoteKeySet) VerifySignature(ctx context.Context, token string) (map[string]interface{}, error) {
	const op = "RemoteKeySet.VerifySignature"
	keys, err := ks.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, err := verifySignature(token, keys, ks.leeway, ks.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// fetch retrieves the provider's current key set.
func (ks *RemoteKeySet) fetch(ctx context.Context) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d fetching %s", ErrInvalidKeySet, resp.StatusCode, ks.jwksURL)
	}
	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySet, err)
	}
	return set.Keys, nil
}

// StaticKeySet verifies JWT signatures using a fixed set of local
// keys. It is the offline counterpart of RemoteKeySet and applies the
// same verification policy.
type StaticKeySet struct {
	keys   []jose.JSONWebKey
	leeway time.Duration

	// overwritten for testing
	now func() time.Time
}

// ensure that StaticKeySet implements the KeySet interface
var _ KeySet = (*StaticKeySet)(nil)

// NewStaticKeySet returns a KeySet backed by the given keys.
// Supported options: WithLeeway.
func NewStaticKeySet(keys []jose.JSONWebKey, opt ...Option) (*StaticKeySet, error) {
	opts := getOpts(opt...)
	return &StaticKeySet{
		keys:   keys,
		leeway: opts.withLeeway,
		now:    time.Now,
	}, nil
}

// VerifySignature verifies the given JWT against the static keys,
// returning the claims in its payload.
func (ks *StaticKeySet) VerifySignature(_ context.Context, token string) (map[string]interface{}, error) {
	const op = "StaticKeySet.VerifySignature"
	claims, err := verifySignature(token, ks.keys, ks.leeway, ks.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// attemptResult tags the outcome of trying one candidate key.
type attemptResult int

const (
	// attemptNoMatch: the key didn't validate the signature; try the
	// next one.
	attemptNoMatch attemptResult = iota
	// attemptMatched: the key validated the signature and the token
	// passed the expiry check.
	attemptMatched
	// attemptStop: the token itself is bad (expired, exp missing);
	// later keys must not resurrect it.
	attemptStop
)

// verifySignature tries the candidate keys in the order the provider
// returned them. The first key that validates the signature wins. An
// expired token stops the iteration immediately. When the set is
// exhausted the last signature failure is returned.
//
// Keys are iterated rather than located by kid: providers may omit or
// inconsistently populate the key ID on rotation, and key sets are
// small, so trying every candidate is the compatible posture.
func verifySignature(token string, keys []jose.JSONWebKey, leeway time.Duration, now time.Time) (map[string]interface{}, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	for _, h := range parsed.Headers {
		if h.Algorithm != string(SigningAlgorithm) {
			return nil, fmt.Errorf("%w: %q, want %q", ErrUnsupportedAlgorithm, h.Algorithm, SigningAlgorithm)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoSigningKeys
	}

	var lastErr error
	for _, key := range keys {
		claims, result, err := tryKey(parsed, key, leeway, now)
		switch result {
		case attemptMatched:
			return claims, nil
		case attemptStop:
			return nil, err
		default:
			lastErr = err
		}
	}
	return nil, lastErr
}

func tryKey(parsed *jwt.JSONWebToken, key jose.JSONWebKey, leeway time.Duration, now time.Time) (map[string]interface{}, attemptResult, error) {
	claims := map[string]interface{}{}
	if err := parsed.Claims(key, &claims); err != nil {
		return nil, attemptNoMatch, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	exp, ok := numericDate(claims["exp"])
	if !ok {
		return nil, attemptStop, ErrMissingExpiryClaim
	}
	if exp.Add(leeway).Before(now) {
		return nil, attemptStop, fmt.Errorf("%w: exp %s is beyond the %s leeway", ErrTokenExpired, exp.UTC().Format(time.RFC3339), leeway)
	}
	return claims, attemptMatched, nil
}

// ParseUnverified decodes the claims of a compact JWT without any
// signature check. It exists for trusted/offline scenarios selected by
// explicit configuration; it provides no authenticity guarantee
// whatsoever and must never be used as a fallback from a failed
// verification.
func ParseUnverified(token string) (map[string]interface{}, error) {
	const op = "jwt.ParseUnverified"
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%s: %w: expected header.payload.signature, got %d segment(s)", op, ErrMalformedToken, len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedToken, err)
	}
	claims := map[string]interface{}{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedToken, err)
	}
	return claims, nil
}

// numericDate converts a JSON NumericDate claim value to a time.
func numericDate(v interface{}) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(i, 0), true
	}
	return time.Time{}, false
}

// newClient creates an http client which will use the optional CA
// certificate PEM if provided, otherwise it will use the installed
// system CA chain.
func newClient(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()
	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}
