// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package clientsecret

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

const (
	// Audience is the fixed audience Apple expects in a client secret:
	// the origin of its token endpoint.
	Audience = "https://appleid.apple.com"

	// Lifetime is how long a minted secret stays valid. Apple caps
	// client secrets at six months.
	Lifetime = 180 * 24 * time.Hour
)

// New creates a ClientSecret for a registered client. teamID is the
// 10-character Apple Developer Team ID, clientID the Services ID the
// secret is minted for, keyID the 10-character identifier of the
// signing key, and keyFile the path to the PEM-encoded EC P-256 key
// downloaded from the developer portal.
//
// Supported options:
// * WithPrivateKeyPEM (keyFile may then be empty)
//
// The credentials are validated in order and the first problem found
// is returned: ErrMissingTeamID, ErrMissingClientID, ErrMissingKeyID,
// ErrMissingKeyFile, ErrKeyFileNotFound, then ErrInvalidPrivateKey if
// the key material doesn't parse as an EC P-256 key.
func New(teamID, clientID, keyID, keyFile string, opt ...Option) (*ClientSecret, error) {
	const op = "clientsecret.New"
	cs := &ClientSecret{
		teamID:   teamID,
		clientID: clientID,
		keyID:    keyID,
		keyFile:  keyFile,
		now:      time.Now,
	}
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(cs)
	}
	if err := cs.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cs.loadKey(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// finally, make sure Token() works; this whole thing is useless if
	// it can't sign.
	if _, err := cs.Token(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cs, nil
}

// ClientSecret mints the client_secret JWTs an Apple client presents
// to the token endpoint. A fresh token is minted per exchange and is
// never persisted.
//
// A ClientSecret is immutable once created and safe for concurrent
// use.
type ClientSecret struct {
	teamID   string
	clientID string
	keyID    string
	keyFile  string

	keyPEM []byte
	key    *ecdsa.PrivateKey

	// overwritten for testing
	now func() time.Time
}

// Token mints a compact-serialized client secret JWT: iss is the team
// ID, sub the client ID, aud the fixed Audience, and exp is Lifetime
// past iat. The key ID rides in the "kid" header. Its only side effect
// is reading the key file on first use.
func (c *ClientSecret) Token() (string, error) {
	const op = "ClientSecret.Token"
	if err := c.validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := c.loadKey(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: c.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", c.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrCreatingSigner, err)
	}

	now := c.now().UTC()
	claims := jwt.Claims{
		Issuer:   c.teamID,
		Subject:  c.clientID,
		Audience: jwt.Audience{Audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(Lifetime)),
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("%s: failed to serialize token: %w", op, err)
	}
	return token, nil
}

func (c *ClientSecret) validate() error {
	if c.now == nil {
		return ErrMissingFuncNow
	}
	if c.teamID == "" {
		return ErrMissingTeamID
	}
	if c.clientID == "" {
		return ErrMissingClientID
	}
	if c.keyID == "" {
		return ErrMissingKeyID
	}
	if c.keyFile == "" && len(c.keyPEM) == 0 {
		return ErrMissingKeyFile
	}
	if len(c.keyPEM) == 0 {
		if _, err := os.Stat(c.keyFile); err != nil {
			return fmt.Errorf("%w: %q", ErrKeyFileNotFound, c.keyFile)
		}
	}
	return nil
}

func (c *ClientSecret) loadKey() error {
	if c.key != nil {
		return nil
	}
	raw := c.keyPEM
	if len(raw) == 0 {
		var err error
		raw, err = os.ReadFile(c.keyFile)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrKeyFileNotFound, c.keyFile)
		}
	}
	key, err := parseECPrivateKeyPEM(raw)
	if err != nil {
		return err
	}
	c.key = key
	return nil
}

// parseECPrivateKeyPEM parses an EC P-256 private key from its PEM
// encoding. Apple ships .p8 files in PKCS#8 form; SEC 1 keys are
// accepted too.
func parseECPrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidPrivateKey)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		ecKey, ecErr := x509.ParseECPrivateKey(block.Bytes)
		if ecErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		parsed = ecKey
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidPrivateKey, parsed)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s is not usable with ES256", ErrInvalidPrivateKey, key.Curve.Params().Name)
	}
	return key, nil
}
