// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"
)

// TestGenerateECKey generates the kind of EC P-256 signing key Apple
// issues for client secrets, returning the key and its PEM encoding
// (PKCS#8, as the developer portal ships it).
func TestGenerateECKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	require := require.New(t)
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// TestGenerateRSAKey generates an id_token signing key of the kind the
// provider publishes in its JWKS.
func TestGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// TestJWK wraps an RSA public key as the JWKS entry the provider would
// publish for it.
func TestJWK(key *rsa.PrivateKey, kid string) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       key.Public(),
		KeyID:     kid,
		Algorithm: "RS256",
		Use:       "sig",
	}
}

// TestSignIDToken bundles the provided claims into an RS256-signed
// id_token.
func TestSignIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]interface{}) string {
	t.Helper()
	require := require.New(t)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid),
	)
	require.NoError(err)
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(err)
	return raw
}
