// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package clientsecret

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerateKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	require := require.New(t)
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func testWriteKeyFile(t *testing.T, pemBytes []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AuthKey_TESTKEY123.p8")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return path
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, keyPEM := testGenerateKey(t)
	keyFile := testWriteKeyFile(t, keyPEM)

	tests := []struct {
		name     string
		teamID   string
		clientID string
		keyID    string
		keyFile  string
		opt      []Option
		wantErr  error
	}{
		{
			name:   "valid-from-file",
			teamID: "TEAM123456", clientID: "com.example.app", keyID: "KEY1234567",
			keyFile: keyFile,
		},
		{
			name:   "valid-from-pem",
			teamID: "TEAM123456", clientID: "com.example.app", keyID: "KEY1234567",
			opt: []Option{WithPrivateKeyPEM(keyPEM)},
		},
		{
			name:     "missing-team-id",
			clientID: "com.example.app", keyID: "KEY1234567", keyFile: keyFile,
			wantErr: ErrMissingTeamID,
		},
		{
			name:   "missing-client-id",
			teamID: "TEAM123456", keyID: "KEY1234567", keyFile: keyFile,
			wantErr: ErrMissingClientID,
		},
		{
			name:   "missing-key-id",
			teamID: "TEAM123456", clientID: "com.example.app", keyFile: keyFile,
			wantErr: ErrMissingKeyID,
		},
		{
			name:   "missing-key-file",
			teamID: "TEAM123456", clientID: "com.example.app", keyID: "KEY1234567",
			wantErr: ErrMissingKeyFile,
		},
		{
			name:   "key-file-not-found",
			teamID: "TEAM123456", clientID: "com.example.app", keyID: "KEY1234567",
			keyFile: filepath.Join(t.TempDir(), "nope.p8"),
			wantErr: ErrKeyFileNotFound,
		},
		{
			name:   "garbage-key-material",
			teamID: "TEAM123456", clientID: "com.example.app", keyID: "KEY1234567",
			opt:     []Option{WithPrivateKeyPEM([]byte("not a pem"))},
			wantErr: ErrInvalidPrivateKey,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			cs, err := New(tt.teamID, tt.clientID, tt.keyID, tt.keyFile, tt.opt...)
			if tt.wantErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErr)
				assert.Nil(cs)
				return
			}
			require.NoError(err)
			require.NotNil(cs)
		})
	}

	t.Run("rejects-non-p256-keys", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)

		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(err)
		der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
		require.NoError(err)
		rsaPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

		_, err = New("TEAM123456", "com.example.app", "KEY1234567", "",
			WithPrivateKeyPEM(rsaPEM))
		assert.ErrorIs(err, ErrInvalidPrivateKey)

		p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(err)
		der, err = x509.MarshalPKCS8PrivateKey(p384)
		require.NoError(err)
		p384PEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

		_, err = New("TEAM123456", "com.example.app", "KEY1234567", "",
			WithPrivateKeyPEM(p384PEM))
		assert.ErrorIs(err, ErrInvalidPrivateKey)
	})

	t.Run("accepts-sec1-keys", func(t *testing.T) {
		t.Parallel()
		require := require.New(t)
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(err)
		der, err := x509.MarshalECPrivateKey(key)
		require.NoError(err)
		sec1PEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

		cs, err := New("TEAM123456", "com.example.app", "KEY1234567", "",
			WithPrivateKeyPEM(sec1PEM))
		require.NoError(err)
		require.NotNil(cs)
	})
}

func TestClientSecretBare(t *testing.T) {
	t.Parallel()
	cs := &ClientSecret{}
	_, err := cs.Token()
	assert.ErrorIs(t, err, ErrMissingFuncNow)
}

func TestClientSecret_Token(t *testing.T) {
	t.Parallel()
	key, keyPEM := testGenerateKey(t)
	fixed := time.Unix(1700000000, 0).UTC()

	cs, err := New("TEAM123456", "com.example.app", "KEY1234567", "",
		WithPrivateKeyPEM(keyPEM),
		WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	token, err := cs.Token()
	require.NoError(t, err)

	t.Run("signature-and-header", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		parsed, err := jwt.ParseSigned(token)
		require.NoError(err)
		require.Len(parsed.Headers, 1)
		assert.Equal("ES256", parsed.Headers[0].Algorithm)
		assert.Equal("KEY1234567", parsed.Headers[0].KeyID)

		var claims jwt.Claims
		require.NoError(parsed.Claims(key.Public(), &claims))
		assert.Equal("TEAM123456", claims.Issuer)
		assert.Equal("com.example.app", claims.Subject)
		assert.Equal(jwt.Audience{Audience}, claims.Audience)
		assert.Equal(fixed.Unix(), claims.IssuedAt.Time().Unix())
		assert.Equal(int64(180*86400), claims.Expiry.Time().Unix()-claims.IssuedAt.Time().Unix())
	})

	t.Run("claims-round-trip", func(t *testing.T) {
		// decode the payload independently of any signature check
		assert, require := assert.New(t), require.New(t)
		parts := strings.Split(token, ".")
		require.Len(parts, 3)
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(err)

		var claims map[string]interface{}
		require.NoError(json.Unmarshal(payload, &claims))
		assert.Equal("TEAM123456", claims["iss"])
		assert.Equal("com.example.app", claims["sub"])
		assert.Equal(Audience, claims["aud"])
		assert.Equal(float64(fixed.Unix()), claims["iat"])
		assert.Equal(float64(fixed.Add(Lifetime).Unix()), claims["exp"])
	})

	t.Run("fresh-token-per-call", func(t *testing.T) {
		// same fixed clock, so the only difference would be signature
		// randomness; both must still parse and carry identical claims
		require := require.New(t)
		other, err := cs.Token()
		require.NoError(err)
		_, err = jwt.ParseSigned(other)
		require.NoError(err)
	})
}

func TestClientSecret_TokenExpiredClock(t *testing.T) {
	t.Parallel()
	_, keyPEM := testGenerateKey(t)

	// a clock far in the past still mints; validity is the provider's
	// concern at exchange time
	past := time.Unix(100, 0)
	cs, err := New("TEAM123456", "com.example.app", "KEY1234567", "",
		WithPrivateKeyPEM(keyPEM),
		WithClock(func() time.Time { return past }),
	)
	require.NoError(t, err)
	token, err := cs.Token()
	require.NoError(t, err)

	parsed, err := jwt.ParseSigned(token)
	require.NoError(t, err)
	var claims jwt.Claims
	require.NoError(t, parsed.UnsafeClaimsWithoutVerification(&claims))
	assert.Equal(t, past.Unix(), claims.IssuedAt.Time().Unix())
}

func TestParseECPrivateKeyPEM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "empty", data: nil, wantErr: true},
		{name: "not-pem", data: []byte("hello"), wantErr: true},
		{name: "pem-not-key", data: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("junk")}), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseECPrivateKeyPEM(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrivateKey)
				return
			}
			assert.NoError(t, err)
		})
	}
}
