// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vissimo-group/hybridauth/apple/clientsecret"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	_, keyPEM := TestGenerateECKey(t)

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("com.example.app", "TEAM123456", "KEY1234567", "https://example.com/callback",
			WithPrivateKeyPEM(keyPEM))
		require.NoError(err)
		assert.Equal(ResponseModeFormPost, c.responseMode())
		assert.Equal(DefaultScopes, c.scopes())
		assert.Equal(60*time.Second, c.Leeway)
		assert.False(c.SkipIDTokenVerification)
		assert.Equal(AuthorizeEndpoint, c.authorizeURL())
		assert.Equal(TokenEndpoint, c.tokenURL())
		assert.Equal(KeysEndpoint, c.keysURL())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("com.example.app", "TEAM123456", "KEY1234567", "https://example.com/callback",
			WithPrivateKeyPEM(keyPEM),
			WithScopes("email"),
			WithResponseMode(ResponseModeQuery),
			WithLeeway(5*time.Second),
			WithSkipIDTokenVerification(),
			WithEndpoints("https://local/auth", "https://local/token", "https://local/keys"),
		)
		require.NoError(err)
		assert.Equal([]string{"email"}, c.scopes())
		assert.Equal(ResponseModeQuery, c.responseMode())
		assert.Equal(5*time.Second, c.Leeway)
		assert.True(c.SkipIDTokenVerification)
		assert.Equal("https://local/keys", c.keysURL())
	})

	tests := []struct {
		name        string
		clientID    string
		teamID      string
		keyID       string
		redirectURL string
		opt         []Option
		wantErr     error
	}{
		{
			name: "missing-team-id",
			clientID: "com.example.app", keyID: "KEY1234567", redirectURL: "https://example.com/cb",
			opt:     []Option{WithPrivateKeyPEM(keyPEM)},
			wantErr: clientsecret.ErrMissingTeamID,
		},
		{
			name:   "missing-client-id",
			teamID: "TEAM123456", keyID: "KEY1234567", redirectURL: "https://example.com/cb",
			opt:     []Option{WithPrivateKeyPEM(keyPEM)},
			wantErr: clientsecret.ErrMissingClientID,
		},
		{
			name:     "missing-key-id",
			clientID: "com.example.app", teamID: "TEAM123456", redirectURL: "https://example.com/cb",
			opt:     []Option{WithPrivateKeyPEM(keyPEM)},
			wantErr: clientsecret.ErrMissingKeyID,
		},
		{
			name:     "missing-key-material",
			clientID: "com.example.app", teamID: "TEAM123456", keyID: "KEY1234567",
			redirectURL: "https://example.com/cb",
			wantErr:     clientsecret.ErrMissingKeyFile,
		},
		{
			name:     "missing-redirect-url",
			clientID: "com.example.app", teamID: "TEAM123456", keyID: "KEY1234567",
			opt:     []Option{WithPrivateKeyPEM(keyPEM)},
			wantErr: ErrInvalidParameter,
		},
		{
			name:     "invalid-response-mode",
			clientID: "com.example.app", teamID: "TEAM123456", keyID: "KEY1234567",
			redirectURL: "https://example.com/cb",
			opt:         []Option{WithPrivateKeyPEM(keyPEM), WithResponseMode("web_message")},
			wantErr:     ErrInvalidResponseMode,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfig(tt.clientID, tt.teamID, tt.keyID, tt.redirectURL, tt.opt...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	t.Run("nil-config", func(t *testing.T) {
		t.Parallel()
		var c *Config
		assert.ErrorIs(t, c.Validate(), ErrNilParameter)
	})
	t.Run("aggregates-all-problems", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)
		c := &Config{}
		err := c.Validate()
		assert.ErrorIs(err, clientsecret.ErrMissingTeamID)
		assert.ErrorIs(err, clientsecret.ErrMissingClientID)
		assert.ErrorIs(err, clientsecret.ErrMissingKeyID)
		assert.ErrorIs(err, clientsecret.ErrMissingKeyFile)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestConfig_HttpClient(t *testing.T) {
	t.Parallel()
	t.Run("default", func(t *testing.T) {
		t.Parallel()
		c := &Config{}
		client, err := c.HttpClient()
		require.NoError(t, err)
		require.NotNil(t, client)
	})
	t.Run("invalid-ca", func(t *testing.T) {
		t.Parallel()
		c := &Config{ProviderCA: "not a pem"}
		_, err := c.HttpClient()
		assert.ErrorIs(t, err, ErrInvalidCACert)
	})
}
