// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := AccessToken("super-secret")
	assert.Equal(RedactedAccessToken, tk.String())
	assert.Equal(RedactedAccessToken, fmt.Sprintf("%s", tk))
	assert.Equal(RedactedAccessToken, fmt.Sprintf("%v", tk))

	data, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equal(`"`+RedactedAccessToken+`"`, string(data))
}

func TestIdToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := IdToken("super-secret")
	assert.Equal(RedactedIdToken, tk.String())
	assert.Equal(RedactedIdToken, fmt.Sprintf("%s", tk))
	assert.Equal(RedactedIdToken, fmt.Sprintf("%v", tk))

	data, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equal(`"`+RedactedIdToken+`"`, string(data))
}

func TestRefreshToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := RefreshToken("super-secret")
	assert.Equal(RedactedRefreshToken, tk.String())
	assert.Equal(RedactedRefreshToken, fmt.Sprintf("%s", tk))
	assert.Equal(RedactedRefreshToken, fmt.Sprintf("%v", tk))

	data, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equal(`"`+RedactedRefreshToken+`"`, string(data))
}

func TestToken_Redaction_InStruct(t *testing.T) {
	t.Parallel()
	tk := &Token{
		AccessToken:  "at-secret",
		RefreshToken: "rt-secret",
		IdToken:      "idt-secret",
	}
	data, err := json.Marshal(tk)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"zero-expiry-never-expires", time.Time{}, false},
		{"future", time.Now().Add(time.Hour), false},
		{"past", time.Now().Add(-time.Hour), true},
		{"within-skew", time.Now().Add(5 * time.Second), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tk := &Token{AccessToken: "at", Expiry: tt.expiry}
			assert.Equal(t, tt.want, tk.Expired())
		})
	}
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()
	var nilToken *Token
	assert.False(t, nilToken.Valid())
	assert.False(t, (&Token{}).Valid())
	assert.False(t, (&Token{AccessToken: "at", Expiry: time.Now().Add(-time.Hour)}).Valid())
	assert.True(t, (&Token{AccessToken: "at"}).Valid())
	assert.True(t, (&Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}).Valid())
}
