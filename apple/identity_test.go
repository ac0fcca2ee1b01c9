// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func Test_extractIdentity(t *testing.T) {
	t.Parallel()
	logger := hclog.NewNullLogger()
	claims := map[string]interface{}{
		"sub":   "001234.abc123def456.0123",
		"email": "claims@example.com",
	}

	tests := []struct {
		name    string
		claims  map[string]interface{}
		rawUser []byte
		want    Identity
	}{
		{
			name:   "claims-only",
			claims: claims,
			want: Identity{
				ID:    "001234.abc123def456.0123",
				Email: "claims@example.com",
			},
		},
		{
			name:    "full-user-payload",
			claims:  claims,
			rawUser: []byte(`{"name":{"firstName":"Grace","lastName":"Hopper"},"email":"payload@example.com"}`),
			want: Identity{
				ID:          "001234.abc123def456.0123",
				Email:       "claims@example.com",
				FirstName:   "Grace",
				LastName:    "Hopper",
				DisplayName: "Grace Hopper",
			},
		},
		{
			name:    "first-name-only",
			claims:  claims,
			rawUser: []byte(`{"name":{"firstName":"Grace"}}`),
			want: Identity{
				ID:          "001234.abc123def456.0123",
				Email:       "claims@example.com",
				FirstName:   "Grace",
				DisplayName: "Grace",
			},
		},
		{
			name:    "email-claim-missing-falls-back-to-payload",
			claims:  map[string]interface{}{"sub": "001234.abc123def456.0123"},
			rawUser: []byte(`{"email":"payload@example.com"}`),
			want: Identity{
				ID:    "001234.abc123def456.0123",
				Email: "payload@example.com",
			},
		},
		{
			name:    "unparseable-payload-ignored",
			claims:  claims,
			rawUser: []byte(`{"name":`),
			want: Identity{
				ID:    "001234.abc123def456.0123",
				Email: "claims@example.com",
			},
		},
		{
			name:   "no-email-anywhere",
			claims: map[string]interface{}{"sub": "001234.abc123def456.0123"},
			want: Identity{
				ID: "001234.abc123def456.0123",
			},
		},
		{
			name:   "non-string-email-claim",
			claims: map[string]interface{}{"sub": "001234.abc123def456.0123", "email": 42},
			want: Identity{
				ID: "001234.abc123def456.0123",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := extractIdentity(tt.claims, tt.rawUser, logger)
			assert.Equal(t, &tt.want, got)
		})
	}
}
