// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"encoding/json"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Identity is the normalized identity record produced at the end of a
// successful flow. ID is the stable Apple subject for this user and is
// the only field covered by the id_token signature. FirstName,
// LastName and DisplayName come from the unsigned one-time user
// payload when one was supplied: they are untrusted, display-only
// values and must never be used as an authorization input.
type Identity struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
}

// userPayload is the JSON object Apple's client-side flow posts in the
// "user" form field, exactly once, on first authorization.
type userPayload struct {
	Name struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
	Email string `json:"email"`
}

// extractIdentity maps verified claims plus the optional raw user
// payload into an Identity. The payload is parsed permissively: absent
// subfields yield empty strings, and an unparseable payload yields an
// identity without name fields rather than an error.
func extractIdentity(claims map[string]interface{}, rawUser []byte, logger hclog.Logger) *Identity {
	identity := &Identity{}
	identity.ID, _ = claims["sub"].(string)
	identity.Email, _ = claims["email"].(string)

	if len(rawUser) > 0 {
		var user userPayload
		if err := json.Unmarshal(rawUser, &user); err != nil {
			logger.Debug("ignoring unparseable user payload", "error", err)
		} else {
			identity.FirstName = user.Name.FirstName
			identity.LastName = user.Name.LastName
			if identity.Email == "" {
				identity.Email = user.Email
			}
		}
	}
	identity.DisplayName = strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	return identity
}
