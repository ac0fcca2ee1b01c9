// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// Package clientsecret signs the short-lived ES256 JWTs that Apple
// requires in place of a static client secret, A.K.A. private_key_jwt.
// reference: https://oauth.net/private-key-jwt/
//
// Example usage:
//
// cs, err := clientsecret.New("team-id", "client-id", "key-id", "AuthKey.p8")
// secret, err := cs.Token()
package clientsecret
