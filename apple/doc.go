// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// Package apple provides Sign in with Apple using the OAuth2
// authorization code flow with OIDC id_tokens. Apple's endpoints are
// fixed, not discovered, and the client authenticates itself to the
// token endpoint with a freshly minted ES256 JWT (see the clientsecret
// package) rather than a static secret.
//
// The flow is a synchronous request/response sequence:
// AuthURL -> Exchange -> Identity (which fetches the provider's JWKS,
// verifies the stored id_token and extracts the user's identity).
package apple
