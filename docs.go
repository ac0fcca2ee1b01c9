// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// hybridauth provides a collection of related packages which enable
// federated authentication against third-party identity providers. The
// apple package implements Sign in with Apple: the OAuth2 authorization
// code flow extended with OIDC id_tokens, where the client authenticates
// itself to the provider with a short-lived ES256 JWT in place of a
// static client secret.
//
// See README.md
package hybridauth
