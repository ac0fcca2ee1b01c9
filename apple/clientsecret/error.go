// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package clientsecret

import "errors"

var (
	// these may happen due to user error, and are reported in the
	// order the credentials are validated.

	ErrMissingTeamID   = errors.New("missing team ID")
	ErrMissingClientID = errors.New("missing client ID")
	ErrMissingKeyID    = errors.New("missing key ID")
	ErrMissingKeyFile  = errors.New("missing private key file")
	ErrKeyFileNotFound = errors.New("private key file not found")

	// key material errors

	ErrInvalidPrivateKey = errors.New("invalid private key: expected a PEM-encoded EC P-256 key")

	// if these happen, either the user directly instantiated
	// &ClientSecret{} or there's a bug somewhere.

	ErrMissingFuncNow = errors.New("missing now func; please use New()")
	ErrCreatingSigner = errors.New("error creating jwt signer")
)
