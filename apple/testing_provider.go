// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package apple

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	josejwt "github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local server which mimics Apple's authorize, token
// and keys endpoints, which makes writing tests for the full flow much
// easier. Use StartTestProvider to create one, then point a Config at
// it with WithEndpoints and WithProviderCA.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	signingKey *rsa.PrivateKey
	keyID      string

	mu               sync.Mutex
	jwks             *jose.JSONWebKeySet
	invalidJWKS      bool
	clientID         string
	teamID           string
	clientPub        *ecdsa.PublicKey
	expectedAuthCode string
	replySubject     string
	replyEmail       string
	customClaims     map[string]interface{}
	idTokenExpiry    time.Time
	omitIDToken      bool
	omitAccessToken  bool
	tokenErrStatus   int
	tokenErrCode     string
	tokenErrDesc     string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider over TLS. The
// server is stopped via t.Cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:            t,
		signingKey:   TestGenerateRSAKey(t),
		keyID:        "test-rsa-kid",
		replySubject: "001234.abc123def456.0123",
		replyEmail:   "user@example.com",
	}
	p.jwks = &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{TestJWK(p.signingKey, p.keyID)}}

	p.httpServer = httptest.NewTLSServer(p)
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()
	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Addr returns the base URL of the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test
// provider's HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// Endpoints returns the authorize, token and keys URLs, in the shape
// Config's WithEndpoints option wants them.
func (p *TestProvider) Endpoints() (authorizeURL, tokenURL, keysURL string) {
	return p.Addr() + "/auth/authorize", p.Addr() + "/auth/token", p.Addr() + "/auth/keys"
}

// SigningKey returns the RSA key and kid the provider signs id_tokens
// with.
func (p *TestProvider) SigningKey() (*rsa.PrivateKey, string) {
	return p.signingKey, p.keyID
}

// SetClientCreds configures the client identifiers the provider checks
// the client secret assertion against.
func (p *TestProvider) SetClientCreds(clientID, teamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.teamID = teamID
}

// SetClientPublicKey registers the EC public key used to verify the
// client secret's signature on /auth/token. Without one, only the
// assertion's shape is checked.
func (p *TestProvider) SetClientPublicKey(pub *ecdsa.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientPub = pub
}

// SetExpectedAuthCode configures the only authorization code
// /auth/token will accept.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetCustomClaims lets you set additional claims for the issued
// id_token.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetReplySubject overrides the sub claim of the issued id_token. An
// empty value omits the claim.
func (p *TestProvider) SetReplySubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetIDTokenExpiry overrides the exp claim of the issued id_token.
func (p *TestProvider) SetIDTokenExpiry(exp time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenExpiry = exp
}

// OmitIDTokens forces an error state where /auth/token does not return
// an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitAccessTokens forces an error state where /auth/token responds
// without an access_token.
func (p *TestProvider) OmitAccessTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitAccessToken = true
}

// SetTokenError makes /auth/token return a structured error response.
func (p *TestProvider) SetTokenError(statusCode int, code, desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenErrStatus = statusCode
	p.tokenErrCode = code
	p.tokenErrDesc = desc
}

// SetJWKS replaces the published key set; keys are served in the
// given order.
func (p *TestProvider) SetJWKS(keys ...jose.JSONWebKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jwks = &jose.JSONWebKeySet{Keys: keys}
	p.invalidJWKS = false
}

// SetInvalidJWKS makes /auth/keys return a body that is not a key set.
func (p *TestProvider) SetInvalidJWKS() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidJWKS = true
}

// SignIDToken issues an id_token the way /auth/token would, for tests
// that want one without running an exchange.
func (p *TestProvider) SignIDToken(t *testing.T) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return TestSignIDToken(t, p.signingKey, p.keyID, p.idTokenClaims())
}

// idTokenClaims builds the claim set for an issued id_token. The
// caller must hold p.mu.
func (p *TestProvider) idTokenClaims() map[string]interface{} {
	now := time.Now()
	exp := now.Add(5 * time.Minute)
	if !p.idTokenExpiry.IsZero() {
		exp = p.idTokenExpiry
	}
	claims := map[string]interface{}{
		"iss":   "https://appleid.apple.com",
		"aud":   p.clientID,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"email": p.replyEmail,
	}
	if p.replySubject != "" {
		claims["sub"] = p.replySubject
	}
	for k, v := range p.customClaims {
		claims[k] = v
	}
	return claims
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// checkClientSecret verifies the client_secret form value is a
// well-formed ES256 assertion with the configured kid and claims. The
// caller must hold p.mu.
func (p *TestProvider) checkClientSecret(secret string) bool {
	parsed, err := josejwt.ParseSigned(secret)
	if err != nil {
		return false
	}
	if len(parsed.Headers) != 1 || parsed.Headers[0].Algorithm != string(jose.ES256) {
		return false
	}
	var claims josejwt.Claims
	if p.clientPub != nil {
		err = parsed.Claims(p.clientPub, &claims)
	} else {
		err = parsed.UnsafeClaimsWithoutVerification(&claims)
	}
	if err != nil {
		return false
	}
	if p.teamID != "" && claims.Issuer != p.teamID {
		return false
	}
	if p.clientID != "" && claims.Subject != p.clientID {
		return false
	}
	return len(claims.Audience) == 1 && claims.Audience[0] == "https://appleid.apple.com"
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	switch req.URL.Path {
	case "/auth/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		redirectURI := qv.Get("redirect_uri")
		if qv.Get("response_type") != "code" || redirectURI == "" || qv.Get("state") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/auth/token":
		w.Header().Set("Content-Type", "application/json")
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.tokenErrStatus != 0 {
			_ = p.writeTokenErrorResponse(w, p.tokenErrStatus, p.tokenErrCode, p.tokenErrDesc)
			return
		}
		switch {
		case req.FormValue("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case p.clientID != "" && req.FormValue("client_id") != p.clientID:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unexpected client_id")
			return
		case !p.checkClientSecret(req.FormValue("client_secret")):
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client_secret is not a valid assertion")
			return
		case req.FormValue("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		}

		reply := struct {
			AccessToken  string `json:"access_token,omitempty"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
			RefreshToken string `json:"refresh_token"`
			IDToken      string `json:"id_token,omitempty"`
		}{
			AccessToken:  "test-access-token",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
			RefreshToken: "test-refresh-token",
			IDToken:      TestSignIDToken(p.t, p.signingKey, p.keyID, p.idTokenClaims()),
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		if p.omitAccessToken {
			reply.AccessToken = ""
		}
		if err := p.writeJSON(w, &reply); err != nil {
			return
		}

	case "/auth/keys":
		w.Header().Set("Content-Type", "application/json")
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.invalidJWKS {
			_, _ = w.Write([]byte("It's not a keyset!"))
			return
		}
		if err := p.writeJSON(w, p.jwks); err != nil {
			return
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
