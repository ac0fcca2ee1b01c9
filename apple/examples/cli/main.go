// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// Command cli walks through a full Sign in with Apple login from the
// terminal: it prints the authorization URL, waits for Apple's
// form_post callback on a local listener, exchanges the code and
// prints the resulting identity.
//
// Configuration comes from the environment (or a .env file in the
// working directory):
//
//	APPLE_CLIENT_ID  the Services ID registered with Apple
//	APPLE_TEAM_ID    the 10-character developer team identifier
//	APPLE_KEY_ID     the 10-character key identifier
//	APPLE_KEY_FILE   path to the .p8 private key downloaded from Apple
//	APPLE_PORT       local port to listen on for the callback
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/vissimo-group/hybridauth/apple"
)

const (
	clientIDEnv = "APPLE_CLIENT_ID"
	teamIDEnv   = "APPLE_TEAM_ID"
	keyIDEnv    = "APPLE_KEY_ID"
	keyFileEnv  = "APPLE_KEY_FILE"
	portEnv     = "APPLE_PORT"
)

func envConfig() (map[string]string, error) {
	const op = "envConfig"
	env := map[string]string{
		clientIDEnv: os.Getenv(clientIDEnv),
		teamIDEnv:   os.Getenv(teamIDEnv),
		keyIDEnv:    os.Getenv(keyIDEnv),
		keyFileEnv:  os.Getenv(keyFileEnv),
		portEnv:     os.Getenv(portEnv),
	}
	for k, v := range env {
		if v == "" {
			return nil, fmt.Errorf("%s: %s is empty", op, k)
		}
	}
	return env, nil
}

type callbackResult struct {
	code string
	user []byte
	err  error
}

func main() {
	skipVerify := flag.Bool("skip-verify", false, "decode the id_token claims without signature verification")
	scopes := flag.String("scopes", "", "comma separated scopes to request instead of the defaults")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "apple-cli",
		Level: hclog.Info,
	})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error("unable to load .env file", "error", err)
		return
	}
	env, err := envConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}

	redirectURL := fmt.Sprintf("https://localhost:%s/callback", env[portEnv])
	opts := []apple.Option{
		apple.WithKeyFile(env[keyFileEnv]),
		apple.WithLogger(logger),
	}
	if *skipVerify {
		opts = append(opts, apple.WithSkipIDTokenVerification())
	}
	if *scopes != "" {
		var s []string
		for _, scope := range strings.Split(*scopes, ",") {
			s = append(s, strings.TrimSpace(scope))
		}
		opts = append(opts, apple.WithScopes(s...))
	}

	c, err := apple.NewConfig(env[clientIDEnv], env[teamIDEnv], env[keyIDEnv], redirectURL, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	p, err := apple.New(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}

	state, err := apple.NewState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	nonce, err := apple.NewNonce()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	authURL, err := p.AuthURL(state, apple.WithNonce(nonce))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting auth url: %s\n", err)
		return
	}

	// handle ctrl-c while waiting for the callback
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt)
	defer signal.Stop(sigintCh)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		// Apple's default response_mode is form_post
		if err := req.ParseForm(); err != nil {
			resultCh <- callbackResult{err: fmt.Errorf("unable to parse callback: %w", err)}
			return
		}
		if errCode := req.FormValue("error"); errCode != "" {
			resultCh <- callbackResult{err: fmt.Errorf("authorization failed: %s", errCode)}
			return
		}
		if req.FormValue("state") != state {
			resultCh <- callbackResult{err: errors.New("state mismatch in callback")}
			return
		}
		fmt.Fprintln(w, "Login received. You can return to the terminal.")
		resultCh <- callbackResult{
			code: req.FormValue("code"),
			user: []byte(req.FormValue("user")),
		}
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", env[portEnv]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	defer listener.Close()
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server stopped", "error", err)
		}
	}()
	defer srv.Close()

	fmt.Fprintf(os.Stderr, "Complete the login with Apple in your browser:\n\n    %s\n\n", authURL)

	var result callbackResult
	select {
	case result = <-resultCh:
	case <-sigintCh:
		fmt.Fprintln(os.Stderr, "interrupted")
		return
	case <-time.After(2 * time.Minute):
		fmt.Fprintln(os.Stderr, "timed out waiting for the callback")
		return
	}
	if result.err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", result.err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tk, err := p.Exchange(ctx, result.code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchange failed: %s\n", err)
		return
	}
	logger.Info("exchanged authorization code", "token_type", tk.TokenType)

	var identityOpts []apple.Option
	if len(result.user) > 0 {
		identityOpts = append(identityOpts, apple.WithUserPayload(result.user))
	}
	identity, err := p.Identity(ctx, identityOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity failed: %s\n", err)
		return
	}

	out, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(os.Stdout, "%s\n", out)
}
