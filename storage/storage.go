// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

// Package storage provides the token storage collaborator used by
// provider packages to keep named tokens (access_token, id_token,
// refresh_token, expires_at, ...) between the steps of an
// authentication flow.
package storage

import "sync"

// Storage is a key-value store of named tokens. Implementations must
// be safe for concurrent use: one store may back simultaneous
// authentication attempts.
type Storage interface {
	// Get returns the value stored under key, or "" when absent.
	Get(key string) string

	// Set stores value under key, replacing any previous value.
	Set(key, value string)

	// Delete removes the value stored under key.
	Delete(key string)

	// Clear removes all stored values.
	Clear()
}

// Mem is an in-memory Storage. The zero value is not usable; create
// one with NewMem.
type Mem struct {
	mu sync.RWMutex
	m  map[string]string
}

// ensure that Mem implements the Storage interface
var _ Storage = (*Mem)(nil)

// NewMem creates an empty in-memory Storage.
func NewMem() *Mem {
	return &Mem{m: make(map[string]string)}
}

// Get returns the value stored under key, or "" when absent.
func (s *Mem) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key]
}

// Set stores value under key, replacing any previous value.
func (s *Mem) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes the value stored under key.
func (s *Mem) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Clear removes all stored values.
func (s *Mem) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]string)
}
