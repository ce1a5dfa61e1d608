// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package collaborators

import "github.com/google/uuid"

// DefaultUUIDGenerator is the stock UUIDGenerator used whenever a host does
// not supply its own (grounded on the teacher's utils.UUIDGenerator): it
// prefers time-ordered UUIDv7 and falls back to a random UUIDv4 if v7
// generation fails.
type DefaultUUIDGenerator struct{}

// NewDefaultUUIDGenerator returns a stateless DefaultUUIDGenerator.
func NewDefaultUUIDGenerator() *DefaultUUIDGenerator {
	return &DefaultUUIDGenerator{}
}

// Generate returns a fresh UUID string.
func (g *DefaultUUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}
