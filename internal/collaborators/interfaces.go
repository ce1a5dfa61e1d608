// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package collaborators defines the external-dependency seams spec §6 names
// as out of this library's scope: the host application supplies concrete
// implementations (a mobile keychain, a native "are you sure" prompt, a
// platform RNG audit hook), and this library only depends on the narrow
// interfaces below. A couple of default implementations are provided for
// environments that have no special platform requirements (the bundled CLI
// demo among them).
package collaborators

import "context"

// Device exposes host-platform facts the sync and key-management layers
// need but cannot determine themselves (spec §6 "Device").
type Device interface {
	// Identifier returns a stable per-install identifier sent to the server
	// as part of session metadata.
	Identifier() string

	// IsOnline reports current network reachability, consulted before
	// starting a sync pass rather than treating every attempt as a failure
	// that must be retried.
	IsOnline() bool
}

// CryptoPrimitives abstracts the raw randomness source the protocol
// operators build on (spec §6 "CryptoPrimitives"). Supplying an alternate
// implementation lets a host substitute a hardware RNG or inject
// determinism under test.
type CryptoPrimitives interface {
	// RandomBytes returns n cryptographically random bytes.
	RandomBytes(n int) ([]byte, error)
}

// Challenge models an interactive prompt the key-management layer may need
// to raise mid-operation — e.g. "enter your passcode to unlock" — without
// this library knowing anything about UI toolkits (spec §6 "Challenge").
type Challenge interface {
	// Prompt asks the host to collect a value (passcode, biometric
	// confirmation) described by reason, blocking until the host responds
	// or ctx is cancelled.
	Prompt(ctx context.Context, reason string) (string, error)
}

// UUIDGenerator creates client-side identifiers (spec §6 "UUIDGenerator").
// internal/item.UUIDSource matches it structurally.
type UUIDGenerator interface {
	Generate() string
}
