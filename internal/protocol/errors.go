// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import "errors"

var (
	// ErrDecryptFailure is the generic sentinel wrapped whenever an operator
	// cannot authenticate or decode a ciphertext. Callers should not surface
	// it to the user directly (spec §7): the payload is flagged
	// ErrorDecrypting instead and the error stays internal to the batch
	// operation that produced it.
	ErrDecryptFailure = errors.New("protocol: decrypt failure")

	// ErrUUIDMismatch is a specific DecryptFailure cause: the uuid embedded
	// in the authenticated envelope does not match the outer payload's
	// uuid, which spec §4.1 treats as a tamper signal.
	ErrUUIDMismatch = errors.New("protocol: uuid mismatch between envelope and payload")

	// ErrUnsupportedVersion is returned when no operator is registered for
	// a requested protocol version.
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrNoKeyAvailable is returned by the service when encryption is
	// required but neither an ItemsKey nor the root key can be resolved
	// (spec §4.2 "Key selection for encryption").
	ErrNoKeyAvailable = errors.New("protocol: no key available")

	// ErrMalformedCiphertext is a DecryptFailure cause: the ciphertext
	// string does not match the expected version framing at all (wrong
	// number of fields, bad base64/hex).
	ErrMalformedCiphertext = errors.New("protocol: malformed ciphertext")
)
