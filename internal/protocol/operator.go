// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import "github.com/corevault-io/core/models"

// Operator is implemented by each protocol version (spec §4.1). The
// service memoizes one instance per version and dispatches to it by the
// payload's (or key's) version.
type Operator interface {
	// Version reports the protocol version this operator implements.
	Version() models.ProtocolVersion

	// DeriveRootKey re-derives a RootKey from identifier and password using
	// the KDF parameters in params.
	DeriveRootKey(identifier, password string, params models.KeyParams) (models.RootKey, error)

	// CreateRootKey derives a brand-new RootKey for identifier and
	// password, generating fresh KDF parameters (a random salt/nonce).
	CreateRootKey(identifier, password string) (models.RootKey, models.KeyParams, error)

	// CreateItemsKey generates a fresh ItemsKey content value appropriate
	// for this version. For versions <= 003 (spec §4.1, §4.4) the content
	// mirrors the root key material rather than containing independent
	// randomness, since those versions have no cryptographic separation
	// between the root key and per-item keys.
	CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error)

	// EncryptPayload encrypts p's content (and, for versions <= 003, wraps
	// a fresh per-item key under key) using key as the wrapping/items key.
	// If p is already flagged ErrorDecrypting, it is returned unchanged
	// (spec §4.1: never re-encrypt possibly-corrupt ciphertext).
	EncryptPayload(p models.Payload, key []byte) (models.Payload, error)

	// DecryptPayload decrypts p's content using key. On any authentication
	// or framing failure it returns p with ErrorDecrypting set and Content
	// preserved as-is, and a non-nil error the caller may log but must not
	// propagate to the user (spec §4.1, §7).
	DecryptPayload(p models.Payload, key []byte) (models.Payload, error)
}

// rootKeyBytes concatenates a RootKey's master and auth key material into
// the single byte slice the CBC-family operators (001-003) use as their
// root wrapping key.
func rootKeyBytes(r models.RootKey) []byte {
	out := make([]byte, 0, len(r.MasterKey)+len(r.DataAuthenticationKey))
	out = append(out, r.MasterKey...)
	out = append(out, r.DataAuthenticationKey...)
	return out
}
