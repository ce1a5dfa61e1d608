// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ProtocolVersion identifies a protocol operator version (spec §4.1). The
// zero value is never valid; use the named constants.
type ProtocolVersion string

const (
	ProtocolVersion001 ProtocolVersion = "001"
	ProtocolVersion002 ProtocolVersion = "002"
	ProtocolVersion003 ProtocolVersion = "003"
	ProtocolVersion004 ProtocolVersion = "004"

	// LatestProtocolVersion is the version new root keys and items keys are
	// created under.
	LatestProtocolVersion = ProtocolVersion004

	// LastNonRootItemsKeyVersion is the newest version whose items still
	// have their per-item key wrapped directly by the root key rather than
	// by a synced ItemsKey (spec §4.1 "003").
	LastNonRootItemsKeyVersion = ProtocolVersion003
)

// CompareVersions gives the total order over protocol versions described in
// spec §4.1. It returns -1, 0, or 1 the way [strings.Compare] would, ordering
// by the natural numeric order of the three-digit version string.
func CompareVersions(a, b ProtocolVersion) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}

// IsVersionNewerThanLibraryVersion reports whether v postdates the newest
// version this library knows how to produce.
func IsVersionNewerThanLibraryVersion(v ProtocolVersion) bool {
	return CompareVersions(v, LatestProtocolVersion) > 0
}

// IsProtocolVersionOutdated reports whether v is old enough that new
// payloads should no longer be encrypted under it, per the expiry dates in
// spec §4.1 (001 expired 2018-01-01, 002 expired 2020-01-01).
func IsProtocolVersionOutdated(v ProtocolVersion) bool {
	return v == ProtocolVersion001 || v == ProtocolVersion002
}

// KeyParams is the portable descriptor needed to re-derive a key from a
// password (spec §3 "KeyParams"). Which of the KDF-specific fields are
// populated depends on Version: 001-003 use PBKDF2Cost, 004 uses the
// Argon2-specific fields.
type KeyParams struct {
	Identifier string          `json:"identifier"`
	Version    ProtocolVersion `json:"version"`

	// PBKDF2Salt and PBKDF2Cost are used by versions 001-003.
	PBKDF2Salt string `json:"pw_salt,omitempty"`
	PBKDF2Cost int    `json:"pw_cost,omitempty"`

	// Argon2Salt, Argon2Time, Argon2Memory, Argon2Threads are used by
	// version 004.
	Argon2Salt    string `json:"pw_nonce,omitempty"`
	Argon2Time    uint32 `json:"argon2_time,omitempty"`
	Argon2Memory  uint32 `json:"argon2_memory,omitempty"`
	Argon2Threads uint8  `json:"argon2_threads,omitempty"`
}

// RootKey is the password-derived key that anchors the client's crypto
// state (spec §3 "RootKey"). It never leaves RAM in this form; persisted
// forms are always version-stamped and, depending on KeyMode, wrapped by a
// wrapping key.
type RootKey struct {
	MasterKey              []byte          `json:"-"`
	DataAuthenticationKey  []byte          `json:"-"`
	Version                ProtocolVersion `json:"version"`
}

// Zero reports whether r carries no key material, the state of a freshly
// constructed RootKey value.
func (r RootKey) Zero() bool {
	return len(r.MasterKey) == 0
}

// ItemsKeyContent is the decrypted content of an ItemsKey item (spec §3
// "ItemsKey").
type ItemsKeyContent struct {
	ItemsKey              string          `json:"itemsKey"`
	DataAuthenticationKey string          `json:"dataAuthenticationKey,omitempty"`
	Version               ProtocolVersion `json:"version"`
	IsDefault              bool            `json:"isDefault"`
}
