// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package storage implements the client's local persistence façade
// (spec §4.7 "Storage Façade"). Three value domains share one key-value
// table, told apart by a domain column: Wrapped (encrypted payload bytes), Unwrapped (the decrypted
// in-memory mirror, never persisted by itself), and Nonwrapped (values that
// are always plaintext on disk, e.g. key params and the wrapped root key
// blob).
//
// Reads and writes outside of the Launched application stage are a
// programmer error: the in-memory caller is expected to gate access the
// same way the teacher's client service gates vault access on an
// authenticated session.
package storage

import "errors"

// ErrNotLaunched is returned by Facade methods when storage is accessed
// before the host application has reached the Launched lifecycle stage
// (spec §4.7 "Reads/writes outside of launched state are an error").
var ErrNotLaunched = errors.New("storage: not launched")

// ErrEphemeral names an attempt to persist to a namespace that has been
// marked Ephemeral (spec §4.7). SQLiteFacade does not return it: its writes
// under the ephemeral policy return nil without persisting anything.
var ErrEphemeral = errors.New("storage: namespace is ephemeral, persistence disabled")

// StoragePersistencePolicy controls whether a namespace's values survive
// past the current process (spec §4.7).
type StoragePersistencePolicy int

const (
	// PersistenceDefault writes through to disk on every Set call.
	PersistenceDefault StoragePersistencePolicy = iota
	// PersistenceEphemeral clears disk immediately and skips all future
	// persistence; SQLiteFacade keeps no copy of the values it skips.
	PersistenceEphemeral
)

// StorageEncryptionPolicy controls whether the Wrapped domain's payloads
// are actually encrypted at rest or written as plaintext (spec §4.7).
type StorageEncryptionPolicy int

const (
	// EncryptionDefault is the default policy. The facade itself does not
	// encrypt: Wrapped values are stored as the caller passes them, and
	// SQLiteFacade does not consult this policy.
	EncryptionDefault StorageEncryptionPolicy = iota
	// EncryptionDisabled records that a host has opted out of encryption at
	// rest (e.g. ephemeral test harnesses); SQLiteFacade stores values the
	// same way under either policy.
	EncryptionDisabled
)

// Domain names one of the three value domains a Facade keys storage under.
type Domain string

const (
	// DomainWrapped holds encrypted payload content keyed by uuid.
	DomainWrapped Domain = "wrapped"
	// DomainUnwrapped holds the decrypted in-memory mirror of DomainWrapped.
	// It is never itself written to disk; a Facade implementation may keep
	// it purely in RAM.
	DomainUnwrapped Domain = "unwrapped"
	// DomainNonwrapped holds values that are always plaintext on disk:
	// key params, the wrapped root key blob, and the wrapper key params.
	DomainNonwrapped Domain = "nonwrapped"
)

// Well-known Nonwrapped keys (spec §6 "On-disk layout").
const (
	KeyWrappedRootKey        = "wrapped_root_key"
	KeyRootKeyWrapperParams  = "root_key_wrapper_key_params"
	KeyRootKeyParams         = "root_key_params"
	KeyStorageObject         = "storage_object"
)

// Facade is the storage contract the application core depends on (spec
// §4.7). A namespace is a caller-chosen string partitioning storage for
// multiple accounts/profiles sharing one device.
type Facade interface {
	// Launch marks namespace as ready for reads/writes, applying the given
	// policies. Calling Launch a second time for the same namespace
	// re-applies the policies (used when a policy changes mid-session,
	// e.g. after AddPasscodeWrapper).
	Launch(namespace string, persistence StoragePersistencePolicy, encryption StorageEncryptionPolicy) error

	// SetValue writes value under (namespace, domain, key). When domain is
	// DomainWrapped and the namespace's encryption policy is
	// EncryptionDefault, value is expected to already be the
	// version-prefixed ciphertext string produced by the protocol layer —
	// the facade does not encrypt on the caller's behalf.
	SetValue(namespace string, domain Domain, key string, value []byte) error

	// GetValue reads the value stored under (namespace, domain, key). ok
	// is false when no value has been set.
	GetValue(namespace string, domain Domain, key string) (value []byte, ok bool, err error)

	// DeleteValue removes the value at (namespace, domain, key), if any.
	DeleteValue(namespace string, domain Domain, key string) error

	// SavePayload upserts one payload's wrapped bytes into the raw payload
	// table for namespace, keyed by uuid (spec §6 "raw payload table for
	// items keyed by uuid").
	SavePayload(namespace, uuid string, content []byte, deleted bool) error

	// AllPayloads returns every stored payload's raw bytes for namespace,
	// keyed by uuid.
	AllPayloads(namespace string) (map[string][]byte, error)

	// DeletePayload removes one payload's row from the raw payload table.
	DeletePayload(namespace, uuid string) error

	// ClearNamespace wipes every domain's data for namespace immediately,
	// used on sign-out (spec §8 "After sign-out ... no wrapped/unwrapped
	// storage values ... remain").
	ClearNamespace(namespace string) error

	// Close releases any underlying resources (file handles, connections).
	Close() error
}
