// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package keymgr implements the KeyMode state machine of spec §4.3: the
// four-way combination of "is there an account root key" and "is there a
// local passcode wrapper protecting it at rest" that every client-side
// crypto operation is gated on.
//
// The wrapping scheme mirrors the teacher's KEK/DEK pattern
// (internal/crypto/keychain.go): a passcode plus a random salt is run
// through Argon2id to derive a wrapping key, which then protects the root
// key's serialized bytes with AES-256-GCM exactly the way the teacher wraps
// a DEK under a KEK.
package keymgr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/corevault-io/core/models"
)

var (
	// ErrWrongPasscode is returned by Unwrap when the supplied
	// passcode does not open the wrapped root key (AES-GCM tag mismatch).
	ErrWrongPasscode = errors.New("keymgr: wrong passcode")

	// ErrNoWrapper is returned by operations that require a wrapper to be
	// configured (Lock, RemoveWrapper) when none exists.
	ErrNoWrapper = errors.New("keymgr: no passcode wrapper configured")

	// ErrLocked is returned by RootKey-consuming callers when the manager
	// is in a locked state and no root key is available in memory.
	ErrLocked = errors.New("keymgr: root key is locked")
)

const (
	wrapperArgonTime    = 2
	wrapperArgonMemory  = 64 * 1024
	wrapperArgonThreads = 4
	wrapperKeyLen       = 32
)

// wireRootKey is the JSON shape a RootKey takes while wrapped, since
// RootKey itself deliberately excludes its key material from JSON (spec §3:
// "never leaves RAM unwrapped").
type wireRootKey struct {
	MasterKey string                 `json:"mk"`
	AuthKey   string                 `json:"ak"`
	Version   models.ProtocolVersion `json:"v"`
}

// Manager holds the account root key and, optionally, a local passcode
// wrapper that protects it at rest. It satisfies protocol.KeySource's
// RootKey method structurally.
type Manager struct {
	mode models.KeyMode

	root    models.RootKey
	hasRoot bool

	wrapperParams models.KeyParams
	hasWrapper    bool
}

// New returns a Manager in KeyModeNone: no root key, no wrapper.
func New() *Manager {
	return &Manager{mode: models.KeyModeNone}
}

// Mode reports the manager's current KeyMode.
func (m *Manager) Mode() models.KeyMode { return m.mode }

// RootKey returns the currently unlocked root key, if any.
func (m *Manager) RootKey() (models.RootKey, bool) { return m.root, m.hasRoot }

// HasWrapper reports whether a passcode wrapper is configured.
func (m *Manager) HasWrapper() bool { return m.hasWrapper }

// WrapperKeyParams returns the Argon2 parameters used to derive the
// wrapping key, valid only when HasWrapper is true.
func (m *Manager) WrapperKeyParams() models.KeyParams { return m.wrapperParams }

// SetNewRootKey installs root in memory (spec §4.3 "set_new_root_key"),
// transitioning None→RootKeyOnly or WrapperOnly→RootKeyPlusWrapper.
func (m *Manager) SetNewRootKey(root models.RootKey) {
	m.root = root
	m.hasRoot = true
	m.recomputeMode()
}

// ClearRootKey drops the in-memory root key without touching the wrapper,
// transitioning RootKeyOnly→None or RootKeyPlusWrapper→WrapperOnly. Used on
// sign-out.
func (m *Manager) ClearRootKey() {
	m.root = models.RootKey{}
	m.hasRoot = false
	m.recomputeMode()
}

func (m *Manager) recomputeMode() {
	switch {
	case m.hasRoot && m.hasWrapper:
		m.mode = models.KeyModeRootKeyPlusWrapper
	case m.hasRoot:
		m.mode = models.KeyModeRootKeyOnly
	case m.hasWrapper:
		m.mode = models.KeyModeWrapperOnly
	default:
		m.mode = models.KeyModeNone
	}
}

// AddPasscodeWrapper generates a fresh salt and records the Argon2
// parameters the wrapping key is later derived with (passcode itself is not
// used here), transitioning None→WrapperOnly or
// RootKeyOnly→RootKeyPlusWrapper. The wrapped ciphertext itself is produced
// on demand by Lock, not stored here, since the manager always keeps the
// root key available in memory once unwrapped for the life of a session.
func (m *Manager) AddPasscodeWrapper(passcode string) error {
	salt, err := randomSalt(16)
	if err != nil {
		return err
	}
	m.wrapperParams = models.KeyParams{
		Argon2Salt:    salt,
		Argon2Time:    wrapperArgonTime,
		Argon2Memory:  wrapperArgonMemory,
		Argon2Threads: wrapperArgonThreads,
	}
	m.hasWrapper = true
	m.recomputeMode()
	_ = passcode // the passcode itself is never retained; only its derived params matter here.
	return nil
}

// RemovePasscodeWrapper discards the wrapper, transitioning
// WrapperOnly→None or RootKeyPlusWrapper→RootKeyOnly.
func (m *Manager) RemovePasscodeWrapper() error {
	if !m.hasWrapper {
		return ErrNoWrapper
	}
	m.hasWrapper = false
	m.wrapperParams = models.KeyParams{}
	m.recomputeMode()
	return nil
}

// Lock wraps the in-memory root key under the configured passcode wrapper
// and returns the resulting opaque blob for persistence, without clearing
// the in-memory key (spec §4.3's "wrapped" state is a storage-at-rest
// concept; within a single running session the root key stays resident).
func (m *Manager) Lock(passcode string) (string, error) {
	if !m.hasWrapper {
		return "", ErrNoWrapper
	}
	if !m.hasRoot {
		return "", ErrLocked
	}
	key, err := m.deriveWrapperKey(passcode)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(wireRootKey{
		MasterKey: base64.StdEncoding.EncodeToString(m.root.MasterKey),
		AuthKey:   base64.StdEncoding.EncodeToString(m.root.DataAuthenticationKey),
		Version:   m.root.Version,
	})
	if err != nil {
		return "", fmt.Errorf("marshal root key: %w", err)
	}
	blob, err := gcmSeal(key, plaintext)
	if err != nil {
		return "", fmt.Errorf("wrap root key: %w", err)
	}
	return blob, nil
}

// Unwrap recovers the root key from a blob produced by Lock, installing it
// in memory on success (spec §4.3 "unwrap_root_key").
func (m *Manager) Unwrap(passcode, wrapped string, params models.KeyParams) error {
	root, err := m.unwrapInto(passcode, wrapped, params)
	if err != nil {
		return err
	}
	m.wrapperParams = params
	m.hasWrapper = true
	m.root = root
	m.hasRoot = true
	m.recomputeMode()
	return nil
}

// ValidateWrapper checks whether passcode opens wrapped without installing
// any state, for re-prompting a user's local passcode (spec §4.3
// "validate_wrapping_key").
func (m *Manager) ValidateWrapper(passcode, wrapped string, params models.KeyParams) bool {
	_, err := m.unwrapInto(passcode, wrapped, params)
	return err == nil
}

func (m *Manager) unwrapInto(passcode, wrapped string, params models.KeyParams) (models.RootKey, error) {
	key, err := deriveWrapperKeyFrom(passcode, params)
	if err != nil {
		return models.RootKey{}, err
	}
	plaintext, err := gcmOpen(key, wrapped)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("%w: %v", ErrWrongPasscode, err)
	}
	var wire wireRootKey
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return models.RootKey{}, fmt.Errorf("unmarshal root key: %w", err)
	}
	master, err := base64.StdEncoding.DecodeString(wire.MasterKey)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("decode master key: %w", err)
	}
	auth, err := base64.StdEncoding.DecodeString(wire.AuthKey)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("decode auth key: %w", err)
	}
	return models.RootKey{MasterKey: master, DataAuthenticationKey: auth, Version: wire.Version}, nil
}

func (m *Manager) deriveWrapperKey(passcode string) ([]byte, error) {
	return deriveWrapperKeyFrom(passcode, m.wrapperParams)
}

// DeriveStorageKey returns the symmetric key the local storage layer
// (spec §4.7) should encrypt under for the manager's current mode: the
// unwrapped root key's bytes when an account exists, or the passcode's
// derived wrapping key directly in KeyModeWrapperOnly, where — per spec §3
// — "the passcode-derived wrapping key doubles as the root key" since
// there is no account to anchor one.
func (m *Manager) DeriveStorageKey(passcode string) ([]byte, error) {
	if m.hasRoot {
		return append(append([]byte{}, m.root.MasterKey...), m.root.DataAuthenticationKey...), nil
	}
	if !m.hasWrapper {
		return nil, ErrLocked
	}
	return m.deriveWrapperKey(passcode)
}

func deriveWrapperKeyFrom(passcode string, params models.KeyParams) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(params.Argon2Salt)
	if err != nil {
		return nil, fmt.Errorf("decode wrapper salt: %w", err)
	}
	return argon2.IDKey([]byte(passcode), salt, params.Argon2Time, params.Argon2Memory, params.Argon2Threads, wrapperKeyLen), nil
}

func randomSalt(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// gcmSeal encrypts plaintext under key with AES-256-GCM, returning
// base64(nonce ‖ ciphertext) exactly as the teacher's GetEncryptedDEK does.
func gcmSeal(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// gcmOpen reverses gcmSeal.
func gcmOpen(key []byte, blobB64 string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, errors.New("blob too short")
	}
	nonce, ct := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
