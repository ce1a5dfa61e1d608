// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/corevault-io/core/models"
)

// operatorV004 is the current protocol version: Argon2id key derivation and
// ChaCha20-Poly1305 AEAD content encryption (spec §4.1 "004"). Unlike
// 001-003, 004 has cryptographic separation between the root key and the
// per-item key: every item is encrypted directly under an ItemsKey (spec
// §4.4), so there is no per-payload key wrapping here — the "key" argument
// to EncryptPayload/DecryptPayload is already the resolved items key.
type operatorV004 struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

func newOperatorV004() *operatorV004 {
	return &operatorV004{time: 3, memory: 64 * 1024, threads: 1}
}

func (o *operatorV004) Version() models.ProtocolVersion { return models.ProtocolVersion004 }

func (o *operatorV004) DeriveRootKey(identifier, password string, params models.KeyParams) (models.RootKey, error) {
	salt, err := hex.DecodeString(params.Argon2Salt)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("decode argon2 salt: %w", err)
	}
	t, m, threads := params.Argon2Time, params.Argon2Memory, params.Argon2Threads
	if t == 0 {
		t = o.time
	}
	if m == 0 {
		m = o.memory
	}
	if threads == 0 {
		threads = o.threads
	}
	derived := argon2.IDKey([]byte(password), salt, t, m, threads, 64)
	return models.RootKey{
		MasterKey:             derived[:32],
		DataAuthenticationKey: derived[32:],
		Version:               models.ProtocolVersion004,
	}, nil
}

func (o *operatorV004) CreateRootKey(identifier, password string) (models.RootKey, models.KeyParams, error) {
	salt, err := randomHex(16)
	if err != nil {
		return models.RootKey{}, models.KeyParams{}, err
	}
	params := models.KeyParams{
		Identifier:    identifier,
		Version:       models.ProtocolVersion004,
		Argon2Salt:    salt,
		Argon2Time:    o.time,
		Argon2Memory:  o.memory,
		Argon2Threads: o.threads,
	}
	root, err := o.DeriveRootKey(identifier, password, params)
	return root, params, err
}

// CreateItemsKey generates 32 bytes of fresh randomness independent of the
// root key, since 004 items keys are not derived from the root key at all
// (spec §4.1, §4.4).
func (o *operatorV004) CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error) {
	raw, err := randomItemKey(chacha20poly1305.KeySize)
	if err != nil {
		return models.ItemsKeyContent{}, err
	}
	return models.ItemsKeyContent{
		ItemsKey:  hex.EncodeToString(raw),
		Version:   models.ProtocolVersion004,
		IsDefault: true,
	}, nil
}

// aeadAD is the additional authenticated data embedded in every 004
// ciphertext string, binding the ciphertext to the payload it was produced
// for (spec §6 "authenticated_data = base64({u, v})").
type aeadAD struct {
	UUID    string `json:"u"`
	Version string `json:"v"`
}

func (o *operatorV004) EncryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	if p.ErrorDecrypting {
		return p, nil
	}
	if len(key) != chacha20poly1305.KeySize {
		return models.Payload{}, fmt.Errorf("%w: items key must be %d bytes", ErrNoKeyAvailable, chacha20poly1305.KeySize)
	}

	plaintext, err := marshalContent(p)
	if err != nil {
		return models.Payload{}, fmt.Errorf("marshal content: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return models.Payload{}, fmt.Errorf("init aead: %w", err)
	}
	nonce, err := randomItemKey(aead.NonceSize())
	if err != nil {
		return models.Payload{}, err
	}

	adJSON, err := json.Marshal(aeadAD{UUID: p.UUID, Version: string(models.ProtocolVersion004)})
	if err != nil {
		return models.Payload{}, err
	}
	adB64 := base64.StdEncoding.EncodeToString(adJSON)

	ct := aead.Seal(nil, nonce, plaintext, []byte(adB64))

	out := p
	out.Content = fmt.Sprintf("004:%s:%s:%s", hex.EncodeToString(nonce), base64.StdEncoding.EncodeToString(ct), adB64)
	out.AuthHash = ""
	return out, nil
}

func (o *operatorV004) DecryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	contentStr, ok := p.EncryptedContent()
	if !ok {
		return p, nil
	}
	if len(key) != chacha20poly1305.KeySize {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: items key must be %d bytes", ErrNoKeyAvailable, chacha20poly1305.KeySize)
	}

	parts := splitN(contentStr, ':', 4)
	if len(parts) != 4 || models.ProtocolVersion(parts[0]) != models.ProtocolVersion004 {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: framing", ErrMalformedCiphertext)
	}
	nonce, err := hex.DecodeString(parts[1])
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: nonce", ErrMalformedCiphertext)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: ciphertext", ErrMalformedCiphertext)
	}
	adB64 := parts[3]

	var ad aeadAD
	if adJSON, err := base64.StdEncoding.DecodeString(adB64); err == nil {
		_ = json.Unmarshal(adJSON, &ad)
	}
	if ad.UUID != p.UUID {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w", ErrUUIDMismatch)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("init aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ct, []byte(adB64))
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: %v", ErrDecryptFailure, err)
	}

	var content map[string]any
	if len(plaintext) > 0 {
		if err := json.Unmarshal(plaintext, &content); err != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: content json: %v", ErrDecryptFailure, err)
		}
	}

	return p.WithContent(content).ClearErrorDecrypting().ClearWaitingForKey(), nil
}
