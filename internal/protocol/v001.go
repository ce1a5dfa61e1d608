// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"crypto/sha1" //nolint:gosec // version 001 is a deliberately-preserved legacy format, not new design.
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/corevault-io/core/models"
)

// operatorV001 implements the oldest protocol version: PBKDF2-HMAC-SHA1 key
// derivation, AES-CBC content encryption, and an auth_hash carried as a
// separate field rather than embedded in the ciphertext string (spec §4.1
// "001"). It exists purely so clients can still read items a very old
// account synced. Its CreateRootKey still mints 001 keys; the service layer
// never selects 001 for new accounts.
type operatorV001 struct {
	params cbcParams
}

func newOperatorV001() *operatorV001 {
	return &operatorV001{params: cbcParams{
		hashNew: func() hash.Hash { return sha1.New() },
		minCost: 3000,
		keyLen:  32,
	}}
}

func (o *operatorV001) Version() models.ProtocolVersion { return models.ProtocolVersion001 }

func (o *operatorV001) DeriveRootKey(identifier, password string, params models.KeyParams) (models.RootKey, error) {
	master, auth, err := o.params.deriveKeyMaterial(password, params.PBKDF2Salt, params.PBKDF2Cost)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("derive root key (001): %w", err)
	}
	return models.RootKey{MasterKey: master, DataAuthenticationKey: auth, Version: models.ProtocolVersion001}, nil
}

func (o *operatorV001) CreateRootKey(identifier, password string) (models.RootKey, models.KeyParams, error) {
	salt, err := randomHex(32)
	if err != nil {
		return models.RootKey{}, models.KeyParams{}, err
	}
	params := models.KeyParams{
		Identifier: identifier,
		Version:    models.ProtocolVersion001,
		PBKDF2Salt: salt,
		PBKDF2Cost: o.params.minCost,
	}
	root, err := o.DeriveRootKey(identifier, password, params)
	return root, params, err
}

func (o *operatorV001) CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error) {
	return models.ItemsKeyContent{
		ItemsKey:              hex.EncodeToString(root.MasterKey),
		DataAuthenticationKey: hex.EncodeToString(root.DataAuthenticationKey),
		Version:               models.ProtocolVersion001,
		IsDefault:             true,
	}, nil
}

func (o *operatorV001) EncryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return encryptCBCItem(models.ProtocolVersion001, o.params, false, p, key)
}

func (o *operatorV001) DecryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return decryptCBCItem(models.ProtocolVersion001, o.params, false, p, key)
}
