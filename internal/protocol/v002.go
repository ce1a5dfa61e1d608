// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"crypto/sha1" //nolint:gosec // version 002 is a deliberately-preserved legacy format.
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/corevault-io/core/models"
)

// operatorV002 raises 001's PBKDF2 cost and switches to a self-authenticated
// ciphertext string ("002:auth_hash:uuid:iv:ciphertext") instead of a
// separate auth_hash field (spec §4.1 "002").
type operatorV002 struct {
	params cbcParams
}

func newOperatorV002() *operatorV002 {
	return &operatorV002{params: cbcParams{
		hashNew: func() hash.Hash { return sha1.New() },
		minCost: 5000,
		keyLen:  32,
	}}
}

func (o *operatorV002) Version() models.ProtocolVersion { return models.ProtocolVersion002 }

func (o *operatorV002) DeriveRootKey(identifier, password string, params models.KeyParams) (models.RootKey, error) {
	master, auth, err := o.params.deriveKeyMaterial(password, params.PBKDF2Salt, params.PBKDF2Cost)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("derive root key (002): %w", err)
	}
	return models.RootKey{MasterKey: master, DataAuthenticationKey: auth, Version: models.ProtocolVersion002}, nil
}

func (o *operatorV002) CreateRootKey(identifier, password string) (models.RootKey, models.KeyParams, error) {
	salt, err := randomHex(32)
	if err != nil {
		return models.RootKey{}, models.KeyParams{}, err
	}
	params := models.KeyParams{
		Identifier: identifier,
		Version:    models.ProtocolVersion002,
		PBKDF2Salt: salt,
		PBKDF2Cost: o.params.minCost,
	}
	root, err := o.DeriveRootKey(identifier, password, params)
	return root, params, err
}

func (o *operatorV002) CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error) {
	return models.ItemsKeyContent{
		ItemsKey:              hex.EncodeToString(root.MasterKey),
		DataAuthenticationKey: hex.EncodeToString(root.DataAuthenticationKey),
		Version:               models.ProtocolVersion002,
		IsDefault:             true,
	}, nil
}

func (o *operatorV002) EncryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return encryptCBCItem(models.ProtocolVersion002, o.params, true, p, key)
}

func (o *operatorV002) DecryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return decryptCBCItem(models.ProtocolVersion002, o.params, true, p, key)
}
