// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/corevault-io/core/models"
)

// operatorV003 is the last non-items-key version: same self-authenticated
// framing as 002, but PBKDF2-HMAC-SHA256 at a much higher cost floor (spec
// §4.1 "003"). Items created under 003 still wrap their per-item key
// directly under the root key, same as 001/002 — independent ItemsKey
// material only arrives with 004.
type operatorV003 struct {
	params cbcParams
}

func newOperatorV003() *operatorV003 {
	return &operatorV003{params: cbcParams{
		hashNew: sha256.New,
		minCost: 110000,
		keyLen:  32,
	}}
}

func (o *operatorV003) Version() models.ProtocolVersion { return models.ProtocolVersion003 }

func (o *operatorV003) DeriveRootKey(identifier, password string, params models.KeyParams) (models.RootKey, error) {
	master, auth, err := o.params.deriveKeyMaterial(password, params.PBKDF2Salt, params.PBKDF2Cost)
	if err != nil {
		return models.RootKey{}, fmt.Errorf("derive root key (003): %w", err)
	}
	return models.RootKey{MasterKey: master, DataAuthenticationKey: auth, Version: models.ProtocolVersion003}, nil
}

func (o *operatorV003) CreateRootKey(identifier, password string) (models.RootKey, models.KeyParams, error) {
	salt, err := randomHex(32)
	if err != nil {
		return models.RootKey{}, models.KeyParams{}, err
	}
	params := models.KeyParams{
		Identifier: identifier,
		Version:    models.ProtocolVersion003,
		PBKDF2Salt: salt,
		PBKDF2Cost: o.params.minCost,
	}
	root, err := o.DeriveRootKey(identifier, password, params)
	return root, params, err
}

func (o *operatorV003) CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error) {
	return models.ItemsKeyContent{
		ItemsKey:              hex.EncodeToString(root.MasterKey),
		DataAuthenticationKey: hex.EncodeToString(root.DataAuthenticationKey),
		Version:               models.ProtocolVersion003,
		IsDefault:             true,
	}, nil
}

func (o *operatorV003) EncryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return encryptCBCItem(models.ProtocolVersion003, o.params, true, p, key)
}

func (o *operatorV003) DecryptPayload(p models.Payload, key []byte) (models.Payload, error) {
	return decryptCBCItem(models.ProtocolVersion003, o.params, true, p, key)
}
