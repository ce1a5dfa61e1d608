// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app

import (
	"github.com/corevault-io/core/internal/itemskey"
	"github.com/corevault-io/core/internal/keymgr"
	"github.com/corevault-io/core/models"
)

// liveKeySource composes the account root key held by *keymgr.Manager with
// the synced items-key set held by *itemskey.Manager into the single view
// internal/protocol.Service needs (protocol.KeySource). Neither manager
// imports protocol directly; App is the seam that has visibility into both
// and assembles the composite the same way spec §9 "Global services"
// describes: "replace with an explicit context object ... services receive
// handles to their collaborators."
type liveKeySource struct {
	keys      *keymgr.Manager
	itemsKeys *itemskey.Manager
}

func (s liveKeySource) RootKey() (models.RootKey, bool) {
	return s.keys.RootKey()
}

func (s liveKeySource) DefaultItemsKey() (models.ItemsKeyContent, string, bool) {
	return s.itemsKeys.DefaultItemsKey()
}

func (s liveKeySource) ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool) {
	return s.itemsKeys.ItemsKeyByID(uuid)
}

// backupKeySource is the ad hoc protocol.KeySource built while importing a
// backup file (spec §6 "Backup file format"): the root key is derived once
// from the backup's KeyParams, and items keys are populated as the import
// decrypts the backup's own SN|ItemsKey entries, before the rest of the
// file is processed.
type backupKeySource struct {
	root      models.RootKey
	keys      map[string]models.ItemsKeyContent
	defaultID string
}

func newBackupKeySource(root models.RootKey) *backupKeySource {
	return &backupKeySource{root: root, keys: make(map[string]models.ItemsKeyContent)}
}

func (s *backupKeySource) RootKey() (models.RootKey, bool) {
	return s.root, !s.root.Zero()
}

func (s *backupKeySource) DefaultItemsKey() (models.ItemsKeyContent, string, bool) {
	if s.defaultID == "" {
		return models.ItemsKeyContent{}, "", false
	}
	c, ok := s.keys[s.defaultID]
	return c, s.defaultID, ok
}

func (s *backupKeySource) ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool) {
	c, ok := s.keys[uuid]
	return c, ok
}

func (s *backupKeySource) add(uuid string, content models.ItemsKeyContent) {
	s.keys[uuid] = content
	if content.IsDefault || s.defaultID == "" {
		s.defaultID = uuid
	}
}
