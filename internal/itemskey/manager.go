// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package itemskey implements the items-key bookkeeping of spec §4.4:
// tracking every SN|ItemsKey item the account has synced, picking the
// current default, and resolving which items key a given payload was
// encrypted under. It satisfies protocol.KeySource's items-key methods
// structurally, the same duck-typing pattern internal/keymgr uses for
// RootKey.
package itemskey

import (
	"time"

	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/protocol"
	"github.com/corevault-io/core/models"
)

// Emitter is the narrow interface Manager needs to push freshly minted
// items-key payloads back through the pipeline. payloadmgr.Manager
// satisfies this structurally.
type Emitter interface {
	Emit(payloads []models.Payload, source models.PayloadSource)
}

// Manager tracks the live set of ItemsKey items by observing
// models.ContentTypeItemsKey notifications from an *item.Manager.
type Manager struct {
	items   *item.Manager
	emitter Emitter

	keys      map[string]models.ItemsKeyContent
	defaultID string
}

// NewManager constructs a Manager and subscribes it to items for
// models.ContentTypeItemsKey notifications.
func NewManager(items *item.Manager, emitter Emitter) *Manager {
	m := &Manager{items: items, emitter: emitter, keys: make(map[string]models.ItemsKeyContent)}
	items.ObserveContentType(models.ContentTypeItemsKey, m.handle)
	return m
}

func (m *Manager) handle(its []item.Item, _ models.PayloadSource, _ string, _ item.ObservationKind) {
	for _, it := range its {
		if it.Payload.Deleted {
			delete(m.keys, it.UUID())
			if m.defaultID == it.UUID() {
				m.defaultID = ""
			}
			continue
		}
		content, err := item.DecodeContent[models.ItemsKeyContent](it)
		if err != nil {
			// Not yet decrypted (waiting on the root key) or malformed;
			// either way this key isn't usable yet.
			continue
		}
		m.keys[it.UUID()] = content
		if content.IsDefault {
			m.defaultID = it.UUID()
		}
	}
	if m.defaultID == "" {
		m.recomputeDefault()
	}
}

// recomputeDefault falls back to the most recently created key when no
// item is explicitly flagged IsDefault (e.g. after the flagged one was
// deleted without a replacement syncing yet).
func (m *Manager) recomputeDefault() {
	var best string
	var bestTime time.Time
	for uuid := range m.keys {
		it, ok := m.items.Collection().Find(uuid)
		if !ok {
			continue
		}
		if best == "" || it.Payload.CreatedAt.After(bestTime) {
			best, bestTime = uuid, it.Payload.CreatedAt
		}
	}
	m.defaultID = best
}

// DefaultItemsKey implements protocol.KeySource.
func (m *Manager) DefaultItemsKey() (models.ItemsKeyContent, string, bool) {
	if m.defaultID == "" {
		return models.ItemsKeyContent{}, "", false
	}
	c, ok := m.keys[m.defaultID]
	return c, m.defaultID, ok
}

// ItemsKeyByID implements protocol.KeySource.
func (m *Manager) ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool) {
	c, ok := m.keys[uuid]
	return c, ok
}

// All returns every currently known items key, keyed by uuid.
func (m *Manager) All() map[string]models.ItemsKeyContent {
	out := make(map[string]models.ItemsKeyContent, len(m.keys))
	for k, v := range m.keys {
		out[k] = v
	}
	return out
}

// CreateNewDefaultItemsKey mints a fresh default items key (spec §4.4
// "create_new_default_items_key"), demoting the previous default (if any)
// in the same emitted batch so observers never see two defaults at once.
func (m *Manager) CreateNewDefaultItemsKey(svc *protocol.Service, root models.RootKey, uuid string, now time.Time) (models.Payload, error) {
	content, err := svc.CreateItemsKey(root)
	if err != nil {
		return models.Payload{}, err
	}
	content.IsDefault = true

	var batch []models.Payload

	if prevID := m.defaultID; prevID != "" {
		if prevItem, found := m.items.Collection().Find(prevID); found {
			mut, err := item.NewMutator(prevItem)
			if err == nil {
				mut.SetField("isDefault", false)
				batch = append(batch, mut.Apply(item.MutationTypeInternal, now))
			}
		}
	}

	encoded, err := item.EncodeContent(content)
	if err != nil {
		return models.Payload{}, err
	}
	newPayload := item.NewItemPayload(uuid, models.ContentTypeItemsKey, encoded, now)
	batch = append(batch, newPayload)

	m.emitter.Emit(batch, models.SourceLocalChanged)
	return newPayload, nil
}

// ReconcileDownloadFirst implements the items-key half of spec §4.4's
// "download-first sync": before any other retrieved item is decrypted, the
// items keys in a sync response must be applied first, since later items in
// the same response may depend on them. Callers should feed the items-key
// subset of a retrieved batch through this before decrypting the rest.
//
// Any items key this client minted locally but never synced (dirty, no
// LastSyncEnd) and that the server did not just return is discarded: it is
// almost certainly a duplicate default key created independently by another
// device racing this one at registration, and the server's copy is
// authoritative. The return value reports whether no default items key
// remains after reconciling, so the caller can mint a fresh one.
func (m *Manager) ReconcileDownloadFirst(itemsKeyPayloads []models.Payload, source models.PayloadSource) (needsNewDefault bool) {
	incoming := make(map[string]bool, len(itemsKeyPayloads))
	for _, p := range itemsKeyPayloads {
		incoming[p.UUID] = true
	}

	var discarded []models.Payload
	for uuid := range m.keys {
		if incoming[uuid] {
			continue
		}
		it, ok := m.items.Collection().Find(uuid)
		if !ok || !it.Payload.Dirty || it.Payload.LastSyncEnd != nil {
			continue
		}
		tomb := it.Payload
		tomb.Deleted = true
		tomb.Content = nil
		tomb.Dirty = false
		discarded = append(discarded, tomb)
	}
	if len(discarded) > 0 {
		m.emitter.Emit(discarded, models.SourceLocalChanged)
	}

	if len(itemsKeyPayloads) > 0 {
		m.emitter.Emit(itemsKeyPayloads, source)
	}

	return m.defaultID == ""
}
