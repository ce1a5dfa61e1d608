// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package payloadmgr holds the in-memory set of current payloads and fans
// emitted batches out to subscribers (spec §4.5: "The item manager
// subscribes to payload insertions and changes from the underlying payload
// manager"). It knows nothing about item variants, references, or
// encryption — it is pure bookkeeping over the latest Payload per uuid.
package payloadmgr

import "github.com/corevault-io/core/models"

// Subscriber receives every batch of payloads the Manager emits, along with
// the reason the batch was produced.
type Subscriber func(payloads []models.Payload, source models.PayloadSource)

// Manager is the single source of truth for "the latest payload per uuid".
// It is not safe for concurrent use; the system runs it from one
// cooperative, single-threaded loop (spec §5).
type Manager struct {
	byUUID      map[string]models.Payload
	subscribers []Subscriber
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{byUUID: make(map[string]models.Payload)}
}

// Subscribe registers sub to be called, in registration order, on every
// future Emit (spec §5 "Ordering guarantees").
func (m *Manager) Subscribe(sub Subscriber) {
	m.subscribers = append(m.subscribers, sub)
}

// Emit records each payload as the new latest value for its uuid (removing
// it from the set entirely if it is a tombstone, spec §3 "Lifecycle"), then
// invokes every subscriber, in registration order, with the full batch.
//
// Payload emissions are processed in the order callers submit them; this
// method does not reorder or coalesce across calls.
func (m *Manager) Emit(payloads []models.Payload, source models.PayloadSource) {
	if len(payloads) == 0 {
		return
	}

	for _, p := range payloads {
		if p.Tombstone() {
			delete(m.byUUID, p.UUID)
			continue
		}
		m.byUUID[p.UUID] = p
	}

	for _, sub := range m.subscribers {
		sub(payloads, source)
	}
}

// Find returns the latest payload for uuid, if any.
func (m *Manager) Find(uuid string) (models.Payload, bool) {
	p, ok := m.byUUID[uuid]
	return p, ok
}

// All returns every currently tracked payload. The returned slice is a
// fresh copy; mutating it does not affect the Manager.
func (m *Manager) All() []models.Payload {
	out := make([]models.Payload, 0, len(m.byUUID))
	for _, p := range m.byUUID {
		out = append(out, p)
	}
	return out
}

// Dirty returns the dirty set as defined in spec §4.5: every payload with
// Dirty set that is not a dummy, and is either not erroring or is itself a
// deletion (a corrupt item may only be synced as a deletion).
func (m *Manager) Dirty() []models.Payload {
	var out []models.Payload
	for _, p := range m.byUUID {
		if !p.Dirty || p.Dummy {
			continue
		}
		if p.ErrorDecrypting && !p.Deleted {
			continue
		}
		out = append(out, p)
	}
	return out
}
