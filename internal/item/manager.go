// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package item

import (
	"time"

	"github.com/corevault-io/core/internal/refgraph"
	"github.com/corevault-io/core/models"
)

// ObservationKind tells an observer why it is being notified (spec §4.5
// step 5).
type ObservationKind int

const (
	ObservationInserted ObservationKind = iota
	ObservationChanged
)

// Observer is notified with the items affected by one emitted batch,
// filtered to those whose content type matches the type the observer
// registered for (models.ContentTypeAny matches everything).
type Observer func(items []Item, source models.PayloadSource, sourceKey string, kind ObservationKind)

// UUIDSource generates client-side identifiers. Any type with a Generate
// method satisfies this — notably collaborators.UUIDGenerator — without
// either package importing the other.
type UUIDSource interface {
	Generate() string
}

type observerReg struct {
	contentType models.ContentType
	fn          Observer
}

// Emitter is the narrow interface Manager needs from a payload manager:
// re-emitting payloads it produces (e.g. duplicates, alternated uuids) back
// through the same pipeline that feeds it. payloadmgr.Manager satisfies
// this structurally.
type Emitter interface {
	Emit(payloads []models.Payload, source models.PayloadSource)
}

// Manager implements the payload/item pipeline of spec §4.5: it subscribes
// to a payload manager, maintains the reference graph and the typed
// collection, and fans out filtered notifications to observers.
type Manager struct {
	emitter Emitter
	uuids   UUIDSource

	graph      *refgraph.Graph
	collection *Collection
	observers  []observerReg
}

// NewManager constructs a Manager and subscribes it to emitter. emitter is
// also used as the re-emission target for operations Manager itself
// produces (duplication, uuid alternation).
func NewManager(emitter interface {
	Emitter
	Subscribe(func(payloads []models.Payload, source models.PayloadSource))
}, uuids UUIDSource) *Manager {
	m := &Manager{
		emitter:    emitter,
		uuids:      uuids,
		graph:      refgraph.New(),
		collection: NewCollection(),
	}
	emitter.Subscribe(m.handleBatch)
	return m
}

// Collection exposes the live typed collection for read access.
func (m *Manager) Collection() *Collection { return m.collection }

// NewUUID generates a fresh client-side identifier via the manager's
// configured UUIDSource.
func (m *Manager) NewUUID() string { return m.uuids.Generate() }

// Graph exposes the live reference graph for read access.
func (m *Manager) Graph() *refgraph.Graph { return m.graph }

// ObserveContentType registers fn to be called for every future batch that
// contains at least one item of ct (or every batch, if ct is
// models.ContentTypeAny). Observers are invoked in registration order
// (spec §5).
func (m *Manager) ObserveContentType(ct models.ContentType, fn Observer) {
	m.observers = append(m.observers, observerReg{contentType: ct, fn: fn})
}

// handleBatch implements spec §4.5 steps 1-5 for one emitted payload batch.
func (m *Manager) handleBatch(payloads []models.Payload, source models.PayloadSource) {
	items := make([]Item, 0, len(payloads))
	insertedKind := make(map[string]ObservationKind, len(payloads))

	for _, p := range payloads {
		it := FromPayload(p)
		items = append(items, it)

		if p.IsDiscardable() {
			m.graph.Remove(it.UUID())
			m.collection.Remove(it.UUID())
			continue
		}

		if p.Deleted {
			m.graph.Remove(it.UUID())
		} else if !p.ErrorDecrypting {
			m.graph.SetReferences(it.UUID(), it.References)
		}

		if m.collection.Upsert(it) {
			insertedKind[it.UUID()] = ObservationInserted
		} else {
			insertedKind[it.UUID()] = ObservationChanged
		}
	}

	m.notify(items, source, insertedKind)
}

func (m *Manager) notify(items []Item, source models.PayloadSource, kindByUUID map[string]ObservationKind) {
	for _, reg := range m.observers {
		var matched []Item
		var kind ObservationKind
		first := true
		for _, it := range items {
			if reg.contentType != models.ContentTypeAny && it.ContentType() != reg.contentType {
				continue
			}
			matched = append(matched, it)
			k := kindByUUID[it.UUID()]
			if first {
				kind = k
				first = false
			} else if k != kind {
				// Mixed batch for this observer: report the strictly more
				// informative kind (Changed implies at least one item was
				// not a fresh insert).
				kind = ObservationChanged
			}
		}
		if len(matched) == 0 {
			continue
		}
		reg.fn(matched, source, "", kind)
	}
}

// Duplicate implements spec §4.5 "Duplication": on conflict, produce a new
// payload with a fresh uuid and conflict_of set to original's uuid, and
// rewrite every item that referenced original to point at the new uuid
// instead (spec §4.6 step 4/6 calls this during sync conflict resolution).
// The new item's payload is re-emitted with the given source; referencing
// items are re-emitted as MutationTypeInternal changes via now.
func (m *Manager) Duplicate(original models.Payload, source models.PayloadSource, now time.Time) models.Payload {
	dup := original
	dup.UUID = m.uuids.Generate()
	dup.ConflictOf = original.UUID
	dup.Dirty = true
	dup.DirtiedAt = now

	m.emitter.Emit([]models.Payload{dup}, source)
	m.RewriteReferences(original.UUID, dup.UUID, now)
	return dup
}

// Alternate implements spec §4.5 "UUID alternation", the only code path
// that changes a uuid: it marks old deleted+dirty, creates a structurally
// identical item under a new uuid, and rewrites every referencing item to
// point at the new uuid instead (marking them dirty). Used during sign-in
// merge of local data into an account (spec §8 scenario 5).
func (m *Manager) Alternate(original models.Payload, now time.Time) (newUUID string) {
	tombstone := original
	tombstone.Deleted = true
	tombstone.Content = nil
	tombstone.Dirty = true
	tombstone.DirtiedAt = now

	replacement := original
	replacement.UUID = m.uuids.Generate()
	replacement.Dirty = true
	replacement.DirtiedAt = now

	// Referrers are rewritten before the tombstone is emitted: removing the
	// tombstoned uuid from the graph drops its inverse edges.
	m.RewriteReferences(original.UUID, replacement.UUID, now)
	m.emitter.Emit([]models.Payload{tombstone, replacement}, models.SourceLocalChanged)
	return replacement.UUID
}

// RewriteReferences finds every item currently referencing oldUUID and
// re-emits it with oldUUID replaced by newUUID in its references array,
// marking each rewritten item dirty. This is the mechanism that keeps the
// spec §8 "UUID alternation preserves all inverse relationships" property
// true: after the rewrite, every former referrer of A references A' and no
// longer references A.
func (m *Manager) RewriteReferences(oldUUID, newUUID string, now time.Time) {
	referrers := m.graph.ReferencingUUIDs(oldUUID)
	if len(referrers) == 0 {
		return
	}

	var rewritten []models.Payload
	for _, refUUID := range referrers {
		it, ok := m.collection.Find(refUUID)
		if !ok {
			continue
		}
		mut, err := NewMutator(it)
		if err != nil {
			continue
		}
		next := make([]models.Reference, 0, len(it.References))
		for _, r := range it.References {
			if r.UUID == oldUUID {
				r.UUID = newUUID
			}
			next = append(next, r)
		}
		mut.SetReferences(next)
		rewritten = append(rewritten, mut.Apply(MutationTypeInternal, now))
	}

	if len(rewritten) > 0 {
		m.emitter.Emit(rewritten, models.SourceLocalChanged)
	}
}
