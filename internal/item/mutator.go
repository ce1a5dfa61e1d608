// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package item

import (
	"time"

	"github.com/corevault-io/core/models"
)

// MutationType distinguishes an edit a person made in the UI from one the
// system made on its own behalf (spec §4.5). UserInteraction additionally
// stamps "user_modified_date" into the content; Internal does not.
type MutationType int

const (
	MutationTypeUserInteraction MutationType = iota
	MutationTypeInternal
)

// Mutator takes a snapshot of an item, lets the caller apply edits to a
// working copy of its decrypted content, and produces a brand-new Payload
// reflecting those edits (spec §4.5 "Mutations go through a typed
// mutator"). Payload is never edited in place.
type Mutator struct {
	original Item
	content  map[string]any
}

// NewMutator snapshots it into a Mutator ready for edits. The item must
// currently carry decrypted content; errored or not-yet-decrypted items
// cannot be mutated (callers should retry once a key arrives).
func NewMutator(it Item) (*Mutator, error) {
	content, ok := it.Payload.DecryptedContent()
	if !ok {
		return nil, errNotDecrypted(it.UUID())
	}

	working := make(map[string]any, len(content))
	for k, v := range content {
		working[k] = v
	}

	return &Mutator{original: it, content: working}, nil
}

// SetField stages an edit to a single content field.
func (m *Mutator) SetField(key string, value any) {
	m.content[key] = value
}

// SetReferences stages a full replacement of the item's references array.
// SmartTag items, which carry a predicate rather than references, should
// not call this.
func (m *Mutator) SetReferences(refs []models.Reference) {
	m.content["references"] = refs
}

// Apply produces the new Payload reflecting every staged edit: content is
// replaced, Dirty is set, DirtiedAt is stamped to now, and — for
// MutationTypeUserInteraction only — "user_modified_date" is stamped into
// the content itself.
func (m *Mutator) Apply(mutationType MutationType, now time.Time) models.Payload {
	content := m.content
	if mutationType == MutationTypeUserInteraction {
		content = make(map[string]any, len(m.content)+1)
		for k, v := range m.content {
			content[k] = v
		}
		content["user_modified_date"] = now
	}

	out := m.original.Payload.WithContent(content)
	out.UpdatedAt = m.original.Payload.UpdatedAt
	return out.MarkDirty(now)
}

type notDecryptedError struct{ uuid string }

func (e notDecryptedError) Error() string {
	return "item " + e.uuid + ": cannot mutate: content is not decrypted"
}

func errNotDecrypted(uuid string) error { return notDecryptedError{uuid: uuid} }
