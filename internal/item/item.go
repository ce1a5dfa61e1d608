// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package item implements the typed view over payloads described in spec
// §3 ("Item") and §4.5 ("Payload/Item Pipeline"): it projects the current
// decrypted [models.Payload] set into variant-aware Item values, maintains
// the reference graph and the typed collection, and exposes a mutator for
// write-through edits.
//
// Variant dispatch (spec §9) is modelled as a tagged variant on
// content_type rather than an inheritance hierarchy: the pipeline below
// operates uniformly on Item, and callers construct the concrete content
// struct (models.NoteContent, models.TagContent, ...) on demand via
// [DecodeContent].
package item

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corevault-io/core/models"
)

// Item is a typed live view of the latest payload for a uuid, plus its
// denormalized reference list (spec §3).
type Item struct {
	Payload    models.Payload
	References []models.Reference
}

// FromPayload constructs an Item from a decrypted payload. If the payload
// is flagged ErrorDecrypting or carries encrypted (string) content, the
// references list is left empty — an errored item cannot meaningfully
// participate in the reference graph (spec §4.5 step 2/3 only processes
// "live items" with parseable content).
func FromPayload(p models.Payload) Item {
	it := Item{Payload: p}
	if p.ErrorDecrypting || p.Deleted {
		return it
	}
	content, ok := p.DecryptedContent()
	if !ok {
		return it
	}
	it.References = extractReferences(content)
	return it
}

// UUID is a convenience accessor for Payload.UUID.
func (it Item) UUID() string { return it.Payload.UUID }

// ContentType is a convenience accessor for Payload.ContentType.
func (it Item) ContentType() models.ContentType { return it.Payload.ContentType }

// DecodeContent unmarshals the item's decrypted content map into a concrete
// content struct, e.g. DecodeContent[models.NoteContent](it). It returns an
// error if the payload's content is not currently decrypted or does not
// match the shape of T.
func DecodeContent[T any](it Item) (T, error) {
	var out T
	content, ok := it.Payload.DecryptedContent()
	if !ok {
		return out, fmt.Errorf("item %s: content is not decrypted", it.UUID())
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return out, fmt.Errorf("item %s: re-marshal content: %w", it.UUID(), err)
	}
	if err = json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("item %s: decode content as %T: %w", it.UUID(), out, err)
	}
	return out, nil
}

// EncodeContent marshals a concrete content struct back into the
// map[string]any shape Payload.Content expects for decrypted content.
func EncodeContent(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	var out map[string]any
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal content as map: %w", err)
	}
	return out, nil
}

// extractReferences pulls the "references" array out of a decrypted content
// map without needing to know the item's concrete variant. SmartTag
// content has no "references" key (it carries a predicate instead) and so
// yields an empty slice, matching spec §3.
func extractReferences(content map[string]any) []models.Reference {
	raw, ok := content["references"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var refs []models.Reference
	if err = json.Unmarshal(data, &refs); err != nil {
		return nil
	}
	return refs
}

// NewItemPayload builds the initial decrypted payload for a freshly created
// item, stamping CreatedAt/UpdatedAt to now and marking it dirty so the next
// sync uploads it.
func NewItemPayload(uuid string, ct models.ContentType, content map[string]any, now time.Time) models.Payload {
	return models.Payload{
		UUID:        uuid,
		ContentType: ct,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
		Dirty:       true,
		DirtiedAt:   now,
	}
}
