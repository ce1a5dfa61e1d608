// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package item

import "github.com/corevault-io/core/models"

// Collection is an ordered set of current items keyed by uuid, with a
// secondary index by content_type (spec §3 "Collection").
type Collection struct {
	byUUID map[string]Item
	order  []string
	byType map[models.ContentType]map[string]struct{}
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		byUUID: make(map[string]Item),
		byType: make(map[models.ContentType]map[string]struct{}),
	}
}

// Upsert inserts or replaces it in the collection, reporting whether the
// uuid was newly inserted (true) or already present (false) — the
// distinction the pipeline uses to choose between ObservationInserted and
// ObservationChanged (spec §4.5 step 5).
func (c *Collection) Upsert(it Item) (inserted bool) {
	_, existed := c.byUUID[it.UUID()]
	if !existed {
		c.order = append(c.order, it.UUID())
	} else if old, ok := c.byUUID[it.UUID()]; ok && old.ContentType() != it.ContentType() {
		c.removeFromTypeIndex(old.ContentType(), old.UUID())
	}

	c.byUUID[it.UUID()] = it
	c.addToTypeIndex(it.ContentType(), it.UUID())
	return !existed
}

// Remove deletes uuid from the collection entirely.
func (c *Collection) Remove(uuid string) {
	it, ok := c.byUUID[uuid]
	if !ok {
		return
	}
	c.removeFromTypeIndex(it.ContentType(), uuid)
	delete(c.byUUID, uuid)
	for i, id := range c.order {
		if id == uuid {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Find returns the item for uuid, if present.
func (c *Collection) Find(uuid string) (Item, bool) {
	it, ok := c.byUUID[uuid]
	return it, ok
}

// All returns every item currently in the collection, in insertion order.
func (c *Collection) All() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byUUID[id])
	}
	return out
}

// OfType returns every item of the given content type, in insertion order.
func (c *Collection) OfType(ct models.ContentType) []Item {
	ids, ok := c.byType[ct]
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(ids))
	for _, id := range c.order {
		if _, want := ids[id]; want {
			out = append(out, c.byUUID[id])
		}
	}
	return out
}

// Len reports the number of items currently held.
func (c *Collection) Len() int { return len(c.byUUID) }

func (c *Collection) addToTypeIndex(ct models.ContentType, uuid string) {
	set, ok := c.byType[ct]
	if !ok {
		set = make(map[string]struct{})
		c.byType[ct] = set
	}
	set[uuid] = struct{}{}
}

func (c *Collection) removeFromTypeIndex(ct models.ContentType, uuid string) {
	set, ok := c.byType[ct]
	if !ok {
		return
	}
	delete(set, uuid)
	if len(set) == 0 {
		delete(c.byType, ct)
	}
}
