// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package refgraph implements the forward/inverse reference index described
// in spec §3 and §9 ("Graphs with cycles"). Item-to-item references can form
// cycles (a note and a tag can reference each other), so the graph is
// represented as two flat maps keyed by uuid rather than as direct
// item-to-item pointers: traversal is always through the maps, which makes
// mutation O(1) and sidesteps any need for cycle-aware teardown.
package refgraph

import "github.com/corevault-io/core/models"

// Graph holds the forward index (uuid -> referenced uuids) and the inverse
// index (uuid -> referencing uuids) over the item collection.
//
// Graph is not safe for concurrent use; callers in this codebase only ever
// touch it from the single-threaded item pipeline (spec §5).
type Graph struct {
	forward map[string]map[string]models.ContentType
	inverse map[string]map[string]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		forward: make(map[string]map[string]models.ContentType),
		inverse: make(map[string]map[string]struct{}),
	}
}

// SetReferences replaces uuid's forward references with refs, and updates
// every affected inverse entry so that for every pair (A,B),
// A references B iff B is in inverse[A] (spec §8 invariant).
func (g *Graph) SetReferences(uuid string, refs []models.Reference) {
	if old, ok := g.forward[uuid]; ok {
		for target := range old {
			g.removeInverse(target, uuid)
		}
	}

	if len(refs) == 0 {
		delete(g.forward, uuid)
		return
	}

	next := make(map[string]models.ContentType, len(refs))
	for _, r := range refs {
		next[r.UUID] = r.ContentType
		g.addInverse(r.UUID, uuid)
	}
	g.forward[uuid] = next
}

// Remove tears down uuid entirely: its forward references are dropped (and
// the corresponding inverse entries cleaned up), and its own inverse entry
// is removed so nothing is reported as still referencing it.
func (g *Graph) Remove(uuid string) {
	g.SetReferences(uuid, nil)
	delete(g.inverse, uuid)
}

// References returns the content-typed references uuid currently points to.
func (g *Graph) References(uuid string) []models.Reference {
	fwd, ok := g.forward[uuid]
	if !ok {
		return nil
	}
	out := make([]models.Reference, 0, len(fwd))
	for target, ct := range fwd {
		out = append(out, models.Reference{UUID: target, ContentType: ct})
	}
	return out
}

// ReferencingUUIDs returns the uuids of every item that currently
// references uuid (the inverse index).
func (g *Graph) ReferencingUUIDs(uuid string) []string {
	inv, ok := g.inverse[uuid]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(inv))
	for id := range inv {
		out = append(out, id)
	}
	return out
}

// DirectlyReferences reports whether A currently references B.
func (g *Graph) DirectlyReferences(a, b string) bool {
	fwd, ok := g.forward[a]
	if !ok {
		return false
	}
	_, ok = fwd[b]
	return ok
}

func (g *Graph) addInverse(target, source string) {
	set, ok := g.inverse[target]
	if !ok {
		set = make(map[string]struct{})
		g.inverse[target] = set
	}
	set[source] = struct{}{}
}

func (g *Graph) removeInverse(target, source string) {
	set, ok := g.inverse[target]
	if !ok {
		return
	}
	delete(set, source)
	if len(set) == 0 {
		delete(g.inverse, target)
	}
}
