package refgraph_test

import (
	"testing"

	"github.com/corevault-io/core/internal/refgraph"
	"github.com/corevault-io/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBidirectionalInvariant verifies the spec §8 property: for every pair
// (A, B), A references B iff B is in inverse_index[A].
func TestBidirectionalInvariant(t *testing.T) {
	g := refgraph.New()

	g.SetReferences("A", []models.Reference{{UUID: "B", ContentType: models.ContentTypeNote}})

	assert.True(t, g.DirectlyReferences("A", "B"))
	assert.ElementsMatch(t, []string{"A"}, g.ReferencingUUIDs("B"))
}

// TestTagNoteMutualInvariant mirrors scenario 4 of spec §8: clearing a tag's
// references must also clear the note's inverse entry.
func TestTagNoteMutualInvariant(t *testing.T) {
	g := refgraph.New()

	g.SetReferences("note", nil)
	g.SetReferences("tag", []models.Reference{{UUID: "note", ContentType: models.ContentTypeNote}})
	require.ElementsMatch(t, []string{"tag"}, g.ReferencingUUIDs("note"))

	g.SetReferences("tag", nil)

	assert.Empty(t, g.ReferencingUUIDs("note"))
	assert.Empty(t, g.References("tag"))
}

// TestRemoveTearsDownBothDirections verifies Remove detaches a uuid from
// both the forward and inverse indices (spec §4.5 step 2).
func TestRemoveTearsDownBothDirections(t *testing.T) {
	g := refgraph.New()
	g.SetReferences("A", []models.Reference{{UUID: "B", ContentType: models.ContentTypeNote}})
	g.SetReferences("C", []models.Reference{{UUID: "A", ContentType: models.ContentTypeNote}})

	g.Remove("A")

	assert.Empty(t, g.References("A"))
	assert.Empty(t, g.ReferencingUUIDs("A"))
	// C's own forward reference to A is unaffected by A's removal; only the
	// pipeline (not the graph) is responsible for rewriting C's content.
	assert.True(t, g.DirectlyReferences("C", "A"))
}

// TestCycleIsRepresentedWithoutRecursion verifies that a reference cycle
// (spec §9) does not require special handling: both directions are just
// flat map entries.
func TestCycleIsRepresentedWithoutRecursion(t *testing.T) {
	g := refgraph.New()
	g.SetReferences("A", []models.Reference{{UUID: "B", ContentType: models.ContentTypeNote}})
	g.SetReferences("B", []models.Reference{{UUID: "A", ContentType: models.ContentTypeNote}})

	assert.True(t, g.DirectlyReferences("A", "B"))
	assert.True(t, g.DirectlyReferences("B", "A"))
	assert.ElementsMatch(t, []string{"B"}, g.ReferencingUUIDs("A"))
	assert.ElementsMatch(t, []string{"A"}, g.ReferencingUUIDs("B"))
}
