package item_test

import (
	"testing"
	"time"

	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequentialUUIDs struct{ n int }

func (s *sequentialUUIDs) Generate() string {
	s.n++
	return "generated-" + itoa(s.n)
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}

func newTestManager() (*payloadmgr.Manager, *item.Manager, *sequentialUUIDs) {
	pm := payloadmgr.New()
	uuids := &sequentialUUIDs{}
	im := item.NewManager(pm, uuids)
	return pm, im, uuids
}

func notePayload(uuid, title string, refs []models.Reference) models.Payload {
	now := time.Now()
	content := map[string]any{"title": title, "text": "", "references": refs}
	if refs == nil {
		content["references"] = []models.Reference{}
	}
	return item.NewItemPayload(uuid, models.ContentTypeNote, content, now)
}

func tagPayload(uuid, title string, refs []models.Reference) models.Payload {
	now := time.Now()
	content := map[string]any{"title": title, "references": refs}
	if refs == nil {
		content["references"] = []models.Reference{}
	}
	return item.NewItemPayload(uuid, models.ContentTypeTag, content, now)
}

// TestTagNoteBidirectionalInvariant mirrors spec §8 scenario 4: clearing a
// tag's references must update both the collection and the graph.
func TestTagNoteBidirectionalInvariant(t *testing.T) {
	pm, im, _ := newTestManager()

	pm.Emit([]models.Payload{
		notePayload("note-1", "T", nil),
		tagPayload("tag-1", "Tag", []models.Reference{{UUID: "note-1", ContentType: models.ContentTypeNote}}),
	}, models.SourceLocalChanged)

	require.ElementsMatch(t, []string{"tag-1"}, im.Graph().ReferencingUUIDs("note-1"))

	pm.Emit([]models.Payload{tagPayload("tag-1", "Tag", nil)}, models.SourceRemoteRetrieved)

	assert.Empty(t, im.Graph().ReferencingUUIDs("note-1"))
	tagItem, ok := im.Collection().Find("tag-1")
	require.True(t, ok)
	assert.Empty(t, tagItem.References)
}

// TestObserverFiltersByContentType verifies spec §4.5 step 5: observers are
// only notified about items matching their registered content type, unless
// they registered for the Any wildcard.
func TestObserverFiltersByContentType(t *testing.T) {
	pm, im, _ := newTestManager()

	var noteCalls, anyCalls int
	im.ObserveContentType(models.ContentTypeNote, func(items []item.Item, _ models.PayloadSource, _ string, _ item.ObservationKind) {
		noteCalls += len(items)
	})
	im.ObserveContentType(models.ContentTypeAny, func(items []item.Item, _ models.PayloadSource, _ string, _ item.ObservationKind) {
		anyCalls += len(items)
	})

	pm.Emit([]models.Payload{
		notePayload("note-1", "T", nil),
		tagPayload("tag-1", "Tag", nil),
	}, models.SourceLocalChanged)

	assert.Equal(t, 1, noteCalls)
	assert.Equal(t, 2, anyCalls)
}

// TestAlternatePreservesInverseRelationships mirrors spec §8's uuid
// alternation property: after alternation, every former referrer of A
// references A' and not A.
func TestAlternatePreservesInverseRelationships(t *testing.T) {
	pm, im, uuids := newTestManager()
	_ = uuids

	pm.Emit([]models.Payload{
		notePayload("note-old", "mine", nil),
		tagPayload("tag-1", "Tag", []models.Reference{{UUID: "note-old", ContentType: models.ContentTypeNote}}),
	}, models.SourceLocalChanged)

	noteItem, ok := im.Collection().Find("note-old")
	require.True(t, ok)

	newUUID := im.Alternate(noteItem.Payload, time.Now())
	require.NotEqual(t, "note-old", newUUID)

	oldItem, ok := im.Collection().Find("note-old")
	require.True(t, ok)
	assert.True(t, oldItem.Payload.Deleted)
	assert.True(t, oldItem.Payload.Dirty)

	tagItem, ok := im.Collection().Find("tag-1")
	require.True(t, ok)
	uuidsReferenced := make([]string, 0, len(tagItem.References))
	for _, r := range tagItem.References {
		uuidsReferenced = append(uuidsReferenced, r.UUID)
	}
	assert.Contains(t, uuidsReferenced, newUUID)
	assert.NotContains(t, uuidsReferenced, "note-old")
	assert.True(t, tagItem.Payload.Dirty)
}

// TestDuplicateSetsConflictOf verifies spec §4.5 "Duplication".
func TestDuplicateSetsConflictOf(t *testing.T) {
	pm, im, _ := newTestManager()

	pm.Emit([]models.Payload{notePayload("note-1", "mine", nil)}, models.SourceLocalChanged)
	noteItem, _ := im.Collection().Find("note-1")

	dup := im.Duplicate(noteItem.Payload, models.SourceRemoteRetrieved, time.Now())

	assert.Equal(t, "note-1", dup.ConflictOf)
	assert.NotEqual(t, "note-1", dup.UUID)
	_, ok := im.Collection().Find(dup.UUID)
	assert.True(t, ok)
}
