package itemskey_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/itemskey"
	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/internal/protocol"
	"github.com/corevault-io/core/models"
)

type seqUUIDs struct{ n int }

func (s *seqUUIDs) Generate() string {
	s.n++
	digits := "0123456789"
	n := s.n
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return "id-" + string(b)
}

// TestCreateNewDefaultItemsKeyDemotesPrevious verifies spec §4.4: minting a
// new default items key demotes the old one in the same batch so no two
// items keys are ever flagged default at once.
func TestCreateNewDefaultItemsKeyDemotesPrevious(t *testing.T) {
	pm := payloadmgr.New()
	uuids := &seqUUIDs{}
	im := item.NewManager(pm, uuids)
	ikm := itemskey.NewManager(im, pm)

	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)

	now := time.Now()
	first, err := ikm.CreateNewDefaultItemsKey(svc, root, "ik-1", now)
	require.NoError(t, err)
	_, firstID, ok := ikm.DefaultItemsKey()
	require.True(t, ok)
	assert.Equal(t, first.UUID, firstID)

	second, err := ikm.CreateNewDefaultItemsKey(svc, root, "ik-2", now.Add(time.Minute))
	require.NoError(t, err)

	_, defaultID, ok := ikm.DefaultItemsKey()
	require.True(t, ok)
	assert.Equal(t, second.UUID, defaultID)

	firstItem, ok := im.Collection().Find("ik-1")
	require.True(t, ok)
	content, err := item.DecodeContent[models.ItemsKeyContent](firstItem)
	require.NoError(t, err)
	assert.False(t, content.IsDefault)
}

// TestReconcileDownloadFirstDiscardsNeverSyncedDuplicate verifies spec
// §4.4: a local items key that was minted but never synced is discarded in
// favor of a same-pass server default, rather than lingering as a second
// candidate default.
func TestReconcileDownloadFirstDiscardsNeverSyncedDuplicate(t *testing.T) {
	pm := payloadmgr.New()
	uuids := &seqUUIDs{}
	im := item.NewManager(pm, uuids)
	ikm := itemskey.NewManager(im, pm)

	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)

	_, err = ikm.CreateNewDefaultItemsKey(svc, root, "ik-local", time.Now())
	require.NoError(t, err)

	serverKey, err := svc.CreateItemsKey(root)
	require.NoError(t, err)
	serverKey.IsDefault = true
	encoded, err := item.EncodeContent(serverKey)
	require.NoError(t, err)
	serverPayload := item.NewItemPayload("ik-server", models.ContentTypeItemsKey, encoded, time.Now())

	needsNewDefault := ikm.ReconcileDownloadFirst([]models.Payload{serverPayload}, models.SourceRemoteRetrieved)
	assert.False(t, needsNewDefault)

	_, ok := im.Collection().Find("ik-local")
	assert.False(t, ok, "never-synced local items key should be discarded in favor of server's")

	_, defaultID, ok := ikm.DefaultItemsKey()
	require.True(t, ok)
	assert.Equal(t, "ik-server", defaultID)
}

// TestReconcileDownloadFirstReportsNeedsNewDefaultWhenNoneRemain verifies
// that discarding the only known items key (because it never synced and the
// server sent none back) is reported so a caller can mint a replacement.
func TestReconcileDownloadFirstReportsNeedsNewDefaultWhenNoneRemain(t *testing.T) {
	pm := payloadmgr.New()
	uuids := &seqUUIDs{}
	im := item.NewManager(pm, uuids)
	ikm := itemskey.NewManager(im, pm)

	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)

	_, err = ikm.CreateNewDefaultItemsKey(svc, root, "ik-local", time.Now())
	require.NoError(t, err)

	needsNewDefault := ikm.ReconcileDownloadFirst(nil, models.SourceRemoteRetrieved)
	assert.True(t, needsNewDefault)

	_, _, ok := ikm.DefaultItemsKey()
	assert.False(t, ok)
}

func TestItemsKeyByID(t *testing.T) {
	pm := payloadmgr.New()
	uuids := &seqUUIDs{}
	im := item.NewManager(pm, uuids)
	ikm := itemskey.NewManager(im, pm)

	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)

	_, err = ikm.CreateNewDefaultItemsKey(svc, root, "ik-1", time.Now())
	require.NoError(t, err)

	_, ok := ikm.ItemsKeyByID("ik-1")
	assert.True(t, ok)
	_, ok = ikm.ItemsKeyByID("missing")
	assert.False(t, ok)
}
