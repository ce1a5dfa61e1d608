// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/itemskey"
	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/internal/protocol"
	syncctl "github.com/corevault-io/core/internal/sync"
	"github.com/corevault-io/core/models"
)

type seqUUIDs struct{ n int }

func (s *seqUUIDs) Generate() string {
	s.n++
	return "id-" + string(rune('0'+s.n))
}

// keySource composes a fixed root key with an *itemskey.Manager, the same
// composite shape the application facade builds for real use.
type keySource struct {
	root models.RootKey
	keys *itemskey.Manager
}

func (k keySource) RootKey() (models.RootKey, bool)                        { return k.root, !k.root.Zero() }
func (k keySource) DefaultItemsKey() (models.ItemsKeyContent, string, bool) { return k.keys.DefaultItemsKey() }
func (k keySource) ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool) { return k.keys.ItemsKeyByID(uuid) }

type fakeTransport struct {
	responses []models.SyncResponse
	calls     int
	requests  []models.SyncRequest
}

func (f *fakeTransport) SetBearerToken(string) {}

func (f *fakeTransport) Sync(_ context.Context, req models.SyncRequest) (models.SyncResponse, error) {
	f.requests = append(f.requests, req)
	if f.calls >= len(f.responses) {
		return models.SyncResponse{}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeTransport) RequestKeyParams(context.Context, string) (models.KeyParams, error) {
	return models.KeyParams{}, nil
}

func setup(t *testing.T) (*syncctl.Controller, *item.Manager, *payloadmgr.Manager, *fakeTransport, keySource) {
	t.Helper()
	pm := payloadmgr.New()
	uuids := &seqUUIDs{}
	im := item.NewManager(pm, uuids)
	ikm := itemskey.NewManager(im, pm)

	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)

	_, err = ikm.CreateNewDefaultItemsKey(svc, root, "ik-1", time.Now())
	require.NoError(t, err)

	ks := keySource{root: root, keys: ikm}
	tr := &fakeTransport{}
	ctl := syncctl.New(tr, svc, ks, im, pm, ikm, syncctl.Config{})
	return ctl, im, pm, tr, ks
}

func TestSyncUploadsDirtySetAndClearsOnSave(t *testing.T) {
	ctl, im, pm, tr, _ := setup(t)

	now := time.Now()
	pm.Emit([]models.Payload{item.NewItemPayload("note-1", models.ContentTypeNote, map[string]any{
		"title": "T", "text": "X", "references": []models.Reference{},
	}, now)}, models.SourceLocalChanged)

	noteItem, ok := im.Collection().Find("note-1")
	require.True(t, ok)

	savedCopy := noteItem.Payload
	savedCopy.Dirty = false
	savedCopy.UpdatedAt = now.Add(time.Second)

	tr.responses = []models.SyncResponse{{
		Saved:     []models.Payload{savedCopy.Copy(models.FieldSetServer)},
		SyncToken: "tok-1",
	}}

	err := ctl.Sync(context.Background(), syncctl.ModeDefault, syncctl.QueueDefault)
	require.NoError(t, err)

	require.Len(t, tr.requests, 1)
	// The dirty set holds the new note and the items key setup created.
	assert.Len(t, tr.requests[0].Items, 2)
	uuids := make([]string, 0, len(tr.requests[0].Items))
	for _, p := range tr.requests[0].Items {
		uuids = append(uuids, p.UUID)
	}
	assert.ElementsMatch(t, []string{"ik-1", "note-1"}, uuids)

	after, ok := im.Collection().Find("note-1")
	require.True(t, ok)
	assert.False(t, after.Payload.Dirty)
}

func TestLockSyncingPreventsSync(t *testing.T) {
	ctl, _, _, tr, _ := setup(t)
	ctl.LockSyncing()

	err := ctl.Sync(context.Background(), syncctl.ModeDefault, syncctl.QueueDefault)
	require.ErrorIs(t, err, syncctl.ErrSyncLocked)
	assert.Empty(t, tr.requests)

	ctl.UnlockSyncing()
	err = ctl.Sync(context.Background(), syncctl.ModeDefault, syncctl.QueueDefault)
	require.NoError(t, err)
}

func TestDownloadFirstSyncRunsExtraEmptyPass(t *testing.T) {
	ctl, _, _, tr, _ := setup(t)
	tr.responses = []models.SyncResponse{
		{SyncToken: "tok-a"},
		{SyncToken: "tok-b"},
	}

	err := ctl.Sync(context.Background(), syncctl.ModeDownloadFirst, syncctl.QueueDefault)
	require.NoError(t, err)
	assert.Len(t, tr.requests, 2)
	assert.Empty(t, tr.requests[0].Items)
}

func TestOutOfSyncTriggersResolve(t *testing.T) {
	ctl, _, _, tr, _ := setup(t)

	var events []syncctl.EventKind
	ctl.Observe(func(ev syncctl.Event) { events = append(events, ev.Kind) })

	tr.responses = []models.SyncResponse{
		{SyncToken: "tok-1", IntegrityHash: "mismatched-hash"},
		{SyncToken: "tok-2"},
	}

	err := ctl.Sync(context.Background(), syncctl.ModeDefault, syncctl.QueueDefault)
	require.NoError(t, err)

	assert.Contains(t, events, syncctl.EventEnterOutOfSync)
	assert.Contains(t, events, syncctl.EventOutOfSyncResolved)
	assert.Contains(t, events, syncctl.EventFullSyncCompleted)
}
