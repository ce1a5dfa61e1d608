// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/app"
	"github.com/corevault-io/core/internal/collaborators"
	"github.com/corevault-io/core/internal/logger"
	"github.com/corevault-io/core/internal/storage"
	"github.com/corevault-io/core/models"
)

type fakeTransport struct {
	responses []models.SyncResponse
	keyParams models.KeyParams
}

func (f *fakeTransport) SetBearerToken(string) {}

func (f *fakeTransport) Sync(_ context.Context, _ models.SyncRequest) (models.SyncResponse, error) {
	if len(f.responses) == 0 {
		return models.SyncResponse{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeTransport) RequestKeyParams(context.Context, string) (models.KeyParams, error) {
	return f.keyParams, nil
}

func newTestApp(t *testing.T) (*app.App, *fakeTransport) {
	t.Helper()
	log := logger.NewClientLogger("app-test")
	store, err := storage.NewSQLiteFacade(context.Background(), ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tr := &fakeTransport{}
	a := app.New(app.Config{Namespace: "default", Identifier: "user@example.com"}, log, tr, store, collaborators.NewDefaultUUIDGenerator())
	return a, tr
}

func TestLaunchRunsStagesInOrder(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Launch(context.Background()))
}

func TestRegisterCreatesDefaultItemsKey(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Launch(context.Background()))
	require.NoError(t, a.Register(context.Background(), "correct horse battery staple"))

	var found bool
	for _, it := range a.Items().Collection().All() {
		if it.Payload.ContentType == models.ContentTypeItemsKey {
			found = true
		}
	}
	assert.True(t, found, "expected a default items key item after Register")
}

func TestAddPasscodeWrapperDirtiesExistingItemsKeys(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Launch(context.Background()))
	require.NoError(t, a.Register(context.Background(), "correct horse battery staple"))

	require.NoError(t, a.AddPasscodeWrapper("1234"))

	for _, it := range a.Items().Collection().All() {
		if it.Payload.ContentType == models.ContentTypeItemsKey {
			assert.True(t, it.Payload.Dirty, "items key %s should be dirty after AddPasscodeWrapper", it.UUID())
		}
	}
}

func TestChangePasswordDirtiesExistingItemsKeys(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Launch(context.Background()))
	require.NoError(t, a.Register(context.Background(), "correct horse battery staple"))

	require.NoError(t, a.ChangePassword(context.Background(), "a brand new passphrase"))

	var found bool
	for _, it := range a.Items().Collection().All() {
		if it.Payload.ContentType == models.ContentTypeItemsKey {
			found = true
			assert.True(t, it.Payload.Dirty, "items key %s should be dirty after ChangePassword", it.UUID())
		}
	}
	assert.True(t, found, "expected a default items key item after Register")
}

func TestImportBackupCountsPartialFailures(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Launch(context.Background()))

	now := time.Now()
	file := models.BackupFile{
		Items: []models.Payload{
			{
				UUID:        "note-plain-1",
				ContentType: models.ContentTypeNote,
				Content: map[string]any{
					"title": "Hello", "text": "World", "references": []models.Reference{},
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				UUID:        "note-broken-1",
				ContentType: models.ContentTypeNote,
				Content:     "004:not-really-ciphertext",
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)

	imported, errCount, err := a.ImportBackup(data, "")
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, errCount)
}
