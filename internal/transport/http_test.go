// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/models"
)

func newTestTransport(t *testing.T, serverURL string) *httpTransport {
	t.Helper()
	tr := NewHTTPTransport(HTTPConfig{BaseURL: serverURL})
	return tr.(*httpTransport)
}

func TestSync_Success(t *testing.T) {
	want := models.SyncResponse{
		Saved:     []models.Payload{{UUID: "abc-123"}},
		SyncToken: "tok-1",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/items/sync", r.URL.Path)
		assert.Equal(t, "Bearer sometoken", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	tr.SetBearerToken("sometoken")

	got, err := tr.Sync(context.Background(), models.SyncRequest{Items: []models.Payload{{UUID: "abc-123"}}})

	require.NoError(t, err)
	assert.Equal(t, want.SyncToken, got.SyncToken)
	require.Len(t, got.Saved, 1)
	assert.Equal(t, want.Saved[0].UUID, got.Saved[0].UUID)
}

func TestSync_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("token expired"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	_, err := tr.Sync(context.Background(), models.SyncRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSync_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("sync token stale"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	_, err := tr.Sync(context.Background(), models.SyncRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRequestKeyParams_Success(t *testing.T) {
	want := models.KeyParams{Identifier: "alice@example.com", Version: models.ProtocolVersion004}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/params", r.URL.Path)
		assert.Equal(t, "alice@example.com", r.URL.Query().Get("identifier"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	got, err := tr.RequestKeyParams(context.Background(), "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, want.Identifier, got.Identifier)
	assert.Equal(t, want.Version, got.Version)
}

func TestRequestKeyParams_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("unknown identifier"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	_, err := tr.RequestKeyParams(context.Background(), "nobody@example.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetBearerToken_TrimsWhitespace(t *testing.T) {
	tr := newTestTransport(t, "http://localhost:8080")
	tr.SetBearerToken("  sometoken  ")
	assert.Equal(t, "sometoken", tr.bearerToken())
}
