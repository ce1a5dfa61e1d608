// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/logger"
	"github.com/corevault-io/core/internal/storage"
)

func newTestFacade(t *testing.T) *storage.SQLiteFacade {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "corevault.db")
	f, err := storage.NewSQLiteFacade(context.Background(), dsn, logger.NewClientLogger("storage-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestLaunchGatesReadsAndWrites(t *testing.T) {
	f := newTestFacade(t)

	_, _, err := f.GetValue("ns-1", storage.DomainNonwrapped, storage.KeyRootKeyParams)
	require.ErrorIs(t, err, storage.ErrNotLaunched)

	require.NoError(t, f.Launch("ns-1", storage.PersistenceDefault, storage.EncryptionDefault))

	require.NoError(t, f.SetValue("ns-1", storage.DomainNonwrapped, storage.KeyRootKeyParams, []byte(`{"version":"004"}`)))
	value, ok, err := f.GetValue("ns-1", storage.DomainNonwrapped, storage.KeyRootKeyParams)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"version":"004"}`, string(value))
}

func TestEphemeralNamespaceNeverPersists(t *testing.T) {
	f := newTestFacade(t)

	require.NoError(t, f.Launch("ns-eph", storage.PersistenceDefault, storage.EncryptionDefault))
	require.NoError(t, f.SetValue("ns-eph", storage.DomainNonwrapped, "k", []byte("v")))

	require.NoError(t, f.Launch("ns-eph", storage.PersistenceEphemeral, storage.EncryptionDefault))

	_, ok, err := f.GetValue("ns-eph", storage.DomainNonwrapped, "k")
	require.NoError(t, err)
	require.False(t, ok, "Launch with PersistenceEphemeral must clear any prior values")

	require.NoError(t, f.SetValue("ns-eph", storage.DomainNonwrapped, "k2", []byte("v2")))
	_, ok, err = f.GetValue("ns-eph", storage.DomainNonwrapped, "k2")
	require.NoError(t, err)
	require.False(t, ok, "writes under an ephemeral policy must not persist")
}

func TestPayloadRoundTripAndClearNamespace(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Launch("ns-2", storage.PersistenceDefault, storage.EncryptionDefault))

	require.NoError(t, f.SavePayload("ns-2", "uuid-1", []byte("004:abc:def:ghi"), false))
	require.NoError(t, f.SavePayload("ns-2", "uuid-2", []byte("004:zzz:yyy:xxx"), false))

	all, err := f.AllPayloads("ns-2")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, []byte("004:abc:def:ghi"), all["uuid-1"])

	require.NoError(t, f.DeletePayload("ns-2", "uuid-1"))
	all, err = f.AllPayloads("ns-2")
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, f.ClearNamespace("ns-2"))
	all, err = f.AllPayloads("ns-2")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestNamespacesAreIsolated(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Launch("ns-a", storage.PersistenceDefault, storage.EncryptionDefault))
	require.NoError(t, f.Launch("ns-b", storage.PersistenceDefault, storage.EncryptionDefault))

	require.NoError(t, f.SetValue("ns-a", storage.DomainWrapped, "k", []byte("a")))
	_, ok, err := f.GetValue("ns-b", storage.DomainWrapped, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
