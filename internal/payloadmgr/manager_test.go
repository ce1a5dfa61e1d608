// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package payloadmgr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/models"
)

func TestEmit_StoresLatestPerUUID(t *testing.T) {
	m := payloadmgr.New()

	m.Emit([]models.Payload{{UUID: "a", Content: "v1"}}, models.SourceLocalChanged)
	m.Emit([]models.Payload{{UUID: "a", Content: "v2"}}, models.SourceLocalChanged)

	got, ok := m.Find("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Content)
}

func TestEmit_TombstoneRemovesFromSet(t *testing.T) {
	m := payloadmgr.New()
	m.Emit([]models.Payload{{UUID: "a", Content: "v1"}}, models.SourceLocalChanged)
	m.Emit([]models.Payload{{UUID: "a", Deleted: true, Content: nil}}, models.SourceRemoteRetrieved)

	_, ok := m.Find("a")
	assert.False(t, ok)
	assert.Empty(t, m.All())
}

func TestEmit_NotifiesSubscribersInOrder(t *testing.T) {
	m := payloadmgr.New()
	var calls []string

	m.Subscribe(func(payloads []models.Payload, source models.PayloadSource) {
		calls = append(calls, "first")
	})
	m.Subscribe(func(payloads []models.Payload, source models.PayloadSource) {
		calls = append(calls, "second")
	})

	m.Emit([]models.Payload{{UUID: "a"}}, models.SourceLocalChanged)

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEmit_EmptyBatchSkipsSubscribers(t *testing.T) {
	m := payloadmgr.New()
	called := false
	m.Subscribe(func(payloads []models.Payload, source models.PayloadSource) { called = true })

	m.Emit(nil, models.SourceLocalChanged)

	assert.False(t, called)
}

func TestDirty_ExcludesDummyAndErroringNonDeletions(t *testing.T) {
	m := payloadmgr.New()
	m.Emit([]models.Payload{
		{UUID: "clean-dirty", Dirty: true},
		{UUID: "not-dirty"},
		{UUID: "dummy-dirty", Dirty: true, Dummy: true},
		{UUID: "erroring-dirty", Dirty: true, ErrorDecrypting: true},
		{UUID: "erroring-deletion-dirty", Dirty: true, ErrorDecrypting: true, Deleted: true},
	}, models.SourceLocalChanged)

	dirty := m.Dirty()

	var uuids []string
	for _, p := range dirty {
		uuids = append(uuids, p.UUID)
	}
	assert.ElementsMatch(t, []string{"clean-dirty", "erroring-deletion-dirty"}, uuids)
}

func TestAll_ReturnsIndependentCopy(t *testing.T) {
	m := payloadmgr.New()
	m.Emit([]models.Payload{{UUID: "a"}}, models.SourceLocalChanged)

	all := m.All()
	all[0].UUID = "mutated"

	got, ok := m.Find("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.UUID)
}
