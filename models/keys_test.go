// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corevault-io/core/models"
)

func TestCompareVersionsOrdersNumerically(t *testing.T) {
	assert.Equal(t, 0, models.CompareVersions(models.ProtocolVersion003, models.ProtocolVersion003))
	assert.Equal(t, -1, models.CompareVersions(models.ProtocolVersion001, models.ProtocolVersion004))
	assert.Equal(t, 1, models.CompareVersions(models.ProtocolVersion004, models.ProtocolVersion002))
}

func TestIsVersionNewerThanLibraryVersion(t *testing.T) {
	assert.False(t, models.IsVersionNewerThanLibraryVersion(models.ProtocolVersion003))
	assert.False(t, models.IsVersionNewerThanLibraryVersion(models.LatestProtocolVersion))
	assert.True(t, models.IsVersionNewerThanLibraryVersion(models.ProtocolVersion("005")))
}

func TestIsProtocolVersionOutdated(t *testing.T) {
	assert.True(t, models.IsProtocolVersionOutdated(models.ProtocolVersion001))
	assert.True(t, models.IsProtocolVersionOutdated(models.ProtocolVersion002))
	assert.False(t, models.IsProtocolVersionOutdated(models.ProtocolVersion003))
	assert.False(t, models.IsProtocolVersionOutdated(models.LatestProtocolVersion))
}
