// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package transport implements the client's sync-server connection (spec
// §6 "SyncTransport", an external collaborator the sync controller depends
// on through a narrow interface). The HTTP implementation is grounded in
// the teacher's internal/adapter: a resty client, the same bearer-token
// storage pattern, and the same HTTP-status-to-sentinel-error mapping.
package transport

import (
	"context"

	"github.com/corevault-io/core/models"
)

// SyncTransport is the interface the sync controller (spec §4.6) depends
// on. A host application may substitute any implementation — this package
// ships the HTTP one the bundled CLI demo uses.
type SyncTransport interface {
	// SetBearerToken stores the token attached to all subsequent requests.
	SetBearerToken(token string)

	// Sync POSTs one sync request and returns the server's response (spec
	// §6 "Wire protocol").
	Sync(ctx context.Context, req models.SyncRequest) (models.SyncResponse, error)

	// RequestKeyParams fetches the KeyParams the server has on file for
	// identifier, needed to re-derive the root key on a new device (spec
	// §4.3).
	RequestKeyParams(ctx context.Context, identifier string) (models.KeyParams, error)
}
