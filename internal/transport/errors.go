// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transport

import "errors"

// Sentinel errors a SyncTransport implementation maps non-2xx server
// responses to, mirroring the teacher's internal/adapter error set so
// callers can use errors.Is regardless of which layer produced the error.
var (
	ErrBadRequest          = errors.New("transport: bad request")
	ErrUnauthorized        = errors.New("transport: unauthorized")
	ErrForbidden           = errors.New("transport: forbidden")
	ErrNotFound            = errors.New("transport: not found")
	ErrConflict            = errors.New("transport: conflict")
	ErrBadGateway          = errors.New("transport: bad gateway")
	ErrInternalServerError = errors.New("transport: internal server error")
)
