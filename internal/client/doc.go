// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the interactive client application runtime: it
// wires internal/app, internal/transport, and internal/storage together,
// authenticates the configured account, and runs the notes TUI and
// background sync job for a single process lifecycle.
package client
