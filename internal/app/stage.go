// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app

import "context"

// Stage is one of the application lifecycle stages. App.Launch delivers
// them in the order declared below (PreparingForLaunch, StorageDecrypted,
// LoadingDatabase, LoadedDatabase, Launched) to every stage observer, in
// service-construction order, awaiting each observer before the next.
type Stage int

const (
	// StagePreparingForLaunch fires first, before storage or keys are
	// touched.
	StagePreparingForLaunch Stage = iota
	// StageStorageDecrypted fires once the key hierarchy is resolved
	// enough that the storage façade's Wrapped domain can be read.
	StageStorageDecrypted
	// StageLoadingDatabase fires when the local payload table begins
	// loading into memory. The load runs synchronously inside App.Launch:
	// Launch does not return, and no later stage fires, until it finishes.
	StageLoadingDatabase
	// StageLoadedDatabase fires once every locally stored payload has been
	// emitted into the payload pipeline.
	StageLoadedDatabase
	// StageLaunched fires last: storage persistence and sync both become
	// legal only after this stage (spec §4.7).
	StageLaunched
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StagePreparingForLaunch:
		return "PreparingForLaunch"
	case StageStorageDecrypted:
		return "StorageDecrypted"
	case StageLoadingDatabase:
		return "LoadingDatabase"
	case StageLoadedDatabase:
		return "LoadedDatabase"
	case StageLaunched:
		return "Launched"
	default:
		return "Unknown"
	}
}

// StageObserver is notified of each lifecycle stage, in the order services
// were constructed, and is awaited before the next stage begins.
type StageObserver func(ctx context.Context, stage Stage) error
