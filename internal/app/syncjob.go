// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app

import (
	"context"
	"sync"
	"time"

	syncctl "github.com/corevault-io/core/internal/sync"
)

// DefaultSyncInterval is used when SyncJob.Start is called with interval
// <= 0, mirroring the teacher's background sync job default.
const DefaultSyncInterval = 5 * time.Minute

// SyncJob runs periodic background syncs for an App on a ticker, grounded
// on the teacher's clientSyncJob: a single goroutine ticks, calls Sync, and
// shuts down cleanly on Stop without leaking (internal/service's
// client_service_sync_job.go).
type SyncJob struct {
	app *App

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob returns a SyncJob bound to app. It does nothing until Start is
// called.
func NewSyncJob(app *App) *SyncJob {
	return &SyncJob{app: app}
}

// Start launches the background ticker goroutine. Calling Start while
// already running is a no-op. interval <= 0 falls back to
// DefaultSyncInterval.
func (j *SyncJob) Start(ctx context.Context, interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := j.app.Sync().Sync(runCtx, syncctl.ModeDefault, syncctl.QueueDefault); err != nil {
					j.app.log.Warn().Err(err).Msg("background sync failed")
				}
			}
		}
	}()
}

// Stop cancels the background goroutine and blocks until it has exited.
// Calling Stop when not running is a no-op.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
}
