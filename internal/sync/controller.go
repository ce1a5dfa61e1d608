// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package sync implements the sync controller described in spec §4.6: the
// single lifecycle that takes the local dirty set, exchanges it with the
// server, reconciles what comes back, and resolves conflicts and
// out-of-sync conditions. It is deliberately transport- and
// storage-agnostic — it depends only on [transport.SyncTransport],
// [protocol.Service], and the item/payload managers built in earlier
// packages.
package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/itemskey"
	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/internal/protocol"
	"github.com/corevault-io/core/internal/transport"
	"github.com/corevault-io/core/models"
)

// Mode selects how a single Sync call begins (spec §4.6 "Modes").
type Mode int

const (
	// ModeDefault runs the ordinary 8-step lifecycle.
	ModeDefault Mode = iota
	// ModeDownloadFirst performs an empty-upload pass first so the
	// items-key manager can reconcile keys before anything local is sent
	// (spec §4.6 "Download-first sync").
	ModeDownloadFirst
)

// QueueStrategy controls how a Sync call behaves when another sync is
// already in flight (spec §4.6 "Suspension points").
type QueueStrategy int

const (
	// QueueDefault coalesces with any in-flight sync: the call returns nil at
	// once and does not report the in-flight sync's result.
	QueueDefault QueueStrategy = iota
	// QueueResolve is an explicit alias for QueueDefault's coalescing
	// behavior, named for callers that want to be explicit about intent.
	QueueResolve
	// QueueForceSpawnNew always starts a fresh sync, queuing behind the
	// in-flight one rather than coalescing with it.
	QueueForceSpawnNew
)

// ErrSyncLocked is returned by Sync when the controller is locked via Lock
// (spec §4.6 "Sync is lockable").
var ErrSyncLocked = errors.New("sync: locked")

// Config bundles the tunables a Controller needs beyond its collaborators.
type Config struct {
	// SoftTimeout is how long a single sync step may run before
	// EventHighLatencySync fires, without aborting the step (spec §5).
	SoftTimeout time.Duration
	// HardTimeout cancels the outbound HTTP call and surfaces
	// EventSyncFailed (spec §5).
	HardTimeout time.Duration
}

// DefaultConfig returns the tunables the bundled CLI demo uses.
func DefaultConfig() Config {
	return Config{SoftTimeout: 5 * time.Second, HardTimeout: 30 * time.Second}
}

// Controller drives one account's sync lifecycle (spec §4.6). It is not
// safe for concurrent Sync calls from multiple goroutines beyond the
// single-flight/queueing semantics Sync itself implements; all other state
// mutation happens on the caller's single cooperative loop (spec §5).
type Controller struct {
	transport transport.SyncTransport
	protoSvc  *protocol.Service
	keySource protocol.KeySource
	items     *item.Manager
	payloads  *payloadmgr.Manager
	itemsKeys *itemskey.Manager
	cfg       Config

	mu          sync.Mutex
	runMu       sync.Mutex
	locked      bool
	inFlight    bool
	syncToken   string
	cursorToken string

	observers []Observer
}

// New constructs a Controller. itemsKeys may be nil if the caller never
// intends to run ModeDownloadFirst.
func New(
	tr transport.SyncTransport,
	protoSvc *protocol.Service,
	keySource protocol.KeySource,
	items *item.Manager,
	payloads *payloadmgr.Manager,
	itemsKeys *itemskey.Manager,
	cfg Config,
) *Controller {
	return &Controller{
		transport: tr,
		protoSvc:  protoSvc,
		keySource: keySource,
		items:     items,
		payloads:  payloads,
		itemsKeys: itemsKeys,
		cfg:       cfg,
	}
}

// Observe registers fn to receive every future event, in registration
// order.
func (c *Controller) Observe(fn Observer) {
	c.observers = append(c.observers, fn)
}

func (c *Controller) emit(ev Event) {
	for _, o := range c.observers {
		o(ev)
	}
}

// LockSyncing prevents new Sync calls from starting, used during sign-in,
// registration, and password change so the auto-timer cannot interleave
// (spec §4.6 "Suspension points").
func (c *Controller) LockSyncing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = true
}

// UnlockSyncing re-allows Sync calls.
func (c *Controller) UnlockSyncing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
}

// Sync runs the sync lifecycle of spec §4.6. While a sync is in flight, a
// call with QueueDefault or QueueResolve coalesces with it: it returns nil
// at once, without waiting for the in-flight sync and without reporting its
// result. A call with QueueForceSpawnNew waits for the in-flight sync to
// finish and then runs a sync of its own.
func (c *Controller) Sync(ctx context.Context, mode Mode, strategy QueueStrategy) error {
	c.mu.Lock()
	if c.locked {
		c.mu.Unlock()
		return ErrSyncLocked
	}
	if c.inFlight && strategy != QueueForceSpawnNew {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// runMu serialises sync passes, so a QueueForceSpawnNew call queues
	// behind the in-flight sync.
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if mode == ModeDownloadFirst {
		if _, err := c.runSyncPass(ctx, nil); err != nil {
			c.emit(Event{Kind: EventSyncFailed, Err: err})
			return err
		}
	}

	for {
		dirty := c.payloads.Dirty()
		more, err := c.runSyncPass(ctx, dirty)
		if err != nil {
			c.emit(Event{Kind: EventSyncFailed, Err: err})
			return err
		}
		if !more {
			break
		}
	}

	c.emit(Event{Kind: EventFullSyncCompleted})
	return nil
}

// runSyncPass implements spec §4.6 steps 1-6 for one request/response
// round trip, returning whether the server indicated more pages.
func (c *Controller) runSyncPass(ctx context.Context, dirty []models.Payload) (bool, error) {
	now := time.Now()

	// Step 1: stamp last_sync_begin and snapshot dirtied_at for the
	// "no intervening mutation" check in step 5.
	snapshotBegin := make(map[string]time.Time, len(dirty))
	upload := make([]models.Payload, 0, len(dirty))
	for _, p := range dirty {
		snapshotBegin[p.UUID] = p.DirtiedAt
		stamped := p
		stamped.LastSyncBegin = &now
		encrypted, err := c.protoSvc.EncryptPayload(stamped, c.keySource, protocol.IntentSync)
		if err != nil {
			return false, fmt.Errorf("sync: encrypt %s: %w", p.UUID, err)
		}
		upload = append(upload, encrypted.Copy(models.FieldSetServer))
	}

	stepCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.HardTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, c.cfg.HardTimeout)
		defer cancel()
	}

	if c.cfg.SoftTimeout > 0 {
		softTimer := time.AfterFunc(c.cfg.SoftTimeout, func() {
			c.emit(Event{Kind: EventHighLatencySync})
		})
		defer softTimer.Stop()
	}

	// Step 2.
	resp, err := c.transport.Sync(stepCtx, models.SyncRequest{
		SyncToken:        c.syncToken,
		CursorToken:      c.cursorToken,
		Items:            upload,
		ComputeIntegrity: true,
	})
	if err != nil {
		return false, fmt.Errorf("sync: transport: %w", err)
	}

	// Step 3 happens implicitly: resp already carries retrieved/saved/
	// conflicts/tokens.
	if err = c.reconcileRetrieved(resp.Retrieved, now); err != nil {
		return false, err
	}
	c.reconcileSaved(resp.Saved, snapshotBegin, now)
	if err = c.reconcileConflicts(resp.Conflicts, now); err != nil {
		return false, err
	}

	c.syncToken = resp.SyncToken
	c.cursorToken = resp.CursorToken

	// Step 8: integrity check.
	if resp.IntegrityHash != "" {
		local := c.computeIntegrityHash()
		if local != resp.IntegrityHash {
			c.emit(Event{Kind: EventEnterOutOfSync})
			if err = c.ResolveOutOfSync(ctx); err != nil {
				return false, err
			}
		}
	}

	return resp.HasMorePages(), nil
}

// reconcileRetrieved implements spec §4.6 step 4. Items-key payloads in the
// batch are decrypted and applied before any other retrieved item, via
// itemsKeys.ReconcileDownloadFirst, since a note retrieved in the same
// response may be encrypted under one of them (spec §4.4).
func (c *Controller) reconcileRetrieved(retrieved []models.Payload, now time.Time) error {
	if len(retrieved) == 0 {
		return nil
	}

	var keyPayloads, rest []models.Payload
	for _, p := range retrieved {
		if p.ContentType == models.ContentTypeItemsKey {
			keyPayloads = append(keyPayloads, p)
		} else {
			rest = append(rest, p)
		}
	}

	if len(keyPayloads) > 0 && c.itemsKeys != nil {
		decryptedKeys, _ := c.protoSvc.BatchDecrypt(keyPayloads, c.keySource)
		if c.itemsKeys.ReconcileDownloadFirst(decryptedKeys, models.SourceRemoteRetrieved) {
			c.mintDefaultItemsKeyIfPossible(now)
		}
	} else if len(keyPayloads) > 0 {
		decryptedKeys, _ := c.protoSvc.BatchDecrypt(keyPayloads, c.keySource)
		c.payloads.Emit(decryptedKeys, models.SourceRemoteRetrieved)
	}

	decrypted, _ := c.protoSvc.BatchDecrypt(rest, c.keySource)

	var toEmit []models.Payload
	for _, server := range decrypted {
		local, hasLocal := c.items.Collection().Find(server.UUID)
		if hasLocal && local.Payload.Dirty && contentDiffers(local.Payload, server) {
			c.items.Duplicate(local.Payload, models.SourceLocalChanged, now)
		}
		toEmit = append(toEmit, server)
	}
	c.payloads.Emit(toEmit, models.SourceRemoteRetrieved)
	return nil
}

// mintDefaultItemsKeyIfPossible implements the fallback half of spec §4.4's
// download-first reconciliation: if no default items key survived
// reconciliation and a root key is available to wrap one, mint a fresh
// default immediately rather than leaving every subsequent item
// undecryptable for lack of one.
func (c *Controller) mintDefaultItemsKeyIfPossible(now time.Time) {
	root, ok := c.keySource.RootKey()
	if !ok {
		return
	}
	_, _ = c.itemsKeys.CreateNewDefaultItemsKey(c.protoSvc, root, c.items.NewUUID(), now)
}

// reconcileSaved implements spec §4.6 step 5.
func (c *Controller) reconcileSaved(saved []models.Payload, snapshotBegin map[string]time.Time, now time.Time) {
	if len(saved) == 0 {
		return
	}

	var toEmit []models.Payload
	for _, sp := range saved {
		local, ok := c.items.Collection().Find(sp.UUID)
		if !ok {
			continue
		}
		out := local.Payload
		out.UpdatedAt = sp.UpdatedAt
		out.LastSyncEnd = &now
		if begin, tracked := snapshotBegin[sp.UUID]; tracked && !out.DirtiedAt.After(begin) {
			out.Dirty = false
		} else if !tracked {
			out.Dirty = false
		}
		toEmit = append(toEmit, out)
	}
	c.payloads.Emit(toEmit, models.SourceLocalSaved)
}

// reconcileConflicts implements spec §4.6 step 6.
func (c *Controller) reconcileConflicts(conflicts []models.Conflict, now time.Time) error {
	for _, conflict := range conflicts {
		switch conflict.Type {
		case models.ConflictUUID:
			local, ok := c.items.Collection().Find(conflict.ServerItem.UUID)
			if !ok {
				continue
			}
			c.items.Alternate(local.Payload, now)

		case models.ConflictData:
			local, ok := c.items.Collection().Find(conflict.ServerItem.UUID)
			if !ok {
				continue
			}
			decrypted, err := c.protoSvc.DecryptPayload(conflict.ServerItem, c.keySource)
			if err != nil {
				return fmt.Errorf("sync: decrypt conflicting server item %s: %w", conflict.ServerItem.UUID, err)
			}
			c.items.Duplicate(local.Payload, models.SourceLocalChanged, now)
			c.payloads.Emit([]models.Payload{decrypted}, models.SourceRemoteRetrieved)

		default:
			return fmt.Errorf("sync: unknown conflict type %q", conflict.Type)
		}
	}
	return nil
}

// ResolveOutOfSync performs the full deep pull spec §4.6 step 8 describes:
// a fresh sync from an empty sync token, ignoring any cursor already in
// progress.
func (c *Controller) ResolveOutOfSync(ctx context.Context) error {
	c.syncToken = ""
	c.cursorToken = ""
	for {
		more, err := c.runSyncPass(ctx, nil)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	c.emit(Event{Kind: EventOutOfSyncResolved})
	return nil
}

// computeIntegrityHash hashes uuid/updated_at pairs for every item the
// client currently holds, sorted by uuid for determinism, so the result is
// independent of collection iteration order.
func (c *Controller) computeIntegrityHash() string {
	items := c.items.Collection().All()
	pairs := make([]string, 0, len(items))
	for _, it := range items {
		pairs = append(pairs, it.UUID()+":"+strconv.FormatInt(it.Payload.UpdatedAt.UnixNano(), 10))
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ignoredContentKeys are stripped before comparing two copies of the same
// item's content for meaningful divergence (spec §8 "content equality
// ignoring designated keys such as client_updated_at").
var ignoredContentKeys = []string{"user_modified_date", "client_updated_at"}

// contentDiffers reports whether a and b's decrypted content differ in any
// field other than ignoredContentKeys.
func contentDiffers(a, b models.Payload) bool {
	ac, aok := a.DecryptedContent()
	bc, bok := b.DecryptedContent()
	if !aok || !bok {
		return aok != bok
	}
	if len(ac) != len(bc) {
		return !mapsEqualIgnoring(ac, bc)
	}
	return !mapsEqualIgnoring(ac, bc)
}

func mapsEqualIgnoring(a, b map[string]any) bool {
	strip := func(m map[string]any) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		for _, k := range ignoredContentKeys {
			delete(out, k)
		}
		return out
	}
	sa, sb := strip(a), strip(b)
	if len(sa) != len(sb) {
		return false
	}
	for k, va := range sa {
		vb, ok := sb[k]
		if !ok {
			return false
		}
		if fmt.Sprint(va) != fmt.Sprint(vb) {
			return false
		}
	}
	return true
}
