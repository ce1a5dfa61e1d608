// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app is the explicit context object spec §9 "Global services"
// calls for: it constructs every collaborator (storage, key management,
// the item/payload pipeline, the sync controller) in one place, wires them
// together, and drives the application lifecycle stages of spec §5 in
// declared construction order. Nothing outside this package reaches into
// two collaborators at once — that is this package's entire job.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corevault-io/core/internal/collaborators"
	"github.com/corevault-io/core/internal/item"
	"github.com/corevault-io/core/internal/itemskey"
	"github.com/corevault-io/core/internal/keymgr"
	"github.com/corevault-io/core/internal/logger"
	"github.com/corevault-io/core/internal/payloadmgr"
	"github.com/corevault-io/core/internal/protocol"
	"github.com/corevault-io/core/internal/storage"
	syncctl "github.com/corevault-io/core/internal/sync"
	"github.com/corevault-io/core/internal/transport"
	"github.com/corevault-io/core/models"
)

// Config bundles the per-account settings App needs beyond its
// collaborators.
type Config struct {
	// Namespace partitions local storage for multiple accounts/profiles
	// sharing one device (spec §6 "On-disk layout").
	Namespace string
	// Identifier is the account identifier (e.g. email) sync and key
	// derivation are keyed under.
	Identifier string
}

// App is the application core: spec §3-§5's single context object. It owns
// every piece of client state and is the only type that imports both
// internal/keymgr and internal/itemskey.
type App struct {
	cfg Config
	log *logger.Logger

	store     storage.Facade
	transport transport.SyncTransport
	uuids     collaborators.UUIDGenerator
	protoSvc  *protocol.Service

	keys      *keymgr.Manager
	itemsKeys *itemskey.Manager
	items     *item.Manager
	payloads  *payloadmgr.Manager
	sync      *syncctl.Controller

	rootKeyParams models.KeyParams
	hasRootParams bool

	stage          Stage
	stageObservers []StageObserver
}

// New constructs an App. The collection of stage observers is built in
// service-construction order: storage first, then the key/item pipeline,
// then sync — the order spec §5's "Ordering guarantees" requires stages be
// delivered in.
func New(cfg Config, log *logger.Logger, tr transport.SyncTransport, store storage.Facade, uuids collaborators.UUIDGenerator) *App {
	payloads := payloadmgr.New()
	items := item.NewManager(payloads, uuids)
	itemsKeys := itemskey.NewManager(items, payloads)
	keys := keymgr.New()
	protoSvc := protocol.NewService()

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		transport: tr,
		uuids:     uuids,
		protoSvc:  protoSvc,
		keys:      keys,
		itemsKeys: itemsKeys,
		items:     items,
		payloads:  payloads,
	}
	a.sync = syncctl.New(tr, protoSvc, a.keySource(), items, payloads, itemsKeys, syncctl.DefaultConfig())
	payloads.Subscribe(a.persistToStorage)
	a.sync.Observe(a.handleSyncEvent)
	a.registerStageObservers()
	return a
}

func (a *App) keySource() protocol.KeySource {
	return liveKeySource{keys: a.keys, itemsKeys: a.itemsKeys}
}

// persistToStorage writes every emitted payload batch through to the
// Wrapped domain of local storage (spec §6 "On-disk layout"), re-encrypting
// for at-rest storage under IntentLocalStorageEncrypted the same way
// loadDatabase expects to read it back, or deleting a tombstone's row
// entirely. A payload that cannot currently be encrypted (no key available
// yet) is left unpersisted rather than stored half-wrapped; it will persist
// once a later batch carrying the same uuid succeeds.
func (a *App) persistToStorage(payloads []models.Payload, _ models.PayloadSource) {
	for _, p := range payloads {
		if p.Tombstone() {
			if err := a.store.DeletePayload(a.cfg.Namespace, p.UUID); err != nil {
				a.log.Err(err).Str("uuid", p.UUID).Msg("delete payload from storage")
			}
			continue
		}

		enc, err := a.protoSvc.EncryptPayload(p, a.keySource(), protocol.IntentLocalStorageEncrypted)
		if err != nil {
			a.log.Err(err).Str("uuid", p.UUID).Msg("encrypt payload for storage")
			continue
		}
		content, ok := enc.EncryptedContent()
		if !ok {
			continue
		}
		if err = a.store.SavePayload(a.cfg.Namespace, p.UUID, []byte(content), p.Deleted); err != nil {
			a.log.Err(err).Str("uuid", p.UUID).Msg("save payload to storage")
		}
	}
}

// handleSyncEvent implements spec §4.4's "on full-sync completion"
// reconciliation: if the account has no default items key once a full sync
// settles and a root key is unlocked to wrap one, mint a fresh default so
// the next local edit has something to encrypt under. This is the general
// safety net behind itemskey.Manager's own download-first fallback
// (syncctl.Controller.mintDefaultItemsKeyIfPossible), which only runs mid
// sync-pass when items keys were actually retrieved.
func (a *App) handleSyncEvent(ev syncctl.Event) {
	if ev.Kind != syncctl.EventFullSyncCompleted {
		return
	}
	if _, _, ok := a.itemsKeys.DefaultItemsKey(); ok {
		return
	}
	root, ok := a.keys.RootKey()
	if !ok {
		return
	}
	if _, err := a.itemsKeys.CreateNewDefaultItemsKey(a.protoSvc, root, a.NewUUID(), time.Now()); err != nil {
		a.log.Err(err).Msg("recreate default items key after full sync")
	}
}

// Sync exposes the sync controller for callers (background jobs, the CLI
// demo) that need to trigger or observe syncs directly.
func (a *App) Sync() *syncctl.Controller { return a.sync }

// Items exposes the live typed collection.
func (a *App) Items() *item.Manager { return a.items }

// NewUUID generates a fresh client-side identifier via the configured
// collaborators.UUIDGenerator (spec §6 "UUIDGenerator").
func (a *App) NewUUID() string { return a.uuids.Generate() }

// HasStoredAccount reports whether this namespace already has root key
// params persisted from a previous Register/SignIn, the signal a host
// uses to decide whether to call Register or SignIn on launch.
func (a *App) HasStoredAccount() (bool, error) {
	_, ok, err := a.store.GetValue(a.cfg.Namespace, storage.DomainNonwrapped, storage.KeyRootKeyParams)
	if err != nil {
		return false, fmt.Errorf("has stored account: %w", err)
	}
	return ok, nil
}

// ApplyLocalEdit emits one or more locally produced payloads (typically
// the result of an [item.Mutator.Apply] call or [item.NewItemPayload])
// into the pipeline as a local change, the entry point a UI layer uses to
// record a user edit (spec §4.5).
func (a *App) ApplyLocalEdit(payloads ...models.Payload) {
	a.payloads.Emit(payloads, models.SourceLocalChanged)
}

// registerStageObservers declares, in order, what each owned collaborator
// needs to do at each lifecycle stage.
func (a *App) registerStageObservers() {
	a.stageObservers = append(a.stageObservers,
		func(ctx context.Context, stage Stage) error {
			if stage != StagePreparingForLaunch {
				return nil
			}
			a.log.Debug().Str("stage", stage.String()).Msg("preparing for launch")
			return nil
		},
		func(ctx context.Context, stage Stage) error {
			if stage != StageStorageDecrypted {
				return nil
			}
			return a.store.Launch(a.cfg.Namespace, storage.PersistenceDefault, storage.EncryptionDefault)
		},
		func(ctx context.Context, stage Stage) error {
			if stage != StageLoadingDatabase {
				return nil
			}
			return a.loadDatabase(ctx)
		},
	)
}

// Launch runs the application lifecycle stages in order, awaiting each
// stage's observers before moving to the next (spec §5).
func (a *App) Launch(ctx context.Context) error {
	for _, stage := range []Stage{
		StagePreparingForLaunch,
		StageStorageDecrypted,
		StageLoadingDatabase,
		StageLoadedDatabase,
		StageLaunched,
	} {
		for _, obs := range a.stageObservers {
			if err := obs(ctx, stage); err != nil {
				return fmt.Errorf("app: stage %s: %w", stage, err)
			}
		}
		a.stage = stage
	}
	return nil
}

// loadDatabase reads every stored payload out of the Wrapped domain,
// decrypts what the current key state allows, and emits the result with
// models.SourceLocalDirtied so observers can tell these apart from a fresh
// local edit (spec §4.5).
func (a *App) loadDatabase(ctx context.Context) error {
	raw, err := a.store.AllPayloads(a.cfg.Namespace)
	if err != nil {
		return fmt.Errorf("load database: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	encrypted := make([]models.Payload, 0, len(raw))
	for uuid, content := range raw {
		encrypted = append(encrypted, models.Payload{UUID: uuid, Content: string(content)})
	}

	decrypted, _ := a.protoSvc.BatchDecrypt(encrypted, a.keySource())
	a.payloads.Emit(decrypted, models.SourceLocalDirtied)
	return nil
}

// Register implements spec §4.2/§4.3's account-creation path: derive a
// brand-new root key under the latest protocol version, install it, and
// mint the account's first default items key (spec §8 scenario 1).
func (a *App) Register(ctx context.Context, password string) error {
	a.sync.LockSyncing()
	defer a.sync.UnlockSyncing()

	op := a.protoSvc.LatestOperator()
	root, params, err := op.CreateRootKey(a.cfg.Identifier, password)
	if err != nil {
		return fmt.Errorf("register: create root key: %w", err)
	}
	a.keys.SetNewRootKey(root)
	a.rootKeyParams = params
	a.hasRootParams = true

	if _, err = a.itemsKeys.CreateNewDefaultItemsKey(a.protoSvc, root, a.uuids.Generate(), time.Now()); err != nil {
		return fmt.Errorf("register: create default items key: %w", err)
	}

	return a.persistKeyState()
}

// SignIn implements spec §4.2/§4.6: fetch the account's KeyParams, derive
// the root key, then run a download-first sync so the items-key manager
// reconciles keys before any local item is decrypted against a stale key
// set (spec §4.6 "Download-first sync").
func (a *App) SignIn(ctx context.Context, password string) error {
	a.sync.LockSyncing()
	defer a.sync.UnlockSyncing()

	params, err := a.transport.RequestKeyParams(ctx, a.cfg.Identifier)
	if err != nil {
		return fmt.Errorf("sign in: request key params: %w", err)
	}
	op, err := a.protoSvc.Operator(params.Version)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	root, err := op.DeriveRootKey(a.cfg.Identifier, password, params)
	if err != nil {
		return fmt.Errorf("sign in: derive root key: %w", err)
	}
	a.keys.SetNewRootKey(root)
	a.rootKeyParams = params
	a.hasRootParams = true

	if err = a.persistKeyState(); err != nil {
		return err
	}

	return a.sync.Sync(ctx, syncctl.ModeDownloadFirst, syncctl.QueueDefault)
}

// AddPasscodeWrapper configures a local passcode wrapper and marks every
// known items key dirty, so the next sync re-uploads them (spec §8
// scenario 2: "all items keys end the operation with dirty=true").
func (a *App) AddPasscodeWrapper(passcode string) error {
	if err := a.keys.AddPasscodeWrapper(passcode); err != nil {
		return fmt.Errorf("add passcode wrapper: %w", err)
	}

	now := time.Now()
	var dirtied []models.Payload
	for uuid := range a.itemsKeys.All() {
		it, ok := a.items.Collection().Find(uuid)
		if !ok {
			continue
		}
		mut, err := item.NewMutator(it)
		if err != nil {
			continue
		}
		dirtied = append(dirtied, mut.Apply(item.MutationTypeInternal, now))
	}
	if len(dirtied) > 0 {
		a.payloads.Emit(dirtied, models.SourceLocalChanged)
	}

	return a.persistKeyState()
}

// ChangePassword implements spec §4.2/§4.3 and spec §8 scenario 3: derive a
// fresh root key for newPassword, upgrading the account to
// models.LatestProtocolVersion when its current version is outdated or
// newer than this library knows (models.IsProtocolVersionOutdated,
// models.IsVersionNewerThanLibraryVersion). A same-version password change
// only needs the existing items keys re-wrapped under the new root, so it
// dirties them the same way AddPasscodeWrapper does; an upgrade instead
// mints a fresh default items key (if none already exists at the new
// version) and dirties every item, since an items-key-less account synced
// under version <= 003 has no items keys to dirty at all.
func (a *App) ChangePassword(ctx context.Context, newPassword string) error {
	a.sync.LockSyncing()
	defer a.sync.UnlockSyncing()

	oldVersion := a.rootKeyParams.Version
	version := oldVersion
	if version == "" || models.IsProtocolVersionOutdated(version) || models.IsVersionNewerThanLibraryVersion(version) {
		version = models.LatestProtocolVersion
	}
	upgrading := oldVersion != "" && models.CompareVersions(oldVersion, version) < 0

	op, err := a.protoSvc.Operator(version)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	root, params, err := op.CreateRootKey(a.cfg.Identifier, newPassword)
	if err != nil {
		return fmt.Errorf("change password: create root key: %w", err)
	}
	a.keys.SetNewRootKey(root)
	a.rootKeyParams = params
	a.hasRootParams = true

	now := time.Now()
	var toDirty []item.Item

	if upgrading {
		if _, _, ok := a.itemsKeys.DefaultItemsKey(); !ok {
			if _, err = a.itemsKeys.CreateNewDefaultItemsKey(a.protoSvc, root, a.NewUUID(), now); err != nil {
				return fmt.Errorf("change password: create default items key: %w", err)
			}
		}
		toDirty = a.items.Collection().All()
	} else {
		for uuid := range a.itemsKeys.All() {
			it, ok := a.items.Collection().Find(uuid)
			if !ok {
				continue
			}
			toDirty = append(toDirty, it)
		}
	}

	var dirtied []models.Payload
	for _, it := range toDirty {
		mut, mutErr := item.NewMutator(it)
		if mutErr != nil {
			continue
		}
		dirtied = append(dirtied, mut.Apply(item.MutationTypeInternal, now))
	}
	if len(dirtied) > 0 {
		a.payloads.Emit(dirtied, models.SourceLocalChanged)
	}

	return a.persistKeyState()
}

// SignOut implements spec §8's sign-out invariant: no root key, no items
// keys, no wrapped/unwrapped storage values, and no keychain value remain.
// Every owned collaborator is rebuilt from scratch rather than merely
// cleared field-by-field, so nothing stale can leak into the next session.
func (a *App) SignOut() error {
	if err := a.store.ClearNamespace(a.cfg.Namespace); err != nil {
		return fmt.Errorf("sign out: clear storage: %w", err)
	}

	a.payloads = payloadmgr.New()
	a.items = item.NewManager(a.payloads, a.uuids)
	a.itemsKeys = itemskey.NewManager(a.items, a.payloads)
	a.keys = keymgr.New()
	a.rootKeyParams = models.KeyParams{}
	a.hasRootParams = false
	a.sync = syncctl.New(a.transport, a.protoSvc, a.keySource(), a.items, a.payloads, a.itemsKeys, syncctl.DefaultConfig())
	a.payloads.Subscribe(a.persistToStorage)
	a.sync.Observe(a.handleSyncEvent)
	return nil
}

// persistKeyState writes the account's current, always-plaintext key
// descriptors into the Nonwrapped domain (spec §6 "On-disk layout"), and,
// when a passcode wrapper is configured, the wrapped root key blob.
func (a *App) persistKeyState() error {
	if a.hasRootParams {
		raw, err := json.Marshal(a.rootKeyParams)
		if err != nil {
			return fmt.Errorf("persist root key params: %w", err)
		}
		if err = a.store.SetValue(a.cfg.Namespace, storage.DomainNonwrapped, storage.KeyRootKeyParams, raw); err != nil {
			return fmt.Errorf("persist root key params: %w", err)
		}
	}
	if a.keys.HasWrapper() {
		raw, err := json.Marshal(a.keys.WrapperKeyParams())
		if err != nil {
			return fmt.Errorf("persist wrapper params: %w", err)
		}
		if err = a.store.SetValue(a.cfg.Namespace, storage.DomainNonwrapped, storage.KeyRootKeyWrapperParams, raw); err != nil {
			return fmt.Errorf("persist wrapper params: %w", err)
		}
	}
	return nil
}

// ImportBackup implements spec §4.2/§6's backup import and spec §8
// scenario 6: a single corrupt item must never abort the rest of the
// import, so failures are counted rather than propagated, and every
// successfully decrypted item is marked dirty so the next sync re-uploads
// it (an import is a local write, not evidence the server already has the
// item).
func (a *App) ImportBackup(data []byte, password string) (imported, errorCount int, err error) {
	var file models.BackupFile
	if err = json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("import backup: parse: %w", err)
	}

	var source protocol.KeySource
	params := file.EffectiveKeyParams()
	if params == nil {
		source = noKeySource{}
	} else {
		op, opErr := a.protoSvc.Operator(params.Version)
		if opErr != nil {
			return 0, 0, fmt.Errorf("import backup: %w", opErr)
		}
		root, deriveErr := op.DeriveRootKey(a.cfg.Identifier, password, *params)
		if deriveErr != nil {
			return 0, 0, fmt.Errorf("import backup: derive root key: %w", deriveErr)
		}
		bks := newBackupKeySource(root)

		// Items keys must be decrypted and registered before the rest of
		// the file, the same ordering spec §4.4 requires of a live
		// download-first sync (see Controller.reconcileRetrieved).
		for _, p := range file.Items {
			if p.ContentType != models.ContentTypeItemsKey {
				continue
			}
			dec, decErr := a.protoSvc.DecryptPayload(p, bks)
			if decErr != nil || dec.ErrorDecrypting {
				continue
			}
			keyContent, decodeErr := item.DecodeContent[models.ItemsKeyContent](item.FromPayload(dec))
			if decodeErr != nil {
				continue
			}
			bks.add(dec.UUID, keyContent)
		}
		source = bks
	}

	now := time.Now()
	var toEmit []models.Payload
	for _, p := range file.Items {
		dec, decErr := a.protoSvc.DecryptPayload(p, source)
		if decErr != nil || dec.ErrorDecrypting {
			errorCount++
			continue
		}
		dec.Dirty = true
		dec.DirtiedAt = now
		toEmit = append(toEmit, dec)
		imported++
	}

	if len(toEmit) > 0 {
		a.payloads.Emit(toEmit, models.SourceFileImport)
	}
	return imported, errorCount, nil
}

// ExportBackup implements spec §6's export path: every live item is
// snapshotted, optionally re-encrypted under the account's current keys,
// and wrapped into a models.BackupFile alongside the KeyParams a future
// import will need to re-derive the same root key.
func (a *App) ExportBackup(encrypted bool) (models.BackupFile, error) {
	items := a.items.Collection().All()
	payloads := make([]models.Payload, 0, len(items))
	for _, it := range items {
		payloads = append(payloads, it.Payload)
	}

	var params *models.KeyParams
	if encrypted {
		if !a.hasRootParams {
			return models.BackupFile{}, fmt.Errorf("export backup: no root key installed")
		}
		encPayloads, failures := a.protoSvc.BatchEncrypt(payloads, a.keySource(), protocol.IntentFileEncrypted)
		if len(failures) > 0 {
			return models.BackupFile{}, fmt.Errorf("export backup: %d item(s) failed to encrypt", len(failures))
		}
		payloads = encPayloads
		p := a.rootKeyParams
		params = &p
	}

	return protocol.CreateBackupFile(payloads, params), nil
}

// noKeySource is the protocol.KeySource used for an unencrypted backup
// file import, where every item's content is already plaintext.
type noKeySource struct{}

func (noKeySource) RootKey() (models.RootKey, bool) { return models.RootKey{}, false }
func (noKeySource) DefaultItemsKey() (models.ItemsKeyContent, string, bool) {
	return models.ItemsKeyContent{}, "", false
}
func (noKeySource) ItemsKeyByID(string) (models.ItemsKeyContent, bool) {
	return models.ItemsKeyContent{}, false
}
