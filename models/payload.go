// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package models holds the wire- and storage-level value types shared by the
// protocol, key-management, and sync layers of corevault's client core.
//
// Payload is the atomic unit of persistence and transport (spec §3): every
// item the user creates is, underneath, a Payload. Payloads are immutable —
// every mutation in this codebase produces a fresh Payload value rather than
// editing one in place, so equality checks and concurrent readers never
// observe a half-written record.
package models

import "time"

// FieldSet selects which Payload fields survive a [Payload.Copy] projection.
// Each intent/source in the system picks exactly one FieldSet (spec §3).
type FieldSet int

const (
	// FieldSetMax keeps every field, including client-only sync bookkeeping.
	// Used internally when duplicating a payload for conflict resolution.
	FieldSetMax FieldSet = iota

	// FieldSetEncryptionParameters keeps only the fields the protocol layer
	// needs to decrypt or re-encrypt content: uuid, content, items_key_id,
	// enc_item_key, and version framing.
	FieldSetEncryptionParameters

	// FieldSetFile keeps the fields that belong in a backup file: uuid,
	// content_type, content, items_key_id, enc_item_key, created_at,
	// updated_at, deleted.
	FieldSetFile

	// FieldSetStorage keeps the fields persisted to the local on-disk
	// payload table, including dirty bookkeeping but not transient sync
	// cursors.
	FieldSetStorage

	// FieldSetServer keeps only the fields the wire protocol carries to the
	// server: client-only flags (dirty, dirtied_at, last_sync_*,
	// waiting_for_key, error_*, dummy) are stripped (spec §6).
	FieldSetServer

	// FieldSetServerSaved mirrors FieldSetServer but is used for the
	// "saved" leg of a sync response, where updated_at is authoritative.
	FieldSetServerSaved

	// FieldSetSessionHistory keeps the fields needed to reconstruct a prior
	// revision of an item for the history auxiliary.
	FieldSetSessionHistory

	// FieldSetComponentRetrieved keeps the fields exposed to a hosted
	// component/extension, stripping encryption parameters entirely since
	// components only ever see decrypted content.
	FieldSetComponentRetrieved
)

// PayloadSource describes why a Payload was created or replaced. It is
// threaded through the item pipeline (spec §4.5) so that observers can tell
// a locally authored change from one that arrived from the server.
type PayloadSource int

const (
	// SourceLocalChanged marks a payload produced by a local mutation.
	SourceLocalChanged PayloadSource = iota
	// SourceLocalSaved marks a payload whose upload was acknowledged by the
	// server (dirty cleared).
	SourceLocalSaved
	// SourceRemoteRetrieved marks a payload that was downloaded from the
	// server during a sync pass.
	SourceRemoteRetrieved
	// SourceFileImport marks a payload produced by ingesting a backup file.
	SourceFileImport
	// SourceLocalDirtied marks a payload freshly loaded from local storage
	// at launch that still carries a dirty flag from a previous session.
	SourceLocalDirtied
	// SourceComponentRetrieved marks a payload handed to a hosted component.
	SourceComponentRetrieved
)

// Payload is the atomic, immutable unit of persistence and transport.
//
// Content is either a structured map (decrypted, or never encrypted to
// begin with) or a version-prefixed ciphertext string produced by one of the
// protocol operators (spec §4.1). Callers must not mutate a Payload in
// place; use [Payload.Copy] or [Payload.WithContent] to derive a new value.
type Payload struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`

	// Content holds either a map[string]any (decrypted) or a string
	// (version-prefixed ciphertext). Callers type-switch on this field;
	// see [Payload.DecryptedContent] and [Payload.EncryptedContent].
	Content any `json:"content"`

	ItemsKeyID  string `json:"items_key_id,omitempty"`
	EncItemKey  string `json:"enc_item_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Deleted     bool   `json:"deleted"`

	// Dirty and the fields below never leave the client (spec §6); they are
	// stripped by [Payload.Copy] with [FieldSetServer].
	Dirty                  bool       `json:"dirty,omitempty"`
	DirtiedAt              time.Time  `json:"dirtied_at,omitempty"`
	LastSyncBegin          *time.Time `json:"last_sync_begin,omitempty"`
	LastSyncEnd            *time.Time `json:"last_sync_end,omitempty"`
	ErrorDecrypting        bool       `json:"error_decrypting,omitempty"`
	ErrorDecryptingChanged bool       `json:"error_decrypting_changed,omitempty"`
	WaitingForKey          bool       `json:"waiting_for_key,omitempty"`
	Dummy                  bool       `json:"dummy,omitempty"`

	// ConflictOf is set on a payload produced by duplication (spec §4.5,
	// §4.6): it names the uuid this payload was split off from.
	ConflictOf string `json:"conflict_of,omitempty"`

	// AuthHash and AuthParams are legacy fields carried by v001/v002
	// payloads; modern payloads leave them empty.
	AuthHash   string `json:"auth_hash,omitempty"`
	AuthParams string `json:"auth_params,omitempty"`
}

// DecryptedContent returns Content as a map, or (nil, false) if Content is
// not currently in decrypted form.
func (p Payload) DecryptedContent() (map[string]any, bool) {
	m, ok := p.Content.(map[string]any)
	return m, ok
}

// EncryptedContent returns Content as a version-prefixed ciphertext string,
// or ("", false) if Content is not currently in encrypted form.
func (p Payload) EncryptedContent() (string, bool) {
	s, ok := p.Content.(string)
	return s, ok
}

// IsEncrypted reports whether Content currently holds a ciphertext string.
func (p Payload) IsEncrypted() bool {
	_, ok := p.Content.(string)
	return ok
}

// Copy returns a new Payload retaining only the fields named by fieldSet.
// Payload is a value type already copied by the Go assignment in this
// method's signature, so no aliasing of mutable state occurs between the
// original and the projection.
func (p Payload) Copy(fieldSet FieldSet) Payload {
	out := p

	switch fieldSet {
	case FieldSetMax:
		return out

	case FieldSetEncryptionParameters:
		return Payload{
			UUID:        p.UUID,
			ContentType: p.ContentType,
			Content:     p.Content,
			ItemsKeyID:  p.ItemsKeyID,
			EncItemKey:  p.EncItemKey,
			AuthHash:    p.AuthHash,
		}

	case FieldSetFile:
		return Payload{
			UUID:        p.UUID,
			ContentType: p.ContentType,
			Content:     p.Content,
			ItemsKeyID:  p.ItemsKeyID,
			EncItemKey:  p.EncItemKey,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
			Deleted:     p.Deleted,
		}

	case FieldSetStorage:
		out.LastSyncBegin = nil
		out.LastSyncEnd = nil
		return out

	case FieldSetServer, FieldSetServerSaved:
		return Payload{
			UUID:        p.UUID,
			ContentType: p.ContentType,
			Content:     p.Content,
			ItemsKeyID:  p.ItemsKeyID,
			EncItemKey:  p.EncItemKey,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
			Deleted:     p.Deleted,
			AuthHash:    p.AuthHash,
			AuthParams:  p.AuthParams,
		}

	case FieldSetSessionHistory:
		return Payload{
			UUID:        p.UUID,
			ContentType: p.ContentType,
			Content:     p.Content,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}

	case FieldSetComponentRetrieved:
		content, _ := p.DecryptedContent()
		return Payload{
			UUID:        p.UUID,
			ContentType: p.ContentType,
			Content:     content,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
			Deleted:     p.Deleted,
		}
	}

	return out
}

// WithContent returns a copy of p with Content replaced. Used by the
// protocol operators to produce the encrypted or decrypted sibling of a
// payload without touching any other field.
func (p Payload) WithContent(content any) Payload {
	out := p
	out.Content = content
	return out
}

// MarkDirty returns a copy of p with Dirty set and DirtiedAt stamped to now.
func (p Payload) MarkDirty(now time.Time) Payload {
	out := p
	out.Dirty = true
	out.DirtiedAt = now
	return out
}

// MarkErrorDecrypting returns a copy of p flagged as undecryptable. Content
// is preserved as-is (spec §4.1): a corrupt ciphertext is never discarded,
// only flagged, so a later key arrival can retry decryption.
func (p Payload) MarkErrorDecrypting() Payload {
	out := p
	if !out.ErrorDecrypting {
		out.ErrorDecryptingChanged = true
	}
	out.ErrorDecrypting = true
	return out
}

// ClearErrorDecrypting returns a copy of p with the error flags cleared,
// recording whether the flag actually flipped.
func (p Payload) ClearErrorDecrypting() Payload {
	out := p
	out.ErrorDecryptingChanged = out.ErrorDecrypting
	out.ErrorDecrypting = false
	return out
}

// MarkWaitingForKey returns a copy of p flagged as waiting on an ItemsKey
// that has not yet arrived from sync (spec §4.2 "Key selection for
// decryption"). Unlike MarkErrorDecrypting this is not a failure: the
// content is simply retried once the key shows up.
func (p Payload) MarkWaitingForKey() Payload {
	out := p
	out.WaitingForKey = true
	return out
}

// ClearWaitingForKey returns a copy of p with the waiting-for-key flag
// cleared, used once decryption succeeds.
func (p Payload) ClearWaitingForKey() Payload {
	out := p
	out.WaitingForKey = false
	return out
}

// IsDiscardable reports whether a retrieved payload is safe to drop from the
// collection immediately after emission (spec §4.6 "Discardable rule"): it
// is deleted and carries no local dirty state.
func (p Payload) IsDiscardable() bool {
	return p.Deleted && !p.Dirty
}

// Tombstone reports whether p represents a fully superseded item: deleted
// with empty content (spec §3 "Lifecycle").
func (p Payload) Tombstone() bool {
	return p.Deleted && p.Content == nil
}
