// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corevault-io/core/models"
)

// decryptedBase64Prefix marks a Payload.Content string produced by
// FormatDecryptedBase64String (spec §4.2): decrypted content that still has
// to travel through a string-typed wire field, base64-encoded rather than
// AES-wrapped. It is not a models.ProtocolVersion and never reaches an
// Operator.
const decryptedBase64Prefix = "000:"

// KeySource is the minimal view the protocol service needs of whatever
// holds the account's current keys. Neither internal/keymgr.Manager (which
// supplies RootKey) nor internal/itemskey.Manager (which supplies
// DefaultItemsKey and ItemsKeyByID) satisfies it alone; callers compose the
// two into one value, and neither package needs to import this one.
type KeySource interface {
	// RootKey returns the currently unlocked root key, if any.
	RootKey() (models.RootKey, bool)

	// DefaultItemsKey returns the items key new items should be encrypted
	// under, plus its uuid (spec §4.4 "default_items_key").
	DefaultItemsKey() (models.ItemsKeyContent, string, bool)

	// ItemsKeyByID looks up a specific items key by uuid, used to decrypt
	// a payload that names one in ItemsKeyID.
	ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool)
}

// Service dispatches encryption/decryption to the right versioned Operator
// and implements the key-selection rules of spec §4.2. It is stateless
// beyond its memoized operator table, so a single Service is safe to share
// across goroutines despite this codebase's otherwise single-threaded
// pipeline (spec §5) — the service never mutates shared state.
type Service struct {
	operators map[models.ProtocolVersion]Operator
}

// NewService builds a Service with one operator per known protocol version.
func NewService() *Service {
	return &Service{
		operators: map[models.ProtocolVersion]Operator{
			models.ProtocolVersion001: newOperatorV001(),
			models.ProtocolVersion002: newOperatorV002(),
			models.ProtocolVersion003: newOperatorV003(),
			models.ProtocolVersion004: newOperatorV004(),
		},
	}
}

// Operator returns the operator registered for version, or
// ErrUnsupportedVersion.
func (s *Service) Operator(version models.ProtocolVersion) (Operator, error) {
	op, ok := s.operators[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
	return op, nil
}

// LatestOperator returns the operator for models.LatestProtocolVersion.
func (s *Service) LatestOperator() Operator {
	op, _ := s.Operator(models.LatestProtocolVersion)
	return op
}

// CreateItemsKey mints a fresh default ItemsKey under the latest protocol
// version (spec §4.4 "create_new_default_items_key").
func (s *Service) CreateItemsKey(root models.RootKey) (models.ItemsKeyContent, error) {
	return s.LatestOperator().CreateItemsKey(root)
}

// resolveEncryptKey implements spec §4.2's "key selection for encryption":
// root-key-only content types (and every item under versions <= 003) use
// the account root key; everything else uses the current default items
// key, returning its uuid so the caller can stamp ItemsKeyID.
func (s *Service) resolveEncryptKey(p models.Payload, version models.ProtocolVersion, source KeySource) ([]byte, string, error) {
	root, hasRoot := source.RootKey()

	if version != models.ProtocolVersion004 || p.ContentType.RequiresRootKey() {
		if !hasRoot {
			return nil, "", ErrNoKeyAvailable
		}
		if version == models.ProtocolVersion004 {
			return root.MasterKey, "", nil
		}
		return rootKeyBytes(root), "", nil
	}

	ik, id, ok := source.DefaultItemsKey()
	if !ok {
		return nil, "", ErrNoKeyAvailable
	}
	key, err := hex.DecodeString(ik.ItemsKey)
	if err != nil {
		return nil, "", fmt.Errorf("%w: malformed items key", ErrMalformedCiphertext)
	}
	return key, id, nil
}

// resolveDecryptKey mirrors resolveEncryptKey for the decrypt path, keyed
// off the payload's own ItemsKeyID rather than the current default.
func (s *Service) resolveDecryptKey(p models.Payload, version models.ProtocolVersion, source KeySource) ([]byte, error) {
	if p.ItemsKeyID == "" {
		root, hasRoot := source.RootKey()
		if !hasRoot {
			return nil, ErrNoKeyAvailable
		}
		if version == models.ProtocolVersion004 {
			return root.MasterKey, nil
		}
		return rootKeyBytes(root), nil
	}

	ik, ok := source.ItemsKeyByID(p.ItemsKeyID)
	if !ok {
		return nil, ErrNoKeyAvailable
	}
	if version == models.ProtocolVersion004 {
		return hex.DecodeString(ik.ItemsKey)
	}
	master, err := hex.DecodeString(ik.ItemsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed items key", ErrMalformedCiphertext)
	}
	auth, err := hex.DecodeString(ik.DataAuthenticationKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed items key auth half", ErrMalformedCiphertext)
	}
	return append(master, auth...), nil
}

// EncryptPayload picks the format intent dictates (spec §4.2's
// Intent→format table) and, when that format calls for real encryption,
// picks the operator and key for p (encrypting under
// models.LatestProtocolVersion, per spec §4.2: every local edit re-encrypts
// under the newest version the library supports) and stamps ItemsKeyID when
// an items key was used.
func (s *Service) EncryptPayload(p models.Payload, source KeySource, intent Intent) (models.Payload, error) {
	version := models.LatestProtocolVersion
	key, itemsKeyID, keyErr := s.resolveEncryptKey(p, version, source)

	format, err := FormatForIntent(intent, keyErr == nil)
	if err != nil {
		return models.Payload{}, err
	}

	switch format {
	case FormatDecryptedBareObject:
		return p, nil

	case FormatDecryptedBase64String:
		content, _ := p.DecryptedContent()
		raw, marshalErr := json.Marshal(content)
		if marshalErr != nil {
			return models.Payload{}, fmt.Errorf("%w: marshal decrypted content", ErrMalformedCiphertext)
		}
		return p.WithContent(decryptedBase64Prefix + base64.StdEncoding.EncodeToString(raw)), nil

	default: // FormatEncryptedString
		if keyErr != nil {
			return models.Payload{}, fmt.Errorf("%w", keyErr)
		}
		op, opErr := s.Operator(version)
		if opErr != nil {
			return models.Payload{}, opErr
		}
		out, encErr := op.EncryptPayload(p, key)
		if encErr != nil {
			return models.Payload{}, encErr
		}
		out.ItemsKeyID = itemsKeyID
		return out, nil
	}
}

// DecryptPayload picks the operator by p's own content-version prefix and
// resolves the key via p.ItemsKeyID. A missing items key is reported as
// ErrNoKeyAvailable with p flagged WaitingForKey rather than
// ErrorDecrypting, so a later sync pass can retry once the key arrives
// (spec §4.2).
func (s *Service) DecryptPayload(p models.Payload, source KeySource) (models.Payload, error) {
	content, ok := p.EncryptedContent()
	if !ok {
		return p, nil
	}
	if strings.HasPrefix(content, decryptedBase64Prefix) {
		raw, decodeErr := base64.StdEncoding.DecodeString(content[len(decryptedBase64Prefix):])
		if decodeErr != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: body", ErrMalformedCiphertext)
		}
		var decoded map[string]any
		if decodeErr = json.Unmarshal(raw, &decoded); decodeErr != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: body", ErrMalformedCiphertext)
		}
		return p.WithContent(decoded), nil
	}
	version := versionPrefix(content)
	op, err := s.Operator(version)
	if err != nil {
		return p.MarkErrorDecrypting(), err
	}
	key, err := s.resolveDecryptKey(p, version, source)
	if err != nil {
		return p.MarkWaitingForKey(), err
	}
	return op.DecryptPayload(p, key)
}

// BatchEncrypt/BatchDecrypt isolate per-payload failures (spec §4.1 "never
// let one bad item abort a batch"): a failing payload is reported through
// failures but still appears in the returned slice, either unchanged
// (encrypt) or flagged (decrypt).

// BatchEncrypt encrypts every payload in items under intent, collecting
// per-uuid errors rather than aborting on the first failure.
func (s *Service) BatchEncrypt(items []models.Payload, source KeySource, intent Intent) ([]models.Payload, map[string]error) {
	out := make([]models.Payload, 0, len(items))
	failures := map[string]error{}
	for _, p := range items {
		enc, err := s.EncryptPayload(p, source, intent)
		if err != nil {
			failures[p.UUID] = err
			out = append(out, p)
			continue
		}
		out = append(out, enc)
	}
	return out, failures
}

// BatchDecrypt decrypts every payload in items, collecting per-uuid errors.
// Payloads that fail are still present in the output, flagged either
// ErrorDecrypting or WaitingForKey by DecryptPayload.
func (s *Service) BatchDecrypt(items []models.Payload, source KeySource) ([]models.Payload, map[string]error) {
	out := make([]models.Payload, 0, len(items))
	failures := map[string]error{}
	for _, p := range items {
		dec, err := s.DecryptPayload(p, source)
		if err != nil {
			failures[p.UUID] = err
		}
		out = append(out, dec)
	}
	return out, failures
}

// versionPrefix extracts the three-digit version prefix from a ciphertext
// string, defaulting to 001 for any string too short to carry one (the
// oldest format never prefixed a colon after its version digits).
func versionPrefix(content string) models.ProtocolVersion {
	if len(content) < 3 {
		return models.ProtocolVersion001
	}
	return models.ProtocolVersion(content[:3])
}

// CreateBackupFile projects items through FieldSetFile and wraps them with
// keyParams, implementing the export half of spec §6's backup format.
func CreateBackupFile(items []models.Payload, keyParams *models.KeyParams) models.BackupFile {
	files := make([]models.Payload, 0, len(items))
	for _, p := range items {
		files = append(files, p.Copy(models.FieldSetFile))
	}
	return models.BackupFile{KeyParams: keyParams, Items: files}
}
