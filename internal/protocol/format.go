// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package protocol implements the versioned encryption operators (v001-v004)
// and the dispatch service described in spec §4.1-§4.2. Each operator
// version is an independent encoding of the same four operations: root-key
// derivation, item-level authenticated encryption, items-key creation, and
// backup-file framing. The service picks the right operator per payload and
// never lets version-specific logic leak into callers.
package protocol

import "fmt"

// Format is the on-the-wire/on-disk shape a payload's content takes after
// [Service.EncryptPayload] (spec §4.1 "Formats").
type Format int

const (
	// FormatDecryptedBareObject leaves Content as a plain decrypted map.
	FormatDecryptedBareObject Format = iota
	// FormatDecryptedBase64String wraps the JSON-encoded decrypted content
	// as "000:" + base64(json), used for local-storage/file payloads that
	// are not encrypted but still need a string envelope.
	FormatDecryptedBase64String
	// FormatEncryptedString is a version-prefixed opaque ciphertext string
	// produced by one of the protocol operators.
	FormatEncryptedString
)

// Intent names why a payload is being formatted (spec §4.2 "Intent→format
// mapping"). The service enforces exactly the table below and refuses any
// combination not listed there.
type Intent int

const (
	IntentSync Intent = iota
	IntentSyncDecrypted
	IntentLocalStorageEncrypted
	IntentLocalStoragePreferEncrypted
	IntentLocalStorageDecrypted
	IntentFileEncrypted
	IntentFilePreferEncrypted
	IntentFileDecrypted
)

// ErrUnhandledIntent is returned by FormatForIntent when the combination of
// intent and key availability is not one spec §4.2's table enumerates.
var ErrUnhandledIntent = fmt.Errorf("protocol: unhandled intent/key combination")

// FormatForIntent implements the spec §4.2 intent→format table. keyPresent
// tells it whether an encryption key was resolved for this payload; for
// "prefer encrypted" intents this decides between encrypted and bare
// output, while "required" intents demand a key and error without one.
func FormatForIntent(intent Intent, keyPresent bool) (Format, error) {
	switch intent {
	case IntentSync:
		if !keyPresent {
			return 0, fmt.Errorf("%w: Sync requires a key", ErrUnhandledIntent)
		}
		return FormatEncryptedString, nil

	case IntentSyncDecrypted:
		return FormatDecryptedBase64String, nil

	case IntentLocalStorageEncrypted:
		if !keyPresent {
			return 0, fmt.Errorf("%w: LocalStorageEncrypted requires a key", ErrUnhandledIntent)
		}
		return FormatEncryptedString, nil

	case IntentLocalStoragePreferEncrypted:
		if keyPresent {
			return FormatEncryptedString, nil
		}
		return FormatDecryptedBareObject, nil

	case IntentLocalStorageDecrypted:
		return FormatDecryptedBareObject, nil

	case IntentFileEncrypted:
		if !keyPresent {
			return 0, fmt.Errorf("%w: FileEncrypted requires a key", ErrUnhandledIntent)
		}
		return FormatEncryptedString, nil

	case IntentFilePreferEncrypted:
		if keyPresent {
			return FormatEncryptedString, nil
		}
		return FormatDecryptedBareObject, nil

	case IntentFileDecrypted:
		return FormatDecryptedBareObject, nil
	}

	return 0, fmt.Errorf("%w: intent %d", ErrUnhandledIntent, intent)
}
