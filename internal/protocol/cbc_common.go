// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/corevault-io/core/models"
)

// cbcParams bundles the tunables that distinguish the three legacy
// CBC+HMAC operators (001-003): hash function, minimum iteration count, and
// derived-key length. The standard library's crypto/aes and crypto/cipher
// implement the CBC primitive itself — no third-party AES library improves
// on stdlib here, so DESIGN.md records that as the one deliberate
// standard-library choice in this package.
type cbcParams struct {
	hashNew  func() hash.Hash
	minCost  int
	keyLen   int // bytes of each of master/auth key
}

// deriveKeyMaterial runs PBKDF2 over password and saltHex (stored hex in
// KeyParams.PBKDF2Salt) for cost iterations, and splits the result into a
// master key half and an authentication key half, each p.keyLen bytes
// (spec §4.1: "per-item random key, split into encryption half and HMAC
// half" — the same split pattern is used for deriving the root key itself).
func (p cbcParams) deriveKeyMaterial(password, saltHex string, cost int) ([]byte, []byte, error) {
	if cost < p.minCost {
		cost = p.minCost
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, cost, 2*p.keyLen, p.hashNew)
	return derived[:p.keyLen], derived[p.keyLen:], nil
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// aesCBCEncrypt PKCS7-pads plaintext and encrypts it with AES-CBC under key
// and iv. key must be 16, 24, or 32 bytes.
func aesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// aesCBCDecrypt reverses aesCBCEncrypt, removing PKCS7 padding.
func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, block.BlockSize())
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}
	return data[:len(data)-padLen], nil
}

// hmacSum returns HMAC(key, data) using hashNew as the underlying hash.
func hmacSum(hashNew func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(hashNew, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// zeroIV is substituted in decryptCBCItem when a legacy 001 payload's
// decoded body is too short to hold a distinct prefix IV, for backward
// interop with very old items (spec §4.1, §9 Open Questions: whether this
// is intentional or a historical bug is unclear; this implementation
// preserves the documented behavior either way).
var zeroIV = make([]byte, aes.BlockSize)

// wrapItemKey wraps a raw per-item key with AES-CBC under the master-key
// half of rootKey (its first 32 bytes when rootKey is the master||auth
// concatenation), framing the result as "<version>:<iv-hex>:<base64
// ciphertext>" so both halves of the split key travel together in
// enc_item_key.
func wrapItemKey(version string, rootKey, itemKey []byte) (string, error) {
	iv, err := randomIV()
	if err != nil {
		return "", err
	}
	if len(rootKey) > 32 {
		rootKey = rootKey[:32]
	}
	ct, err := aesCBCEncrypt(rootKey, iv, itemKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s", version, hex.EncodeToString(iv), base64.StdEncoding.EncodeToString(ct)), nil
}

// unwrapItemKey reverses wrapItemKey.
func unwrapItemKey(rootKey []byte, encItemKey string) ([]byte, error) {
	parts := splitN(encItemKey, ':', 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed enc_item_key", ErrMalformedCiphertext)
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv", ErrMalformedCiphertext)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrMalformedCiphertext)
	}
	if len(rootKey) > 32 {
		rootKey = rootKey[:32]
	}
	return aesCBCDecrypt(rootKey, iv, ct)
}

func randomIV() ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

func randomItemKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// splitN splits s on sep into at most n parts, unlike strings.SplitN which
// this package avoids importing twice — kept local to make the colon
// framing (spec §6) easy to reuse across v002/v003.
func splitN(s string, sep byte, n int) []string {
	out := make([]string, 0, n)
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// marshalContent renders a payload's decrypted content to the plaintext
// bytes the CBC operators encrypt. A Payload whose Content is already a
// string (e.g. re-encrypting an already-encrypted payload) is passed
// through verbatim.
func marshalContent(p models.Payload) ([]byte, error) {
	if s, ok := p.EncryptedContent(); ok {
		return []byte(s), nil
	}
	content, _ := p.DecryptedContent()
	if content == nil {
		return []byte{}, nil
	}
	return json.Marshal(content)
}

// encryptCBCItem implements the shared shape of the 001-003 operators
// (spec §4.1): generate a fresh per-item key, wrap it under wrappingKey,
// encrypt the content under the item key's encryption half, and frame the
// result either with a separate auth_hash field (001) or a self-authenticated
// colon-delimited string (002/003).
func encryptCBCItem(version models.ProtocolVersion, params cbcParams, selfAuthenticated bool, p models.Payload, wrappingKey []byte) (models.Payload, error) {
	if p.ErrorDecrypting {
		return p, nil
	}

	plaintext, err := marshalContent(p)
	if err != nil {
		return models.Payload{}, fmt.Errorf("marshal content: %w", err)
	}

	itemKey, err := randomItemKey(2 * params.keyLen)
	if err != nil {
		return models.Payload{}, fmt.Errorf("generate item key: %w", err)
	}
	encKey, authKey := itemKey[:params.keyLen], itemKey[params.keyLen:]

	iv, err := randomIV()
	if err != nil {
		return models.Payload{}, err
	}
	ct, err := aesCBCEncrypt(encKey, iv, plaintext)
	if err != nil {
		return models.Payload{}, fmt.Errorf("encrypt content: %w", err)
	}

	encItemKey, err := wrapItemKey(string(version), wrappingKey, itemKey)
	if err != nil {
		return models.Payload{}, fmt.Errorf("wrap item key: %w", err)
	}

	out := p
	out.EncItemKey = encItemKey

	if selfAuthenticated {
		body := fmt.Sprintf("%s:%s:%s", p.UUID, hex.EncodeToString(iv), base64.StdEncoding.EncodeToString(ct))
		authHash := hmacSum(params.hashNew, authKey, []byte(body))
		out.Content = fmt.Sprintf("%s:%s:%s", version, hex.EncodeToString(authHash), body)
		out.AuthHash = ""
	} else {
		body := append(append([]byte{}, iv...), ct...)
		contentStr := string(version) + base64.StdEncoding.EncodeToString(body)
		authHash := hmacSum(params.hashNew, authKey, []byte(contentStr))
		out.Content = contentStr
		out.AuthHash = hex.EncodeToString(authHash)
	}

	return out, nil
}

// decryptCBCItem reverses encryptCBCItem, flagging p as ErrorDecrypting
// (without discarding its content) on any authentication, framing, or uuid
// mismatch failure (spec §4.1, §7).
func decryptCBCItem(version models.ProtocolVersion, params cbcParams, selfAuthenticated bool, p models.Payload, wrappingKey []byte) (models.Payload, error) {
	contentStr, ok := p.EncryptedContent()
	if !ok {
		return p, nil
	}
	if p.EncItemKey == "" {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: missing enc_item_key", ErrMalformedCiphertext)
	}

	itemKey, err := unwrapItemKey(wrappingKey, p.EncItemKey)
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: unwrap item key: %v", ErrDecryptFailure, err)
	}
	if len(itemKey) != 2*params.keyLen {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: item key length", ErrMalformedCiphertext)
	}
	encKey, authKey := itemKey[:params.keyLen], itemKey[params.keyLen:]

	var iv, ct []byte

	if selfAuthenticated {
		parts := splitN(contentStr, ':', 5)
		if len(parts) != 5 || models.ProtocolVersion(parts[0]) != version {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: framing", ErrMalformedCiphertext)
		}
		wantAuth, gotUUID, ivHex, ctB64 := parts[1], parts[2], parts[3], parts[4]
		body := fmt.Sprintf("%s:%s:%s", gotUUID, ivHex, ctB64)
		expected := hex.EncodeToString(hmacSum(params.hashNew, authKey, []byte(body)))
		if !hmac.Equal([]byte(expected), []byte(wantAuth)) {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: auth_hash", ErrDecryptFailure)
		}
		if gotUUID != p.UUID {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w", ErrUUIDMismatch)
		}
		iv, err = hex.DecodeString(ivHex)
		if err != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: iv", ErrMalformedCiphertext)
		}
		ct, err = base64.StdEncoding.DecodeString(ctB64)
		if err != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: ciphertext", ErrMalformedCiphertext)
		}
	} else {
		prefix := string(version)
		if len(contentStr) <= len(prefix) || contentStr[:len(prefix)] != prefix {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: version prefix", ErrMalformedCiphertext)
		}
		raw, err := base64.StdEncoding.DecodeString(contentStr[len(prefix):])
		if err != nil || len(raw) < aes.BlockSize {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: body", ErrMalformedCiphertext)
		}
		if len(raw) < 2*aes.BlockSize {
			// Too short to hold a distinct prefix IV ahead of at least one
			// ciphertext block: a legacy 001 payload encrypted before IVs
			// were always embedded (spec §4.1). zeroIV substitutes for the
			// missing prefix instead of stealing the sole ciphertext block
			// as IV.
			iv, ct = zeroIV, raw
		} else {
			iv, ct = raw[:aes.BlockSize], raw[aes.BlockSize:]
		}
		expected := hex.EncodeToString(hmacSum(params.hashNew, authKey, []byte(contentStr)))
		if !hmac.Equal([]byte(expected), []byte(p.AuthHash)) {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: auth_hash", ErrDecryptFailure)
		}
	}

	plaintext, err := aesCBCDecrypt(encKey, iv, ct)
	if err != nil {
		return p.MarkErrorDecrypting(), fmt.Errorf("%w: %v", ErrDecryptFailure, err)
	}

	var content map[string]any
	if len(plaintext) > 0 {
		if err := json.Unmarshal(plaintext, &content); err != nil {
			return p.MarkErrorDecrypting(), fmt.Errorf("%w: content json: %v", ErrDecryptFailure, err)
		}
	}

	return p.WithContent(content).ClearErrorDecrypting().ClearWaitingForKey(), nil
}
