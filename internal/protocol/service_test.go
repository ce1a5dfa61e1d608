package protocol_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/protocol"
	"github.com/corevault-io/core/models"
)

type fakeKeySource struct {
	root        models.RootKey
	hasRoot     bool
	itemsKey    models.ItemsKeyContent
	itemsKeyID  string
	hasItemsKey bool
}

func (f fakeKeySource) RootKey() (models.RootKey, bool) { return f.root, f.hasRoot }

func (f fakeKeySource) DefaultItemsKey() (models.ItemsKeyContent, string, bool) {
	return f.itemsKey, f.itemsKeyID, f.hasItemsKey
}

func (f fakeKeySource) ItemsKeyByID(uuid string) (models.ItemsKeyContent, bool) {
	if uuid == f.itemsKeyID {
		return f.itemsKey, true
	}
	return models.ItemsKeyContent{}, false
}

func notePayload() models.Payload {
	now := time.Now()
	return models.Payload{
		UUID:        "note-1",
		ContentType: models.ContentTypeNote,
		Content:     map[string]any{"title": "hello", "text": "world"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestServiceRoundTripLatestVersion verifies that encrypting under
// models.LatestProtocolVersion and decrypting back recovers the original
// content, with the correct ItemsKeyID stamped (spec §4.1, §4.4).
func TestServiceRoundTripLatestVersion(t *testing.T) {
	svc := protocol.NewService()

	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "correct horse battery staple")
	require.NoError(t, err)

	itemsKey, err := svc.CreateItemsKey(root)
	require.NoError(t, err)

	source := fakeKeySource{
		root:        root,
		hasRoot:     true,
		itemsKey:    itemsKey,
		itemsKeyID:  "ik-1",
		hasItemsKey: true,
	}

	enc, err := svc.EncryptPayload(notePayload(), source, protocol.IntentSync)
	require.NoError(t, err)
	assert.True(t, enc.IsEncrypted())
	assert.Equal(t, "ik-1", enc.ItemsKeyID)

	dec, err := svc.DecryptPayload(enc, source)
	require.NoError(t, err)
	assert.False(t, dec.ErrorDecrypting)
	content, ok := dec.DecryptedContent()
	require.True(t, ok)
	assert.Equal(t, "hello", content["title"])
	assert.Equal(t, "world", content["text"])
}

// TestServiceMissingItemsKeyWaits verifies spec §4.2: a payload whose items
// key has not arrived yet is flagged WaitingForKey, not ErrorDecrypting.
func TestServiceMissingItemsKeyWaits(t *testing.T) {
	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)
	itemsKey, err := svc.CreateItemsKey(root)
	require.NoError(t, err)

	source := fakeKeySource{root: root, hasRoot: true, itemsKey: itemsKey, itemsKeyID: "ik-1", hasItemsKey: true}
	enc, err := svc.EncryptPayload(notePayload(), source, protocol.IntentSync)
	require.NoError(t, err)

	emptySource := fakeKeySource{root: root, hasRoot: true}
	dec, err := svc.DecryptPayload(enc, emptySource)
	require.Error(t, err)
	assert.True(t, dec.WaitingForKey)
	assert.False(t, dec.ErrorDecrypting)
}

// TestTamperedCiphertextFlagsErrorDecrypting verifies spec §4.1/§7: a
// corrupted ciphertext is flagged, not silently discarded.
func TestTamperedCiphertextFlagsErrorDecrypting(t *testing.T) {
	svc := protocol.NewService()
	root, _, err := svc.LatestOperator().CreateRootKey("user@example.com", "pw")
	require.NoError(t, err)
	itemsKey, err := svc.CreateItemsKey(root)
	require.NoError(t, err)
	source := fakeKeySource{root: root, hasRoot: true, itemsKey: itemsKey, itemsKeyID: "ik-1", hasItemsKey: true}

	enc, err := svc.EncryptPayload(notePayload(), source, protocol.IntentSync)
	require.NoError(t, err)

	tampered := enc
	s, _ := tampered.EncryptedContent()
	tampered = tampered.WithContent(s[:len(s)-4] + "abcd")

	dec, err := svc.DecryptPayload(tampered, source)
	require.Error(t, err)
	assert.True(t, dec.ErrorDecrypting)
	assert.Equal(t, tampered.Content, dec.Content)
}

// TestLegacyVersionRoundTrip exercises the 001-003 CBC+HMAC operators,
// which wrap a per-item key under the root key rather than an ItemsKey.
func TestLegacyVersionRoundTrip(t *testing.T) {
	for _, version := range []models.ProtocolVersion{
		models.ProtocolVersion001,
		models.ProtocolVersion002,
		models.ProtocolVersion003,
	} {
		t.Run(string(version), func(t *testing.T) {
			svc := protocol.NewService()
			op, err := svc.Operator(version)
			require.NoError(t, err)

			root, _, err := op.CreateRootKey("user@example.com", "pw")
			require.NoError(t, err)

			source := fakeKeySource{root: root, hasRoot: true}
			enc, err := op.EncryptPayload(notePayload(), rootKeyBytesForTest(root))
			require.NoError(t, err)
			assert.NotEmpty(t, enc.EncItemKey)

			dec, err := op.DecryptPayload(enc, rootKeyBytesForTest(root))
			require.NoError(t, err)
			content, ok := dec.DecryptedContent()
			require.True(t, ok)
			assert.Equal(t, "hello", content["title"])
			_ = source
		})
	}
}

func rootKeyBytesForTest(r models.RootKey) []byte {
	out := make([]byte, 0, len(r.MasterKey)+len(r.DataAuthenticationKey))
	out = append(out, r.MasterKey...)
	out = append(out, r.DataAuthenticationKey...)
	return out
}
