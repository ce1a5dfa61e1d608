package keymgr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corevault-io/core/internal/keymgr"
	"github.com/corevault-io/core/models"
)

func TestModeTransitions(t *testing.T) {
	m := keymgr.New()
	assert.Equal(t, models.KeyModeNone, m.Mode())

	m.SetNewRootKey(models.RootKey{MasterKey: []byte("master"), DataAuthenticationKey: []byte("auth"), Version: models.ProtocolVersion004})
	assert.Equal(t, models.KeyModeRootKeyOnly, m.Mode())

	require.NoError(t, m.AddPasscodeWrapper("local-passcode"))
	assert.Equal(t, models.KeyModeRootKeyPlusWrapper, m.Mode())

	m.ClearRootKey()
	assert.Equal(t, models.KeyModeWrapperOnly, m.Mode())

	require.NoError(t, m.RemovePasscodeWrapper())
	assert.Equal(t, models.KeyModeNone, m.Mode())
}

func TestLockUnwrapRoundTrip(t *testing.T) {
	m := keymgr.New()
	root := models.RootKey{MasterKey: []byte("0123456789abcdef0123456789abcdef"), DataAuthenticationKey: []byte("fedcba9876543210fedcba9876543210"), Version: models.ProtocolVersion004}
	m.SetNewRootKey(root)
	require.NoError(t, m.AddPasscodeWrapper("hunter2"))

	wrapped, err := m.Lock("hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)

	fresh := keymgr.New()
	require.NoError(t, fresh.Unwrap("hunter2", wrapped, m.WrapperKeyParams()))
	got, ok := fresh.RootKey()
	require.True(t, ok)
	assert.Equal(t, root.MasterKey, got.MasterKey)
	assert.Equal(t, root.DataAuthenticationKey, got.DataAuthenticationKey)
	assert.Equal(t, models.KeyModeRootKeyPlusWrapper, fresh.Mode())
}

func TestUnwrapWrongPasscode(t *testing.T) {
	m := keymgr.New()
	root := models.RootKey{MasterKey: []byte("0123456789abcdef0123456789abcdef"), DataAuthenticationKey: []byte("fedcba9876543210fedcba9876543210"), Version: models.ProtocolVersion004}
	m.SetNewRootKey(root)
	require.NoError(t, m.AddPasscodeWrapper("hunter2"))
	wrapped, err := m.Lock("hunter2")
	require.NoError(t, err)

	assert.False(t, m.ValidateWrapper("wrong-passcode", wrapped, m.WrapperKeyParams()))

	fresh := keymgr.New()
	err = fresh.Unwrap("wrong-passcode", wrapped, m.WrapperKeyParams())
	require.ErrorIs(t, err, keymgr.ErrWrongPasscode)
}
