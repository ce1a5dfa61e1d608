// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transport

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("server-only-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestParseSession_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	raw := signedTestToken(t, exp)

	sess, err := ParseSession(raw)

	require.NoError(t, err)
	assert.Equal(t, raw, sess.Token)
	assert.WithinDuration(t, exp, sess.ExpiresAt, time.Second)
}

func TestParseSession_NoExpiry(t *testing.T) {
	raw := signedTestToken(t, time.Time{})

	_, err := ParseSession(raw)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoExpiry)
}

func TestParseSession_Malformed(t *testing.T) {
	_, err := ParseSession("not.a.token")
	require.Error(t, err)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	sess := Session{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, sess.Expired(now))

	sess = Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, sess.Expired(now))
}

func TestSession_NeedsRefresh(t *testing.T) {
	now := time.Now()
	sess := Session{ExpiresAt: now.Add(2 * time.Minute)}

	assert.True(t, sess.NeedsRefresh(now, 5*time.Minute))
	assert.False(t, sess.NeedsRefresh(now, time.Minute))
}
