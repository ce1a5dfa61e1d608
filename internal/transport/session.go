// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transport

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by ParseSession when the token carries no exp
// claim, which this client treats as "never refresh automatically".
var ErrNoExpiry = errors.New("transport: token has no expiry claim")

// Session is the client's view of a bearer token's lifetime (spec §6
// supplemented feature: session bearer-token expiry tracking). The client
// never verifies the token's signature — it has no copy of the server's
// signing key — it only reads the exp claim to decide when to prompt for
// re-authentication, exactly the way the teacher's ParseUserIDFromJWT reads
// the subject claim without verifying.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// ParseSession extracts the exp claim from an unverified JWT bearer token.
func ParseSession(token string) (Session, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Session{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, errors.New("transport: invalid token claims")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Session{}, err
	}
	if exp == nil {
		return Session{}, ErrNoExpiry
	}
	return Session{Token: token, ExpiresAt: exp.Time}, nil
}

// Expired reports whether the session's token has passed its exp claim as
// of now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// NeedsRefresh reports whether the session will expire within buffer of
// now, so a caller can proactively re-authenticate before a sync request
// fails with ErrUnauthorized.
func (s Session) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return !s.ExpiresAt.IsZero() && now.Add(buffer).After(s.ExpiresAt)
}
