// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpClaim is returned by JWTExpiry when the token has no numeric exp claim.
var ErrNoExpClaim = errors.New("token has no numeric exp claim")

// TokenExpiry resolves when token expires: JWT exp claim, then the
// expires_in hint, then DefaultTokenTTL.
func TokenExpiry(token string, expiresIn *int64, now time.Time) time.Time {
	if exp, err := JWTExpiry(token); err == nil {
		return exp
	}
	if expiresIn != nil && *expiresIn > 0 {
		return now.Add(time.Duration(*expiresIn) * time.Second)
	}
	return now.Add(DefaultTokenTTL)
}

// JWTExpiry decodes a three-part token without verifying its signature and
// returns its exp claim.
func JWTExpiry(token string) (time.Time, error) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, ErrNoExpClaim
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}

	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0), nil
	case int64:
		return time.Unix(exp, 0), nil
	default:
		return time.Time{}, ErrNoExpClaim
	}
}
