// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package auth manages the bearer token lifecycle of console accounts.

Manager.EnsureValidToken is the only writer of Account.AccessToken,
Account.ExpiresAt and Account.LastLoginAt. It invokes the caller supplied
refresh (normally LoginWith(client)) only when the account has no token or
now >= expiry, and persists the new token, expiry and login time on success.

Token expiry is resolved in order:
 1. the numeric "exp" claim of a three-part JWT (read without verification;
    the console is the issuer and verifier)
 2. the login response "expires_in" hint in seconds, added to now
 3. DefaultTokenTTL (24 hours) from now

Concurrent refreshes of the same account are coalesced with singleflight, and
the stored account is re-read inside the flight so a caller holding a stale
copy reuses a token another caller just obtained.
*/
package auth
