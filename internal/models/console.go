// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package models

import "time"

// Instance is a remote console deployment to sync against.
type Instance struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	URL       string    `json:"url" validate:"required,url"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account holds the credentials for one Instance.
// AccessToken, ExpiresAt and LastLoginAt are written only by the auth manager.
type Account struct {
	ID          string     `json:"id" validate:"required"`
	InstanceID  string     `json:"instance_id" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password,omitempty"`
	AccessToken string     `json:"access_token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TokenExpired reports whether the account needs a fresh login at now:
// the token is absent, its expiry is unknown, or now >= expiry.
func (a *Account) TokenExpired(now time.Time) bool {
	if a.AccessToken == "" || a.ExpiresAt == nil {
		return true
	}
	return !now.Before(*a.ExpiresAt)
}
