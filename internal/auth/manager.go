// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/metrics"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

// DefaultTokenTTL applies when neither the token nor the response carries an expiry.
const DefaultTokenTTL = 24 * time.Hour

// DefaultLoginTimeout bounds a shared refresh once it is detached from its callers.
const DefaultLoginTimeout = 30 * time.Second

// AccountStore loads and saves accounts. *store.Repository[models.Account] satisfies it.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// RefreshResult is the outcome of one login.
type RefreshResult struct {
	Success     bool
	AccessToken string
	ExpiresIn   *int64
	Message     string
}

// RefreshFunc logs an account in. An unsuccessful result (Success false) is
// reported as an Authentication error; a returned error propagates as is.
type RefreshFunc func(ctx context.Context, account *models.Account) (*RefreshResult, error)

// LoginWith returns a RefreshFunc that logs in through api.
func LoginWith(api console.API) RefreshFunc {
	return func(ctx context.Context, account *models.Account) (*RefreshResult, error) {
		res, err := api.Login(ctx, account.Email, account.Password)
		if err != nil {
			return nil, err
		}
		return &RefreshResult{Success: true, AccessToken: res.AccessToken, ExpiresIn: res.ExpiresIn}, nil
	}
}

// Manager ensures accounts carry a valid bearer token.
type Manager struct {
	accounts     AccountStore
	now          func() time.Time
	loginTimeout time.Duration
	group        singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLoginTimeout bounds each refresh; zero keeps DefaultLoginTimeout.
func WithLoginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loginTimeout = d
		}
	}
}

// NewManager creates a Manager persisting through accounts.
func NewManager(accounts AccountStore, opts ...Option) *Manager {
	m := &Manager{accounts: accounts, now: time.Now, loginTimeout: DefaultLoginTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type tokenState struct {
	token     string
	expiresAt time.Time
	lastLogin *time.Time
}

// EnsureValidToken returns a usable bearer token for account, refreshing it
// when the token is absent or expired. account is updated in place.
func (m *Manager) EnsureValidToken(ctx context.Context, account *models.Account, refresh RefreshFunc) (string, error) {
	if !account.TokenExpired(m.now()) {
		return account.AccessToken, nil
	}

	// The refresh is shared by every waiter on this account, so one caller
	// going away must not cancel it for the rest.
	ch := m.group.DoChan(account.ID, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loginTimeout)
		defer cancel()
		return m.refresh(rctx, account, refresh)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.Err != nil {
		return "", res.Err
	}
	shared := res.Shared

	state := res.Val.(tokenState)
	account.AccessToken = state.token
	expires := state.expiresAt
	account.ExpiresAt = &expires
	account.LastLoginAt = state.lastLogin

	if shared {
		logging.Ctx(ctx).Debug().Str("account_id", account.ID).Msg("Reused concurrent token refresh")
	}
	return state.token, nil
}

func (m *Manager) refresh(ctx context.Context, account *models.Account, refresh RefreshFunc) (tokenState, error) {
	log := logging.Ctx(ctx).With().Str("account_id", account.ID).Str("instance_id", account.InstanceID).Logger()

	// Another caller may have refreshed the stored account already.
	if stored, err := m.accounts.FindByID(ctx, account.ID); err == nil && !stored.TokenExpired(m.now()) {
		return tokenState{token: stored.AccessToken, expiresAt: *stored.ExpiresAt, lastLogin: stored.LastLoginAt}, nil
	}

	res, err := refresh(ctx, account)
	if err != nil {
		metrics.RecordTokenRefresh(false)
		log.Warn().Err(err).Str("kind", string(syncerr.KindOf(err))).Msg("Token refresh failed")
		return tokenState{}, fmt.Errorf("refresh token for account %s: %w", account.ID, err)
	}
	if res == nil || !res.Success || res.AccessToken == "" {
		metrics.RecordTokenRefresh(false)
		msg := "refresh reported failure"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		log.Warn().Str("reason", msg).Msg("Token refresh unsuccessful")
		return tokenState{}, &syncerr.AuthenticationError{
			Reason:  syncerr.ReasonLoginFailed,
			Message: fmt.Sprintf("account %s: %s", account.ID, msg),
		}
	}

	now := m.now()
	state := tokenState{
		token:     res.AccessToken,
		expiresAt: TokenExpiry(res.AccessToken, res.ExpiresIn, now),
		lastLogin: &now,
	}

	updated := *account
	updated.AccessToken = state.token
	updated.ExpiresAt = &state.expiresAt
	updated.LastLoginAt = state.lastLogin
	updated.UpdatedAt = now
	if err := m.accounts.Save(ctx, &updated); err != nil {
		metrics.RecordTokenRefresh(false)
		return tokenState{}, fmt.Errorf("persist token for account %s: %w", account.ID, err)
	}

	metrics.RecordTokenRefresh(true)
	log.Info().
		Str("email", logging.SanitizeEmail(account.Email)).
		Str("token", logging.SanitizeToken(state.token)).
		Time("expires_at", state.expiresAt).
		Msg("Account token refreshed")
	return state, nil
}
