// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
)

// RegisterInstances upserts the configured instances and accounts. Cached
// tokens of existing accounts are kept unless the credentials changed.
func RegisterInstances(ctx context.Context, st *store.Store, instances []config.InstanceConfig, now time.Time) error {
	sess := st.NewSession()
	accounts := 0

	for _, ic := range instances {
		instance, err := st.Instances.FindByID(ctx, ic.ID)
		if errors.Is(err, store.ErrNotFound) {
			instance = &models.Instance{ID: ic.ID, CreatedAt: now}
		} else if err != nil {
			return fmt.Errorf("load instance %s: %w", ic.ID, err)
		}
		instance.Name = ic.Name
		instance.URL = strings.TrimRight(ic.URL, "/")
		instance.Enabled = ic.Enabled
		instance.UpdatedAt = now
		st.Instances.Persist(sess, instance)

		for _, ac := range ic.Accounts {
			account, err := st.Accounts.FindByID(ctx, ac.ID)
			if errors.Is(err, store.ErrNotFound) {
				account = &models.Account{ID: ac.ID, CreatedAt: now}
			} else if err != nil {
				return fmt.Errorf("load account %s: %w", ac.ID, err)
			}
			if account.Email != ac.Email || account.Password != ac.Password || account.InstanceID != ic.ID {
				account.AccessToken = ""
				account.ExpiresAt = nil
			}
			account.InstanceID = ic.ID
			account.Email = ac.Email
			account.Password = ac.Password
			account.Enabled = ac.Enabled
			account.UpdatedAt = now
			st.Accounts.Persist(sess, account)
			accounts++
		}
	}

	if err := sess.Flush(ctx); err != nil {
		sess.Discard()
		return fmt.Errorf("register instances: %w", err)
	}
	logging.Ctx(ctx).Info().
		Int("instances", len(instances)).
		Int("accounts", accounts).
		Msg("Registered configured instances")
	return nil
}
