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

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
)

// SiteRepository loads and stages sites. *store.Repository[models.Site] implements it.
type SiteRepository interface {
	FindByID(ctx context.Context, id string) (*models.Site, error)
	Persist(sess *store.Session, site *models.Site)
}

// SiteOutcome is what MergeSite did.
type SiteOutcome int

const (
	SiteSkipped SiteOutcome = iota // site block present but without a usable key
	SiteCleared                    // no site block; app reference removed
	SiteCreated
	SiteUpdated
)

// SiteMerger maps the remote site block of an app onto a local Site.
type SiteMerger struct {
	sites SiteRepository
	now   func() time.Time
}

// NewSiteMerger creates a SiteMerger; now defaults to time.Now.
func NewSiteMerger(sites SiteRepository, now func() time.Time) *SiteMerger {
	if now == nil {
		now = time.Now
	}
	return &SiteMerger{sites: sites, now: now}
}

// Merge stages the site described by remote["site"] into sess and points app at it.
// An absent or empty site block, or one without a usable key, clears the
// app's reference.
func (m *SiteMerger) Merge(ctx context.Context, sess *store.Session, instance *models.Instance, app *models.App, remote map[string]interface{}) (SiteOutcome, error) {
	block, ok := mapField(remote, "site")
	if !ok || len(block) == 0 {
		app.SiteID = nil
		return SiteCleared, nil
	}

	siteID := stringField(block, "code", "access_token", "id")
	if siteID == "" {
		logging.Ctx(ctx).Debug().Str("remote_app_id", app.RemoteAppID).Msg("Site block has no code, token or id; clearing reference")
		app.SiteID = nil
		return SiteSkipped, nil
	}

	outcome := SiteUpdated
	site, err := m.sites.FindByID(ctx, siteID)
	if errors.Is(err, store.ErrNotFound) {
		site = &models.Site{ID: siteID}
		outcome = SiteCreated
	} else if err != nil {
		return SiteSkipped, fmt.Errorf("find site %s: %w", siteID, err)
	}

	m.mapSite(ctx, site, block, remote, instance, app, siteID)
	m.sites.Persist(sess, site)
	app.SiteID = &site.ID
	return outcome, nil
}

func (m *SiteMerger) mapSite(ctx context.Context, site *models.Site, block, remote map[string]interface{}, instance *models.Instance, app *models.App, siteID string) {
	site.InstanceID = instance.ID
	site.Title = stringField(block, "title", "name")
	site.Description = stringField(block, "description", "summary")
	site.Icon = stringField(block, "icon")
	site.IconBackground = stringField(block, "icon_background")
	site.DefaultLanguage = stringField(block, "default_language", "language")
	site.ChatColorTheme = stringField(block, "chat_color_theme")
	site.ChatColorThemeInverted = boolField(block, "chat_color_theme_inverted")
	site.Copyright = stringField(block, "copyright")
	site.PrivacyPolicy = stringField(block, "privacy_policy")
	site.CustomDisclaimer = stringField(block, "custom_disclaimer")
	site.ShowWorkflowSteps = boolField(block, "show_workflow_steps")
	site.CustomizeDomain = customizeDomain(block["customize_domain"])
	site.CustomConfig, _ = mapField(block, "custom_config")
	site.IsEnabled = stringField(block, "code", "access_token") != ""

	site.URL = stringField(block, "url", "site_url")
	if site.URL == "" {
		base := stringField(block, "app_base_url")
		if base == "" {
			base = stringField(remote, "app_base_url")
		}
		if base == "" {
			base = instance.URL
		}
		site.URL = SiteURL(base, app.Mode, siteID)
	}

	log := logging.Ctx(ctx)
	if ts, ok := siteTimestamp(block, "published_at", "created_at"); ok {
		if t, err := parseTimestamp(ts); err == nil {
			site.PublishedAt = &t
		} else {
			log.Warn().Err(err).Str("site_id", siteID).Msg("Ignoring unparsable site publish time")
		}
	}
	if ts, ok := siteTimestamp(block, "updated_at"); ok {
		if t, err := parseTimestamp(ts); err == nil {
			site.RemoteUpdatedAt = &t
		} else {
			log.Warn().Err(err).Str("site_id", siteID).Msg("Ignoring unparsable site update time")
		}
	}

	now := m.now()
	site.LastSyncedAt = &now
}

// SiteURL builds the public URL of a site from its base URL, app mode and code.
func SiteURL(base, mode, code string) string {
	path := "/chatbot/"
	if mode == "workflow" {
		path = "/workflow/"
	}
	return strings.TrimRight(base, "/") + path + code
}

func siteTimestamp(block map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := block[k]; ok && v != nil && v != "" {
			return v, true
		}
	}
	return nil, false
}

// customizeDomain normalizes a bare domain string to {"domain": s}.
func customizeDomain(v interface{}) map[string]interface{} {
	switch d := v.(type) {
	case string:
		if d == "" {
			return nil
		}
		return map[string]interface{}{"domain": d}
	case map[string]interface{}:
		return d
	}
	return nil
}
