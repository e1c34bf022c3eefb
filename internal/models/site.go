// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package models

import "time"

// Site is the published access point of an App. ID is the remote site code.
type Site struct {
	ID                     string                 `json:"id"`
	InstanceID             string                 `json:"instance_id"`
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	Icon                   string                 `json:"icon,omitempty"`
	IconBackground         string                 `json:"icon_background,omitempty"`
	URL                    string                 `json:"url"`
	IsEnabled              bool                   `json:"is_enabled"`
	DefaultLanguage        string                 `json:"default_language,omitempty"`
	ChatColorTheme         string                 `json:"chat_color_theme,omitempty"`
	ChatColorThemeInverted bool                   `json:"chat_color_theme_inverted"`
	Copyright              string                 `json:"copyright,omitempty"`
	PrivacyPolicy          string                 `json:"privacy_policy,omitempty"`
	CustomDisclaimer       string                 `json:"custom_disclaimer,omitempty"`
	ShowWorkflowSteps      bool                   `json:"show_workflow_steps"`
	CustomizeDomain        map[string]interface{} `json:"customize_domain,omitempty"`
	CustomConfig           map[string]interface{} `json:"custom_config,omitempty"`
	PublishedAt            *time.Time             `json:"published_at,omitempty"`
	RemoteUpdatedAt        *time.Time             `json:"remote_updated_at,omitempty"`
	LastSyncedAt           *time.Time             `json:"last_synced_at,omitempty"`
}
