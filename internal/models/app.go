// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// AppType is the local app variant discriminant.
type AppType string

const (
	AppTypeChatAssistant AppType = "chat_assistant"
	AppTypeChatflow      AppType = "chatflow"
	AppTypeWorkflow      AppType = "workflow"
)

// AllAppTypes lists every variant in a stable order.
var AllAppTypes = []AppType{AppTypeChatAssistant, AppTypeChatflow, AppTypeWorkflow}

// modeToAppType is the fixed remote mode -> variant mapping.
var modeToAppType = map[string]AppType{
	"chat":          AppTypeChatAssistant,
	"agent-chat":    AppTypeChatAssistant,
	"advanced-chat": AppTypeChatAssistant,
	"completion":    AppTypeChatAssistant,
	"workflow":      AppTypeWorkflow,
	"chatflow":      AppTypeChatflow,
}

// ResolveAppType maps a remote app mode onto a local variant.
func ResolveAppType(mode string) (AppType, bool) {
	t, ok := modeToAppType[mode]
	return t, ok
}

// ModesFor returns the remote modes that resolve to t, sorted.
func ModesFor(t AppType) []string {
	var modes []string
	for _, m := range []string{"advanced-chat", "agent-chat", "chat", "chatflow", "completion", "workflow"} {
		if modeToAppType[m] == t {
			modes = append(modes, m)
		}
	}
	return modes
}

// Valid reports whether t is one of the known variants.
func (t AppType) Valid() bool {
	switch t {
	case AppTypeChatAssistant, AppTypeChatflow, AppTypeWorkflow:
		return true
	}
	return false
}

// AppConfig is the variant-specific payload of an App. The set of
// implementations is closed: ChatAssistantConfig, ChatflowConfig, WorkflowConfig.
type AppConfig interface {
	AppType() AppType
	sealed()
}

// ChatAssistantConfig holds configuration for chat, agent and completion apps.
type ChatAssistantConfig struct {
	AssistantConfig map[string]interface{} `json:"assistant_config,omitempty"`
	KnowledgeBase   map[string]interface{} `json:"knowledge_base,omitempty"`
}

// ChatflowConfig holds configuration for chatflow apps.
type ChatflowConfig struct {
	ChatflowConfig     map[string]interface{} `json:"chatflow_config,omitempty"`
	ModelConfig        map[string]interface{} `json:"model_config,omitempty"`
	ConversationConfig map[string]interface{} `json:"conversation_config,omitempty"`
}

// WorkflowConfig holds the workflow graph plus its derived IO schemas.
type WorkflowConfig struct {
	WorkflowConfig map[string]interface{} `json:"workflow_config,omitempty"`
	InputSchema    interface{}            `json:"input_schema,omitempty"`
	OutputSchema   interface{}            `json:"output_schema,omitempty"`
}

func (*ChatAssistantConfig) AppType() AppType { return AppTypeChatAssistant }
func (*ChatflowConfig) AppType() AppType      { return AppTypeChatflow }
func (*WorkflowConfig) AppType() AppType      { return AppTypeWorkflow }

func (*ChatAssistantConfig) sealed() {}
func (*ChatflowConfig) sealed()      {}
func (*WorkflowConfig) sealed()      {}

// NewAppConfig returns an empty config for t, or nil for an unknown type.
func NewAppConfig(t AppType) AppConfig {
	switch t {
	case AppTypeChatAssistant:
		return &ChatAssistantConfig{}
	case AppTypeChatflow:
		return &ChatflowConfig{}
	case AppTypeWorkflow:
		return &WorkflowConfig{}
	}
	return nil
}

// App is a synced application record.
type App struct {
	ID              string     `json:"id"`
	Type            AppType    `json:"type"`
	InstanceID      string     `json:"instance_id"`
	AccountID       string     `json:"account_id"`
	RemoteAppID     string     `json:"remote_app_id"`
	Mode            string     `json:"mode"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Icon            string     `json:"icon,omitempty"`
	IconBackground  string     `json:"icon_background,omitempty"`
	IsPublic        bool       `json:"is_public"`
	RemoteCreatedBy string     `json:"remote_created_by,omitempty"`
	RemoteCreatedAt *time.Time `json:"remote_created_at,omitempty"`
	RemoteUpdatedAt *time.Time `json:"remote_updated_at,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	SiteID          *string    `json:"site_id,omitempty"`
	Config          AppConfig  `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewApp returns an unsaved App of the given variant with an empty config.
func NewApp(t AppType) *App {
	return &App{Type: t, Config: NewAppConfig(t)}
}

// ChatAssistant returns the config when the app is a chat assistant.
func (a *App) ChatAssistant() (*ChatAssistantConfig, bool) {
	c, ok := a.Config.(*ChatAssistantConfig)
	return c, ok
}

// Chatflow returns the config when the app is a chatflow.
func (a *App) Chatflow() (*ChatflowConfig, bool) {
	c, ok := a.Config.(*ChatflowConfig)
	return c, ok
}

// Workflow returns the config when the app is a workflow.
func (a *App) Workflow() (*WorkflowConfig, bool) {
	c, ok := a.Config.(*WorkflowConfig)
	return c, ok
}

type appAlias App

type appJSON struct {
	*appAlias
	Config json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes the variant config under "config".
func (a App) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if a.Config != nil {
		if a.Config.AppType() != a.Type {
			return nil, fmt.Errorf("app %s: config variant %s does not match type %s", a.ID, a.Config.AppType(), a.Type)
		}
		b, err := json.Marshal(a.Config)
		if err != nil {
			return nil, fmt.Errorf("marshal app config: %w", err)
		}
		raw = b
	}
	alias := appAlias(a)
	return json.Marshal(appJSON{appAlias: &alias, Config: raw})
}

// UnmarshalJSON decodes "config" into the struct selected by "type".
func (a *App) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*appAlias)(a)); err != nil {
		return err
	}
	var aux struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cfg := NewAppConfig(a.Type)
	if cfg == nil {
		return fmt.Errorf("unknown app type %q", a.Type)
	}
	if len(aux.Config) > 0 && string(aux.Config) != "null" {
		if err := json.Unmarshal(aux.Config, cfg); err != nil {
			return fmt.Errorf("unmarshal %s config: %w", a.Type, err)
		}
	}
	a.Config = cfg
	return nil
}
