// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
)

// conversationKeys are the model_config entries that make up a chatflow's
// conversation settings.
var conversationKeys = []string{
	"opening_statement",
	"suggested_questions",
	"suggested_questions_after_answer",
	"speech_to_text",
	"text_to_speech",
	"retriever_resource",
	"sensitive_word_avoidance",
	"file_upload",
}

// MapAppFields copies a remote app payload onto app. Wrong JSON types degrade
// to zero values; unparsable timestamps are logged and leave the field as is.
// Variant blocks absent from the payload keep their stored value.
func MapAppFields(ctx context.Context, app *models.App, remote map[string]interface{}) {
	app.Name = stringField(remote, "name")
	app.Description = stringField(remote, "description")
	app.Icon = stringField(remote, "icon")
	app.IconBackground = stringField(remote, "icon_background")
	app.IsPublic = boolField(remote, "is_public")
	app.RemoteCreatedBy = stringField(remote, "created_by")
	if mode := stringField(remote, "mode"); mode != "" {
		app.Mode = mode
	}

	mapTimestamp(ctx, app, remote, "created_at", &app.RemoteCreatedAt)
	mapTimestamp(ctx, app, remote, "updated_at", &app.RemoteUpdatedAt)

	switch cfg := app.Config.(type) {
	case *models.ChatAssistantConfig:
		mapChatAssistant(cfg, remote)
	case *models.ChatflowConfig:
		mapChatflow(cfg, remote)
	case *models.WorkflowConfig:
		mapWorkflow(cfg, remote)
	}
}

func mapTimestamp(ctx context.Context, app *models.App, remote map[string]interface{}, key string, dst **time.Time) {
	raw, present := remote[key]
	if !present || raw == nil {
		return
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("remote_app_id", app.RemoteAppID).
			Str("field", key).
			Msg("Ignoring unparsable app timestamp")
		return
	}
	*dst = &ts
}

func mapChatAssistant(cfg *models.ChatAssistantConfig, remote map[string]interface{}) {
	modelConfig, ok := mapField(remote, "model_config")
	if ok {
		cfg.AssistantConfig = modelConfig
	}

	kb := map[string]interface{}{}
	if ok {
		if datasetConfigs, found := mapField(modelConfig, "dataset_configs"); found {
			kb["dataset_configs"] = datasetConfigs
		}
	}
	if datasets, found := listField(remote, "datasets"); found {
		kb["datasets"] = datasets
	}
	if len(kb) > 0 {
		cfg.KnowledgeBase = kb
	}
}

func mapChatflow(cfg *models.ChatflowConfig, remote map[string]interface{}) {
	if workflow, ok := mapField(remote, "workflow"); ok {
		cfg.ChatflowConfig = workflow
	}
	modelConfig, ok := mapField(remote, "model_config")
	if !ok {
		return
	}
	cfg.ModelConfig = modelConfig

	conversation := map[string]interface{}{}
	for _, k := range conversationKeys {
		if v, present := modelConfig[k]; present {
			conversation[k] = v
		}
	}
	cfg.ConversationConfig = conversation
}

func mapWorkflow(cfg *models.WorkflowConfig, remote map[string]interface{}) {
	workflow, hasWorkflow := mapField(remote, "workflow")
	if hasWorkflow {
		cfg.WorkflowConfig = workflow
	}

	if v, ok := remote["input_schema"]; ok && v != nil {
		cfg.InputSchema = v
	} else if hasWorkflow {
		cfg.InputSchema = nodeData(workflow, "start", "variables")
	}

	if v, ok := remote["output_schema"]; ok && v != nil {
		cfg.OutputSchema = v
	} else if hasWorkflow {
		cfg.OutputSchema = nodeData(workflow, "end", "outputs")
	}
}

// nodeData returns data[field] of the first graph node whose data.type is nodeType.
func nodeData(workflow map[string]interface{}, nodeType, field string) interface{} {
	graph, ok := mapField(workflow, "graph")
	if !ok {
		return nil
	}
	nodes, _ := listField(graph, "nodes")
	for _, n := range nodes {
		node, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		data, ok := mapField(node, "data")
		if !ok {
			continue
		}
		if t, _ := data["type"].(string); t == nodeType {
			return data[field]
		}
	}
	return nil
}
