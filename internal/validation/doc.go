// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// reflection data and is safe for concurrent use. Field names in messages are
// taken from json tags, so errors read like the request payloads they describe.
//
// # Custom Tags
//
//   - app_type: value must be a known local app variant
//     (chat_assistant, chatflow, workflow)
//
// # Usage
//
//	type SyncRequest struct {
//	    InstanceID string         `json:"instance_id"`
//	    AppType    models.AppType `json:"app_type" validate:"omitempty,app_type"`
//	}
//
//	if err := validation.Validate(&req); err != nil {
//	    // err is a *syncerr.ValidationError
//	}
//
// ValidateStruct returns the richer *RequestValidationError with one
// FieldError per failing field for callers that need the details.
package validation
