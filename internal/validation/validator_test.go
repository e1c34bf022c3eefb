// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type testRequest struct {
	InstanceID string         `json:"instance_id" validate:"required"`
	Email      string         `json:"email" validate:"omitempty,email"`
	AppType    models.AppType `json:"app_type" validate:"omitempty,app_type"`
	Limit      int            `json:"limit" validate:"min=1,max=1000"`
	Name       string         `json:"name" validate:"omitempty,max=5"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     testRequest
		wantField string
		wantMsg   string
	}{
		{
			name:  "valid",
			input: testRequest{InstanceID: "i1", Email: "a@example.com", AppType: models.AppTypeWorkflow, Limit: 10},
		},
		{
			name:  "empty app type allowed",
			input: testRequest{InstanceID: "i1", Limit: 1},
		},
		{
			name:      "missing required",
			input:     testRequest{Limit: 1},
			wantField: "instance_id",
			wantMsg:   "instance_id is required",
		},
		{
			name:      "unknown app type",
			input:     testRequest{InstanceID: "i1", AppType: "agent", Limit: 1},
			wantField: "app_type",
			wantMsg:   "app_type must be one of: chat_assistant chatflow workflow",
		},
		{
			name:      "bad email",
			input:     testRequest{InstanceID: "i1", Email: "nope", Limit: 1},
			wantField: "email",
			wantMsg:   "email must be a valid email address",
		},
		{
			name:      "numeric max",
			input:     testRequest{InstanceID: "i1", Limit: 5000},
			wantField: "limit",
			wantMsg:   "limit must be at most 1000",
		},
		{
			name:      "string max",
			input:     testRequest{InstanceID: "i1", Limit: 1, Name: "too long"},
			wantField: "name",
			wantMsg:   "name must be at most 5 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			fe := verr.Errors()[0]
			if fe.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", fe.Field(), tt.wantField)
			}
			if fe.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", fe.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	verr := ValidateStruct(&testRequest{AppType: "x"})
	if verr == nil {
		t.Fatal("expected error")
	}
	if len(verr.Errors()) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(verr.Errors()), verr)
	}
	if !strings.Contains(verr.Error(), "; ") {
		t.Errorf("combined message %q not joined", verr.Error())
	}
}

func TestValidate_ReturnsSyncValidationError(t *testing.T) {
	if err := Validate(&testRequest{InstanceID: "i1", Limit: 1}); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	err := Validate(&testRequest{Limit: 1})
	var verr *syncerr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() = %T, want *syncerr.ValidationError", err)
	}
	if verr.Field != "instance_id" {
		t.Errorf("Field = %q, want instance_id", verr.Field)
	}
	if syncerr.KindOf(err) != syncerr.KindValidation {
		t.Errorf("KindOf = %q", syncerr.KindOf(err))
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	verr := ValidateStruct("not a struct")
	if verr == nil || verr.Errors()[0].Field() != "unknown" {
		t.Errorf("ValidateStruct(string) = %v, want unknown field error", verr)
	}
}
