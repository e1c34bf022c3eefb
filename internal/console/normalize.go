// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package console

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

const maxDiagnosticBody = 2048

// LoginResult is a validated login response.
type LoginResult struct {
	AccessToken string
	// ExpiresIn is the "expires_in" hint in seconds, nil when absent.
	ExpiresIn *int64
	Raw       map[string]interface{}
}

// AppPage is one page of the app list.
type AppPage struct {
	Items   []map[string]interface{}
	HasMore bool
	Page    int
	Limit   int
	Total   int
	// Dropped counts entries discarded as malformed.
	Dropped int
}

// DSLExport is the normalized DSL export of one app. A parse failure is
// reported with Success false and Message set, never as an error.
type DSLExport struct {
	Success bool
	Content map[string]interface{}
	Raw     string
	Message string
}

// ParseLogin validates a login response: HTTP 200 and a non-empty string
// access_token at the top level or under "data".
func ParseLogin(status int, body []byte) (*LoginResult, error) {
	if status != http.StatusOK {
		return nil, &syncerr.AuthenticationError{
			Reason:  syncerr.ReasonLoginFailed,
			Message: fmt.Sprintf("login returned HTTP %d", status),
			Status:  status,
			Body:    logging.TruncateBody(string(body), maxDiagnosticBody),
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &syncerr.AuthenticationError{
			Reason:  syncerr.ReasonLoginFailed,
			Message: "login response is not a JSON object",
			Status:  status,
			Body:    logging.TruncateBody(string(body), maxDiagnosticBody),
		}
	}

	token := firstString(payload, "access_token")
	if token == "" {
		if data, ok := payload["data"].(map[string]interface{}); ok {
			token = firstString(data, "access_token")
		}
	}
	if token == "" {
		return nil, &syncerr.AuthenticationError{
			Reason:  syncerr.ReasonLoginFailed,
			Message: "login response has no access token",
			Status:  status,
			Body:    logging.TruncateBody(string(body), maxDiagnosticBody),
		}
	}

	return &LoginResult{AccessToken: token, ExpiresIn: expiresIn(payload), Raw: payload}, nil
}

// expiresIn reads "expires_in" at the top level, then under "data".
func expiresIn(payload map[string]interface{}) *int64 {
	if v, ok := asInt64(payload["expires_in"]); ok {
		return &v
	}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		if v, ok := asInt64(data["expires_in"]); ok {
			return &v
		}
	}
	return nil
}

// ParseAppList decodes an app list page. Entries that are not objects or
// lack a string id are dropped, not fatal.
func ParseAppList(body []byte) (*AppPage, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &syncerr.APIError{Status: http.StatusOK, Message: "app list is not a JSON object", Body: logging.TruncateBody(string(body), maxDiagnosticBody)}
	}

	page := &AppPage{}
	page.HasMore, _ = payload["has_more"].(bool)
	if v, ok := asInt64(payload["page"]); ok {
		page.Page = int(v)
	}
	if v, ok := asInt64(payload["limit"]); ok {
		page.Limit = int(v)
	}
	if v, ok := asInt64(payload["total"]); ok {
		page.Total = int(v)
	}

	raw, _ := payload["data"].([]interface{})
	page.Items = make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		item, ok := entry.(map[string]interface{})
		if !ok || firstString(item, "id") == "" {
			page.Dropped++
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// ParseAppDetail decodes an app detail object.
func ParseAppDetail(body []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &syncerr.APIError{Status: http.StatusOK, Message: "app detail is not a JSON object", Body: logging.TruncateBody(string(body), maxDiagnosticBody)}
	}
	return payload, nil
}

// ParseDSLExport accepts {"data": "<yaml>"} or {"data": {...}}. YAML text is
// parsed into content and kept verbatim as Raw; structured content is
// re-serialized to canonical YAML for Raw.
func ParseDSLExport(body []byte) DSLExport {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return DSLExport{Message: "DSL export is not a JSON object: " + err.Error()}
	}

	switch data := payload["data"].(type) {
	case string:
		content, err := parseYAMLMapping(data)
		if err != nil {
			return DSLExport{Raw: data, Message: "invalid DSL YAML: " + err.Error()}
		}
		return DSLExport{Success: true, Content: content, Raw: data}
	case map[string]interface{}:
		raw, err := CanonicalYAML(data)
		if err != nil {
			return DSLExport{Message: "cannot serialize DSL content: " + err.Error()}
		}
		return DSLExport{Success: true, Content: data, Raw: raw}
	case nil:
		return DSLExport{Message: "DSL export has no data"}
	default:
		return DSLExport{Message: fmt.Sprintf("unsupported DSL data type %T", data)}
	}
}

// CanonicalYAML renders content as YAML with sorted keys.
func CanonicalYAML(content map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(content); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseYAMLMapping(text string) (map[string]interface{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty document")
	}
	var doc interface{}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	content, ok := jsonCompatible(doc).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("top-level document is %T, want a mapping", doc)
	}
	return content, nil
}

// jsonCompatible converts yaml.v3 output to types encoding/json can hash:
// map[interface{}]interface{} keys are stringified.
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	default:
		return v
	}
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
