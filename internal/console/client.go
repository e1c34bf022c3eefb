// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/metrics"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

// Endpoint labels used for logs and metrics.
const (
	EndpointLogin     = "login"
	EndpointListApps  = "list_apps"
	EndpointAppDetail = "app_detail"
	EndpointExportDSL = "export_dsl"
)

const maxResponseBody = 16 << 20

// API is the set of remote calls the sync engine makes against one instance.
// *Client implements it; tests substitute fakes.
type API interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ListApps(ctx context.Context, token string, opts ListOptions) (*AppPage, error)
	GetApp(ctx context.Context, token, appID string) (map[string]interface{}, error)
	ExportDSL(ctx context.Context, token, appID string) (*DSLExport, error)
}

var _ API = (*Client)(nil)

// ListOptions filters the app list.
type ListOptions struct {
	Page        int
	Limit       int
	Mode        string
	Name        string
	CreatedByMe bool
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64 // 0 = unlimited
	Breaker           BreakerSettings
	HTTPClient        *http.Client // optional; Timeout is applied to it
}

// OptionsFromConfig maps the console config section onto Options.
func OptionsFromConfig(cfg config.ConsoleConfig) Options {
	return Options{
		Timeout:           cfg.Timeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Breaker: BreakerSettings{
			FailureRatio: cfg.BreakerFailureRatio,
			MinRequests:  cfg.BreakerMinRequests,
			Interval:     cfg.BreakerInterval,
			Timeout:      cfg.BreakerTimeout,
		},
	}
}

// Client talks to one console instance.
type Client struct {
	instanceID string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// NewClient creates a client for the instance at baseURL.
func NewClient(instanceID, baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Breaker.FailureRatio <= 0 {
		opts.Breaker.FailureRatio = 0.6
	}
	if opts.Breaker.MinRequests == 0 {
		opts.Breaker.MinRequests = 5
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = opts.Timeout

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		instanceID: instanceID,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		limiter:    limiter,
		breaker:    newBreaker(instanceID, opts.Breaker),
	}
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":       email,
		"password":    password,
		"remember_me": true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	resp, err := c.do(ctx, EndpointLogin, http.MethodPost, "/console/api/login", nil, "", body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusTooManyRequests:
		return nil, syncerr.ClassifyHTTP(c.baseURL, resp.status, resp.header, resp.body)
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		// bad credentials rather than a stale token
		return nil, &syncerr.AuthenticationError{
			Reason:  syncerr.ReasonLoginFailed,
			Message: "credentials rejected for " + logging.SanitizeEmail(email),
			Status:  resp.status,
			Body:    logging.TruncateBody(string(resp.body), maxDiagnosticBody),
		}
	}
	return ParseLogin(resp.status, resp.body)
}

// ListApps fetches one page of apps.
func (c *Client) ListApps(ctx context.Context, token string, opts ListOptions) (*AppPage, error) {
	q := url.Values{}
	if opts.Page < 1 {
		opts.Page = 1
	}
	q.Set("page", strconv.Itoa(opts.Page))
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Mode != "" {
		q.Set("mode", opts.Mode)
	}
	if opts.Name != "" {
		q.Set("name", opts.Name)
	}
	if opts.CreatedByMe {
		q.Set("is_created_by_me", "true")
	}

	resp, err := c.doChecked(ctx, EndpointListApps, http.MethodGet, "/console/api/apps", q, token)
	if err != nil {
		return nil, err
	}
	return ParseAppList(resp.body)
}

// GetApp fetches the detail object of one app.
func (c *Client) GetApp(ctx context.Context, token, appID string) (map[string]interface{}, error) {
	resp, err := c.doChecked(ctx, EndpointAppDetail, http.MethodGet, "/console/api/apps/"+url.PathEscape(appID), nil, token)
	if err != nil {
		return nil, err
	}
	return ParseAppDetail(resp.body)
}

// ExportDSL fetches the DSL of one app. HTTP failures are errors; an
// unparsable DSL is a DSLExport with Success false.
func (c *Client) ExportDSL(ctx context.Context, token, appID string) (*DSLExport, error) {
	q := url.Values{"include_secret": []string{"false"}}
	resp, err := c.doChecked(ctx, EndpointExportDSL, http.MethodGet, "/console/api/apps/"+url.PathEscape(appID)+"/export", q, token)
	if err != nil {
		return nil, err
	}
	export := ParseDSLExport(resp.body)
	return &export, nil
}

// doChecked performs a call and classifies any non-2xx status.
func (c *Client) doChecked(ctx context.Context, endpoint, method, path string, query url.Values, token string) (*response, error) {
	resp, err := c.do(ctx, endpoint, method, path, query, token, nil)
	if err != nil {
		return nil, err
	}
	if err := syncerr.ClassifyHTTP(c.baseURL, resp.status, resp.header, resp.body); err != nil {
		return nil, err
	}
	return resp, nil
}

// do executes one request through the limiter and circuit breaker. 5xx
// responses are returned as errors so the breaker counts them.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, token string, body []byte) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", endpoint, err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		resp, err := c.roundTrip(ctx, endpoint, method, path, query, token, body)
		if err != nil {
			return nil, err
		}
		if resp.status >= 500 && resp.status <= 504 {
			return nil, syncerr.ClassifyHTTP(c.baseURL, resp.status, resp.header, resp.body)
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Warn().Err(err).Str("instance_id", c.instanceID).Str("endpoint", endpoint).
			Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, &syncerr.InstanceUnavailableError{InstanceURL: c.baseURL, Reason: syncerr.ReasonCircuitOpen, Err: err}
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, token string, body []byte) (*response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordConsoleRequest(endpoint, 0, time.Since(start))
		logging.Ctx(ctx).Debug().Err(err).Str("instance_id", c.instanceID).Str("endpoint", endpoint).
			Msg("Console request failed")
		return nil, syncerr.ClassifyTransport(c.baseURL, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	metrics.RecordConsoleRequest(endpoint, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, syncerr.ClassifyTransport(c.baseURL, fmt.Errorf("read %s response: %w", endpoint, err))
	}

	logging.Ctx(ctx).Trace().Str("instance_id", c.instanceID).Str("endpoint", endpoint).
		Int("status", httpResp.StatusCode).Dur("duration", time.Since(start)).Msg("Console request")

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}
