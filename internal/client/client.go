// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client talks to the EHS admin backend over its REST contract and
// converts every failure into the editor-facing error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// Wire names shared with the server.
const (
	SessionCookieName = "ehs_session"
	CSRFHeader        = "X-CSRF-Token"
)

// Error taxonomy
var (
	// ErrAuthResolution means the current user could not be resolved. Callers
	// treat it as signed out.
	ErrAuthResolution = errors.New("could not resolve current user")

	// ErrNotFound means the target no longer exists.
	ErrNotFound = errors.New("not found")
)

// ServerError is any other 4xx/5xx answer: a conflict or a server failure.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Conflict reports whether the server refused because of current state.
func (e *ServerError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// errorBody is the server's JSON error envelope.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. The client is used as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionToken sets the session cookie value from an earlier login.
func WithSessionToken(token string) Option {
	return func(c *Client) { c.session = token }
}

// Client is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client

	mu      sync.Mutex
	session string
	csrf    string
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionToken returns the current session cookie value.
func (c *Client) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	User      *identity.CurrentUser `json:"user"`
	CSRFToken string                `json:"csrfToken"`
}

// Login signs in and keeps the session cookie for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.CurrentUser, error) {
	var out LoginResponse
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		if isStatus(err, http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrAuthResolution)
		}
		return nil, err
	}
	token := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookieName {
			token = ck.Value
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%w: login response carried no session cookie", ErrAuthResolution)
	}
	c.mu.Lock()
	c.session = token
	c.csrf = out.CSRFToken
	c.mu.Unlock()
	return out.User, nil
}

// Logout ends the session. The local token is dropped either way.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.mutate(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.mu.Lock()
	c.session, c.csrf = "", ""
	c.mu.Unlock()
	return err
}

// CurrentUser resolves the signed-in user. Every failure, including
// transport errors, is reported as ErrAuthResolution.
func (c *Client) CurrentUser(ctx context.Context) (*identity.CurrentUser, error) {
	var u identity.CurrentUser
	resp, err := c.do(ctx, http.MethodGet, "/user", nil, &u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthResolution, err)
	}
	if tok := resp.Header.Get(CSRFHeader); tok != "" {
		c.mu.Lock()
		c.csrf = tok
		c.mu.Unlock()
	}
	return &u, nil
}

// Principal adapts CurrentUser for guard.Tracker.Resolve.
func (c *Client) Principal(ctx context.Context) (guard.Principal, error) {
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListRoles fetches every role.
func (c *Client) ListRoles(ctx context.Context) ([]*authz.Role, error) {
	var roles []*authz.Role
	if _, err := c.do(ctx, http.MethodGet, "/user-permissions", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches one role.
func (c *Client) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	var role authz.Role
	if _, err := c.do(ctx, http.MethodGet, "/user-permissions/"+url.PathEscape(id), nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// CreateRole submits a new role.
func (c *Client) CreateRole(ctx context.Context, in authz.RoleInput) (*authz.Role, error) {
	var role authz.Role
	if _, err := c.mutate(ctx, http.MethodPost, "/user-permissions", in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// UpdateRole replaces an existing role.
func (c *Client) UpdateRole(ctx context.Context, id string, in authz.RoleInput) (*authz.Role, error) {
	var role authz.Role
	if _, err := c.mutate(ctx, http.MethodPost, "/user-permissions/"+url.PathEscape(id)+"/update", in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/user-permissions/"+url.PathEscape(id)+"/delete", nil, nil)
	return err
}

// ExportRole streams the role's grant matrix workbook into w.
func (c *Client) ExportRole(ctx context.Context, id string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/user-permissions/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

// Sections fetches the section map served by the backend.
func (c *Client) Sections(ctx context.Context) ([]permission.Section, error) {
	var out []permission.Section
	if _, err := c.do(ctx, http.MethodGet, "/permissions/sections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Navigation fetches the sidebar for the signed-in user.
func (c *Client) Navigation(ctx context.Context) ([]guard.NavEntry, error) {
	var out []guard.NavEntry
	if _, err := c.do(ctx, http.MethodGet, "/navigation", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mutate is do with a CSRF token, fetched through /user when unknown.
func (c *Client) mutate(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	c.mu.Lock()
	known := c.csrf != ""
	c.mu.Unlock()
	if !known {
		if _, err := c.CurrentUser(ctx); err != nil {
			return nil, err
		}
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.session})
	}
	if c.csrf != "" && method != http.MethodGet {
		req.Header.Set(CSRFHeader, c.csrf)
	}
	c.mu.Unlock()
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp, decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrAuthResolution, &ServerError{StatusCode: resp.StatusCode, Message: body.Error})
	case resp.StatusCode == http.StatusBadRequest && len(body.Fields) > 0:
		return validationFromFields(body.Fields)
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: body.Error}
}

func validationFromFields(fields map[string]string) error {
	var errs authz.ValidationErrors
	for _, f := range []string{authz.FieldName, authz.FieldDescription, authz.FieldPermissionObject} {
		if msg, ok := fields[f]; ok {
			errs = append(errs, &authz.ValidationError{Field: f, Err: errors.New(msg)})
		}
	}
	if len(errs) == 0 {
		return &ServerError{StatusCode: http.StatusBadRequest, Message: "validation failed"}
	}
	return errs
}

func isStatus(err error, code int) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == code
}
