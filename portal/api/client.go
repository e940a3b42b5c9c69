// Package api is the typed REST client for the onboarding backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hivedesk/onboarding/portal/session"
)

// NewHTTPClient returns a pooled client. Analysis calls wait on the model,
// so the timeout is generous.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Client calls the backend on behalf of one session. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession authenticates every call with s
func WithSession(s *session.Session) Option {
	return func(c *Client) { c.session = s }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(2 * time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForSession returns a copy of c bound to s
func (c *Client) ForSession(s *session.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Session returns the bound session, or nil
func (c *Client) Session() *session.Session {
	return c.session
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	return req, nil
}

// doJSON sends req and decodes the envelope's data into out
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return newError(resp.StatusCode, "")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return newError(resp.StatusCode, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, username, password string) (*session.Session, error) {
	var resp struct {
		Token      string `json:"token"`
		ExpiresAt  string `json:"expires_at"`
		Username   string `json:"username"`
		Role       string `json:"role"`
		EmployeeID string `json:"employee_id"`
		Name       string `json:"name"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/login", in, &resp); err != nil {
		return nil, err
	}

	expires, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at %q: %w", resp.ExpiresAt, err)
	}
	return &session.Session{
		Token:      resp.Token,
		ExpiresAt:  expires,
		Username:   resp.Username,
		Role:       resp.Role,
		EmployeeID: resp.EmployeeID,
		Name:       resp.Name,
	}, nil
}

// Me returns the identity behind the bound session
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.sendJSON(ctx, http.MethodGet, "/api/auth/me", nil, &u)
	return u, err
}

func documentPath(id string, suffix ...string) string {
	p := "/api/documents/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
