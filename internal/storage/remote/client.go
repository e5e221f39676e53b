// Package remote writes snippet state through the snippet REST backend.
//
// The backend has no bulk endpoint, so SaveState computes a diff against
// what the server currently holds and issues one request per change:
//
//  1. POST namespaces missing on the server
//  2. POST new snippets, PUT changed ones
//  3. DELETE snippets absent from the state
//  4. DELETE namespaces absent from the state (never the default)
//
// Namespace renames are not propagated; the backend cannot update them.
//
// Every request gets its own timeout (Config.Timeout). A non-2xx response is
// returned as *StatusError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:5000.
	BaseURL string

	// Timeout bounds each request (default: 10s). Zero uses the default.
	Timeout time.Duration

	// HTTPClient overrides the transport (optional).
	HTTPClient *http.Client
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps 404 to snippets.ErrNotFound so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return snippets.ErrNotFound
	}
	return nil
}

// Client talks to one REST backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		base:    base,
		http:    httpClient,
		timeout: timeout,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ListSnippets returns every snippet on the server.
func (c *Client) ListSnippets(ctx context.Context) ([]snippets.Snippet, error) {
	var out []snippets.Snippet
	if err := c.do(ctx, http.MethodGet, "/api/snippets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListNamespaces returns every namespace on the server.
func (c *Client) ListNamespaces(ctx context.Context) ([]snippets.Namespace, error) {
	var out []snippets.Namespace
	if err := c.do(ctx, http.MethodGet, "/api/namespaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSnippet posts a new snippet.
func (c *Client) CreateSnippet(ctx context.Context, sn *snippets.Snippet) error {
	return c.do(ctx, http.MethodPost, "/api/snippets", sn, nil)
}

// UpdateSnippet replaces snippet sn.ID.
func (c *Client) UpdateSnippet(ctx context.Context, sn *snippets.Snippet) error {
	return c.do(ctx, http.MethodPut, "/api/snippets/"+url.PathEscape(sn.ID), sn, nil)
}

// DeleteSnippet removes snippet id.
func (c *Client) DeleteSnippet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/snippets/"+url.PathEscape(id), nil, nil)
}

// CreateNamespace posts a new namespace.
func (c *Client) CreateNamespace(ctx context.Context, ns *snippets.Namespace) error {
	return c.do(ctx, http.MethodPost, "/api/namespaces", ns, nil)
}

// DeleteNamespace removes namespace id; its snippets move to the default.
func (c *Client) DeleteNamespace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/namespaces/"+url.PathEscape(id), nil, nil)
}

// SaveState makes the server hold exactly state. See the package doc for the
// request sequence. The first failing request aborts the save; the next save
// recomputes the diff from scratch.
func (c *Client) SaveState(ctx context.Context, state *snippets.State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	st := state.Clone()
	st.Normalize()

	remoteNamespaces, err := c.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	// The server's default namespace stands in for ours.
	localDefault := st.DefaultID()
	remoteDefault := localDefault
	onServer := make(map[string]bool, len(remoteNamespaces))
	for _, ns := range remoteNamespaces {
		onServer[ns.ID] = true
		if ns.IsDefault {
			remoteDefault = ns.ID
		}
	}

	wanted := make(map[string]bool, len(st.Namespaces))
	for i := range st.Namespaces {
		ns := st.Namespaces[i]
		if ns.ID == localDefault {
			wanted[remoteDefault] = true
			continue
		}
		wanted[ns.ID] = true
		if onServer[ns.ID] {
			continue
		}
		ns.IsDefault = false
		if err := c.CreateNamespace(ctx, &ns); err != nil {
			return fmt.Errorf("failed to create namespace %s: %w", ns.ID, err)
		}
	}

	remoteSnippets, err := c.ListSnippets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snippets: %w", err)
	}
	existing := make(map[string]snippets.Snippet, len(remoteSnippets))
	for _, sn := range remoteSnippets {
		existing[sn.ID] = sn
	}

	keep := make(map[string]bool, len(st.Snippets))
	for i := range st.Snippets {
		sn := st.Snippets[i]
		if sn.NamespaceID == localDefault {
			sn.NamespaceID = remoteDefault
		}
		keep[sn.ID] = true

		current, ok := existing[sn.ID]
		switch {
		case !ok:
			if err := c.CreateSnippet(ctx, &sn); err != nil {
				return fmt.Errorf("failed to create snippet %s: %w", sn.ID, err)
			}
		case !sameSnippet(current, sn):
			if err := c.UpdateSnippet(ctx, &sn); err != nil {
				return fmt.Errorf("failed to update snippet %s: %w", sn.ID, err)
			}
		}
	}

	for _, sn := range remoteSnippets {
		if keep[sn.ID] {
			continue
		}
		if err := c.DeleteSnippet(ctx, sn.ID); err != nil && !errors.Is(err, snippets.ErrNotFound) {
			return fmt.Errorf("failed to delete snippet %s: %w", sn.ID, err)
		}
	}

	for _, ns := range remoteNamespaces {
		if ns.IsDefault || wanted[ns.ID] {
			continue
		}
		if err := c.DeleteNamespace(ctx, ns.ID); err != nil && !errors.Is(err, snippets.ErrNotFound) {
			return fmt.Errorf("failed to delete namespace %s: %w", ns.ID, err)
		}
	}

	return nil
}

// sameSnippet compares the fields an update can change.
func sameSnippet(a, b snippets.Snippet) bool {
	a.CreatedAt, b.CreatedAt = 0, 0
	if len(a.InputParameters) == 0 {
		a.InputParameters = nil
	}
	if len(b.InputParameters) == 0 {
		b.InputParameters = nil
	}
	return reflect.DeepEqual(a, b)
}

// do sends one request with its own timeout. body is JSON-encoded when
// non-nil; out is decoded from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			serr.Message = payload.Error
		} else {
			serr.Message = strings.TrimSpace(string(data))
		}
		return serr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
