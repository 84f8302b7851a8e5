// Package api talks to the dining backend over HTTP.
//
// Every request mints a fresh bearer credential from the injected identity
// and sends it as "Authorization: Bearer <token>". Non-2xx bodies are kept
// as human-readable text in a *ServerError. Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/robertmeta/dining-cli/identity"
)

// Endpoints holds one URL per backend operation. URLs are injected from
// configuration, never hardcoded.
type Endpoints struct {
	Catalog      string `yaml:"catalog"`
	Rate         string `yaml:"rate"`
	LogMacros    string `yaml:"log_macros"`
	FetchMacros  string `yaml:"fetch_macros"`
	ResetMacros  string `yaml:"reset_macros"`
	RatedHistory string `yaml:"rated_history"`
	RegisterUser string `yaml:"register_user"`
}

// Missing returns the names of unconfigured endpoints.
func (e Endpoints) Missing() []string {
	var missing []string
	for name, u := range map[string]string{
		"catalog":       e.Catalog,
		"rate":          e.Rate,
		"log_macros":    e.LogMacros,
		"fetch_macros":  e.FetchMacros,
		"reset_macros":  e.ResetMacros,
		"rated_history": e.RatedHistory,
		"register_user": e.RegisterUser,
	} {
		if strings.TrimSpace(u) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Client is an authenticated backend client.
type Client struct {
	endpoints  Endpoints
	identity   identity.Identity
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Timeouts are the HTTP client's.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the given endpoints and identity.
func New(endpoints Endpoints, id identity.Identity, opts ...Option) *Client {
	if id == nil {
		id = identity.Anonymous{}
	}
	c := &Client{
		endpoints:  endpoints,
		identity:   id,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one authenticated JSON request. in is encoded as the body when
// non-nil; a 2xx body is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, name, endpoint string, in, out any) error {
	if !c.identity.Present() {
		return identity.ErrUnauthenticated
	}
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: %s", ErrEndpointMissing, name)
	}
	token, err := c.identity.Mint(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger := c.logger.With(
		slog.String("op", name),
		slog.String("method", method),
		slog.String("request_id", requestID),
	)
	logger.Debug("Sending request", slog.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Request failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Request rejected", slog.Int("status", resp.StatusCode))
		return &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	logger.Debug("Request succeeded", slog.Int("status", resp.StatusCode), slog.Int("bytes", len(data)))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
