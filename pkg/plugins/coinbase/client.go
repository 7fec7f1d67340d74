// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package coinbase talks to the Coinbase Advanced Trade REST API with CDP
// API keys.
package coinbase

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
)

const (
	DefaultBaseURL = "https://api.coinbase.com"
	apiPrefix      = "/api/v3/brokerage"
	jwtIssuer      = "cdp"
	jwtLifetime    = 2 * time.Minute
)

var ErrMissingCredentials = errors.New("coinbase: api key and secret are required")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coinbase: status %d", e.StatusCode)
	}
	return fmt.Sprintf("coinbase: status %d: %s", e.StatusCode, e.Message)
}

// Client signs every private request with a short-lived ES256 JWT bound to the
// request method, host and path.
type Client struct {
	keyName string
	key     *ecdsa.PrivateKey
	baseURL *url.URL
	http    *http.Client
	now     func() time.Time
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
	limiter *ratelimit.Limiter
	base    http.RoundTripper
}

func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithLimiter throttles requests through l under the "coinbase" key.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(o *clientOptions) { o.limiter = l }
}

// WithTransport sets the round tripper requests go through. The limiter, if
// any, wraps it regardless of option order.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.base = rt }
}

// NewClient parses secret, a PEM encoded EC private key. Escaped "\n"
// sequences, as found in .env files, are accepted.
func NewClient(keyName, secret string, opts ...Option) (*Client, error) {
	if keyName == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(strings.ReplaceAll(secret, `\n`, "\n")))
	if err != nil {
		return nil, fmt.Errorf("coinbase: parse api secret: %w", err)
	}

	o := clientOptions{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	base, err := url.Parse(strings.TrimRight(o.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("coinbase: parse base url: %w", err)
	}

	transport := o.base
	if o.limiter != nil {
		transport = &ratelimit.Transport{Base: transport, Limiter: o.limiter, Key: "coinbase"}
	}

	return &Client{
		keyName: keyName,
		key:     key,
		baseURL: base,
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		now:     time.Now,
	}, nil
}

type claims struct {
	jwt.RegisteredClaims
	URI string `json:"uri,omitempty"`
}

// token builds the bearer JWT for one request.
func (c *Client) token(method, path string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	now := c.now()
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.keyName,
			Issuer:    jwtIssuer,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
		},
		URI: fmt.Sprintf("%s %s%s", method, c.baseURL.Host, path),
	})
	t.Header["kid"] = c.keyName
	t.Header["nonce"] = hex.EncodeToString(nonce)
	return t.SignedString(c.key)
}

func (c *Client) request(ctx context.Context, method, endpoint string, out any) error {
	path := c.baseURL.Path + endpoint
	token, err := c.token(method, path)
	if err != nil {
		return fmt.Errorf("coinbase: sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.Scheme+"://"+c.baseURL.Host+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "realityspiral")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coinbase: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coinbase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		logger.DebugCF("coinbase", "API request failed", map[string]any{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("coinbase: decode response: %w", err)
	}
	return nil
}

// KeyPermissions describes what the API key in use may do.
type KeyPermissions struct {
	CanView       bool   `json:"can_view"`
	CanTrade      bool   `json:"can_trade"`
	CanTransfer   bool   `json:"can_transfer"`
	PortfolioUUID string `json:"portfolio_uuid"`
	PortfolioType string `json:"portfolio_type"`
}

func (c *Client) GetAPIKeyPermissions(ctx context.Context) (*KeyPermissions, error) {
	var out KeyPermissions
	if err := c.request(ctx, http.MethodGet, apiPrefix+"/key_permissions", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
