package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nawehub/session-gateway/internal/config"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/nawehub/session-gateway/internal/validation"
)

const (
	contentTypeJSON = "application/json"
	maxResponseSize = 1 << 20 // 1 MiB
)

// StatusError reports a non-2xx answer from the identity backend
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity backend returned status %d", e.StatusCode)
}

// Client talks to the identity backend's login and refresh endpoints.
// Every failure it returns wraps one of ErrInvalidCredentials, ErrNetworkFailure,
// ErrMalformedResponse or ErrRefreshFailed.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	loginPath   string
	refreshPath string
	verifier    AccessTokenVerifier
	validator   *validation.Validator
}

type Option func(*Client)

// WithHTTPClient replaces the default client (which uses the configured timeout)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithVerifier makes Login and Refresh reject access tokens the verifier refuses
func WithVerifier(verifier AccessTokenVerifier) Option {
	return func(c *Client) {
		c.verifier = verifier
	}
}

func NewClient(cfg config.IdentityConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.GetRequestTimeout()},
		baseURL:     cfg.GetIdentityBaseURL(),
		loginPath:   cfg.GetIdentityLoginPath(),
		refreshPath: cfg.GetIdentityRefreshPath(),
		validator:   validation.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token pair and user snapshot
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	if err := c.validator.Validate(creds); err != nil {
		return nil, fmt.Errorf("[identity Login] %w: %w", apperrors.ErrInvalidCredentials, err)
	}

	var resp LoginResponse
	if err := c.post(ctx, c.loginPath, creds, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("[identity Login] %w: %w", apperrors.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("[identity Login] %w", err)
	}

	// A 2xx without an access token or user is a rejected login, not a session
	if err := c.validator.Validate(resp); err != nil {
		return nil, fmt.Errorf("[identity Login] %w: %w", apperrors.ErrInvalidCredentials, err)
	}

	if err := c.verify(ctx, resp.AccessToken); err != nil {
		return nil, fmt.Errorf("[identity Login] %w: %w", apperrors.ErrInvalidCredentials, err)
	}

	return &resp, nil
}

// Refresh exchanges a refresh token for a new token pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	if err := c.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}

	var resp TokenPair
	if err := c.post(ctx, c.refreshPath, req, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
		}
		return nil, fmt.Errorf("[identity Refresh] %w", err)
	}

	if err := c.validator.Validate(resp); err != nil {
		return nil, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrMalformedResponse, err)
	}

	if err := c.verify(ctx, resp.AccessToken); err != nil {
		return nil, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}

	return &resp, nil
}

func (c *Client) verify(ctx context.Context, accessToken string) error {
	if c.verifier == nil {
		return nil
	}
	return c.verifier.Verify(ctx, accessToken)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrMalformedResponse, err)
	}
	return nil
}
