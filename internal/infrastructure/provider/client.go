// Package provider is the HTTP client for the managed identity provider
// (GoTrue-style REST API). The provider is the system of record for
// credentials and token validity; this core never caches either.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-identity-sync/internal/config"
	"github.com/go-identity-sync/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type Client struct {
	baseURL    string
	apiKey     string
	serviceKey string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.ProviderBaseURL,
		apiKey:     cfg.ProviderAPIKey,
		serviceKey: cfg.ProviderServiceKey,
		httpClient: &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

// userPayload is the provider's user representation.
type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (p *userPayload) identity() *domain.CanonicalIdentity {
	return &domain.CanonicalIdentity{
		ID:            p.ID,
		Email:         p.Email,
		EmailVerified: p.EmailConfirmedAt != nil,
		Metadata:      p.UserMetadata,
	}
}

// VerifyToken introspects the bearer token with the provider and returns the
// canonical identity it asserts. Structurally malformed tokens are rejected
// locally without a round trip; everything else is the provider's call.
func (c *Client) VerifyToken(ctx context.Context, token string) (*domain.CanonicalIdentity, error) {
	if _, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return nil, fmt.Errorf("malformed bearer token: %w", domain.ErrInvalidToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token introspection: %w", domain.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var p userPayload
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode introspection response: %w", domain.ErrProviderUnavailable)
		}
		return p.identity(), nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("provider rejected token: %w", domain.ErrInvalidToken)
	default:
		return nil, fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
}

// GetUserByID fetches a user via the admin API.
func (c *Client) GetUserByID(ctx context.Context, id string) (*domain.CanonicalIdentity, error) {
	resp, err := c.adminRequest(ctx, http.MethodGet, "/auth/v1/admin/users/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var p userPayload
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode user response: %w", domain.ErrProviderUnavailable)
		}
		return p.identity(), nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("provider user %s: %w", id, domain.ErrNotFound)
	default:
		return nil, fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
}

// UpdateUserMetadata merges fields into the provider's user_metadata.
func (c *Client) UpdateUserMetadata(ctx context.Context, id string, fields map[string]any) error {
	body := map[string]any{"user_metadata": fields}
	resp, err := c.adminRequest(ctx, http.MethodPut, "/auth/v1/admin/users/"+id, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
	return nil
}

// SetEmailConfirmed marks the provider-side email as confirmed via the admin
// API.
func (c *Client) SetEmailConfirmed(ctx context.Context, id string) error {
	body := map[string]any{"email_confirm": true}
	resp, err := c.adminRequest(ctx, http.MethodPut, "/auth/v1/admin/users/"+id, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
	return nil
}

// SignInWithPassword re-authenticates a user's password. Bad credentials map
// to domain.ErrUnauthorized; transport problems to ErrProviderUnavailable.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("password sign-in: %w", domain.ErrProviderUnavailable)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("bad credentials: %w", domain.ErrUnauthorized)
	default:
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
}

func (c *Client) adminRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrProviderUnavailable)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
