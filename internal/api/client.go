// Package api is the HTTP JSON client for the remote feed service. The
// backend is a black box reached through a fixed set of verbs; this package
// only guarantees correct parameter plumbing, not backend behavior.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vicinity/internal/models"
	"vicinity/internal/observability"
)

// Verb paths consumed by the client.
const (
	verbLogin         = "/api/login"
	verbRegister      = "/api/register"
	verbSquareContent = "/api/getSquareContentList"
	verbToggleLove    = "/api/toggleLove"
	verbToggleCollect = "/api/toggleCollect"
	verbToggleFollow  = "/api/toggleFollowUser"
	verbUserInfo      = "/api/getUserInfo"
)

// Envelope is the uniform response wrapper returned by every verb.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CallError is a verb call the backend rejected (success=false).
type CallError struct {
	Verb    string
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected", e.Verb)
	}
	return fmt.Sprintf("%s: %s", e.Verb, e.Message)
}

// Client calls the remote feed service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Credentials carry the session identity on authenticated verbs.
type Credentials struct {
	UserID string `json:"userId,omitempty"`
	Token  string `json:"token,omitempty"`
}

// LoginRequest is the payload for the login verb.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Lang     string `json:"lang,omitempty"`
}

// RegisterRequest is the payload for the register verb.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Lang     string `json:"lang,omitempty"`
}

// AuthResult is the identity returned by login and register.
type AuthResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
	Email  string `json:"email"`
}

// FeedQuery are the parameters of one feed page load.
type FeedQuery struct {
	Credentials
	Location string         `json:"location,omitempty"`
	Tab      models.FeedTab `json:"tab"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
}

// FeedPage is one feed load response.
type FeedPage struct {
	Posts      []models.Post     `json:"list"`
	Pagination models.Pagination `json:"pagination"`
}

// ToggleRequest is the payload shared by the three toggle verbs.
type ToggleRequest struct {
	Credentials
	TargetID     string `json:"targetId"`
	DesiredState bool   `json:"desiredState"`
}

// UserQuery identifies the profile to fetch.
type UserQuery struct {
	Credentials
	Email        string `json:"email,omitempty"`
	TargetUserID string `json:"targetUserId,omitempty"`
}

// UserProfile is the public profile aggregate of one user.
type UserProfile struct {
	User       models.Publisher `json:"user"`
	IsFollowed bool             `json:"is_followed"`
	Posts      []models.Post    `json:"posts"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password, lang string) (*AuthResult, error) {
	var out AuthResult
	if err := c.call(ctx, verbLogin, LoginRequest{Email: email, Password: password, Lang: lang}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its identity.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.call(ctx, verbRegister, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSquareContentList loads one page of the feed.
func (c *Client) GetSquareContentList(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	var out FeedPage
	if err := c.call(ctx, verbSquareContent, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleLove sets the viewer's love state on the target post.
func (c *Client) ToggleLove(ctx context.Context, req ToggleRequest) error {
	return c.call(ctx, verbToggleLove, req, nil)
}

// ToggleCollect sets the viewer's collect state on the target post.
func (c *Client) ToggleCollect(ctx context.Context, req ToggleRequest) error {
	return c.call(ctx, verbToggleCollect, req, nil)
}

// ToggleFollowUser sets the viewer's follow state on the target user.
func (c *Client) ToggleFollowUser(ctx context.Context, req ToggleRequest) error {
	return c.call(ctx, verbToggleFollow, req, nil)
}

// GetUserInfo fetches the public profile aggregate of a user.
func (c *Client) GetUserInfo(ctx context.Context, q UserQuery) (*UserProfile, error) {
	var out UserProfile
	if err := c.call(ctx, verbUserInfo, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call posts the payload to a verb and decodes the envelope. A success=false
// envelope becomes a *CallError; transport failures are returned wrapped.
func (c *Client) call(ctx context.Context, verb string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", verb, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verb, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", verb, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := observability.ExtractCorrelationID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", verb, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", verb, err)
	}
	if !env.Success {
		return &CallError{Verb: verb, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", verb, err)
		}
	}
	return nil
}
