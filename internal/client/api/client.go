// Package api is the HTTP client for the auth endpoints. Failures are
// returned as errors carrying the server's user-facing message; nothing
// here panics past the boundary.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shoplite/apiserver/types"
)

// Client talks to the apiserver's JSON REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthResult is the server's response to login and register.
type AuthResult struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// APIError carries the HTTP status and the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Login exchanges credentials for a user and token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and returns the user and token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me fetches the fresh profile for the bearer token.
func (c *Client) Me(ctx context.Context, token string) (types.User, error) {
	var result struct {
		User types.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &result); err != nil {
		return types.User{}, err
	}
	return result.User, nil
}

// UpdateName changes the profile display name.
func (c *Client) UpdateName(ctx context.Context, token, name string) (types.User, error) {
	body := map[string]string{"name": name}
	var result struct {
		User types.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/auth/me", token, body, &result); err != nil {
		return types.User{}, err
	}
	return result.User, nil
}

// UploadAvatar replaces the profile avatar.
func (c *Client) UploadAvatar(ctx context.Context, token, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/auth/me/avatar", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}
