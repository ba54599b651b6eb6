package cli

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
	"time"
)

// ErrAPI carries the server's error message for a non-2xx response.
type ErrAPI struct {
	Status  int
	Message string
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// UserView mirrors the API's user response body.
type UserView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// APIClient is a thin JSON client for the accountkeeper HTTP API. It keeps
// the bearer token of the current session in memory only.
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// LoggedIn reports whether a session token is held.
func (c *APIClient) LoggedIn() bool { return c.token != "" }

func (c *APIClient) Register(ctx context.Context, username, email, password string) (*UserView, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var user UserView
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.send(req, &resp); err != nil {
		return err
	}

	c.token = resp.AccessToken
	return nil
}

func (c *APIClient) Me(ctx context.Context) (*UserView, error) {
	var user UserView
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) List(ctx context.Context, offset, limit int) ([]UserView, error) {
	path := fmt.Sprintf("/api/v1/users?offset=%d&limit=%d", offset, limit)
	var list []UserView
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *APIClient) SetActive(ctx context.Context, id int64, active bool) (*UserView, error) {
	body := map[string]bool{"is_active": active}
	var user UserView
	path := fmt.Sprintf("/api/v1/users/%d", id)
	if err := c.doJSON(ctx, http.MethodPut, path, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) Delete(ctx context.Context, id int64) (*UserView, error) {
	var user UserView
	path := fmt.Sprintf("/api/v1/users/%d", id)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *APIClient) send(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &ErrAPI{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New("unexpected response from server")
	}
	return nil
}
