package dwolla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
)

const (
	sandboxURL    = "https://api-sandbox.dwolla.com"
	productionURL = "https://api.dwolla.com"
	mediaType     = "application/vnd.dwolla.v1.hal+json"
)

type client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type apiError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Embedded struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Path    string `json:"path"`
		} `json:"errors"`
	} `json:"_embedded"`
}

func (e apiError) describe() string {
	parts := []string{strings.TrimSpace(e.Message)}
	for _, item := range e.Embedded.Errors {
		if item.Path != "" {
			parts = append(parts, fmt.Sprintf("%s %s", item.Path, item.Message))
		} else {
			parts = append(parts, item.Message)
		}
	}
	return strings.Join(parts, "; ")
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached client-credentials token, refreshing it a
// minute before expiry.
func (c *client) accessToken(ctx context.Context, op string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.ProviderFailure(providerName, op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", apperr.ProviderStatus(providerName, op, resp.StatusCode, "token", strings.TrimSpace(string(body)), "")
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", apperr.ProviderFailure(providerName, op, fmt.Errorf("decode token: %w", err))
	}
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl > 2*time.Minute {
		ttl -= time.Minute
	}
	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(ttl)
	return c.token, nil
}

type response struct {
	status   int
	location string
	body     []byte
}

// do sends a request and returns the raw response for 2xx statuses. path may
// be absolute (a HAL href) or relative to the base URL.
func (c *client) do(ctx context.Context, op, method, path string, payload any, idempotencyKey string) (*response, error) {
	token, err := c.accessToken(ctx, op)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", mediaType)
	if payload != nil {
		req.Header.Set("Content-Type", mediaType)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.ProviderFailure(providerName, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.ProviderFailure(providerName, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		message := apiErr.describe()
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, apperr.ProviderStatus(providerName, op, resp.StatusCode, apiErr.Code, message, resp.Header.Get("X-Request-Id"))
	}

	return &response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     body,
	}, nil
}

func (c *client) get(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decode(op, resp.body, out)
}

func (c *client) post(ctx context.Context, op, path string, payload, out any) error {
	resp, err := c.do(ctx, op, http.MethodPost, path, payload, "")
	if err != nil {
		return err
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	return decode(op, resp.body, out)
}

// create posts a resource and returns the id taken from the Location header.
func (c *client) create(ctx context.Context, op, path string, payload any, idempotencyKey string) (string, error) {
	resp, err := c.do(ctx, op, http.MethodPost, path, payload, idempotencyKey)
	if err != nil {
		return "", err
	}
	id := lastSegment(resp.location)
	if id == "" {
		return "", apperr.ProviderStatus(providerName, op, resp.status, "missing_location", "response had no Location header", "")
	}
	return id, nil
}

func (c *client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (c *client) href(kind, id string) string {
	return c.baseURL + "/" + kind + "/" + id
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.ProviderFailure(providerName, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func lastSegment(href string) string {
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		return href[idx+1:]
	}
	return href
}
