package helcim

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paycore/internal/apperr"
)

const (
	defaultBaseURL = "https://api.helcim.com/v2"
	// Helcim rejects idempotency keys longer than 25 characters.
	idempotencyKeyLen = 25
)

type client struct {
	baseURL      string
	apiToken     string
	partnerToken string
	http         *http.Client
}

// idempotencyKey derives a key from seed, hashing seeds that do not fit.
// An empty seed gets a random key.
func idempotencyKey(seed string) string {
	if seed == "" {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:idempotencyKeyLen]
	}
	if len(seed) <= idempotencyKeyLen {
		return seed
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:idempotencyKeyLen]
}

// errorMessage flattens the errors field, which Helcim returns as a string,
// an object keyed by field or an array.
func errorMessage(body []byte) string {
	var res struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &res); err != nil || len(res.Errors) == 0 {
		return ""
	}

	var text string
	if json.Unmarshal(res.Errors, &text) == nil {
		return text
	}
	var list []any
	if json.Unmarshal(res.Errors, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "; ")
	}
	var fields map[string]any
	if json.Unmarshal(res.Errors, &fields) == nil {
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		return strings.Join(parts, "; ")
	}
	return string(res.Errors)
}

func (c *client) do(ctx context.Context, op, method, path string, payload, out any, idemKey string) error {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimPrefix(path, "/"), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-token", c.apiToken)
	if c.partnerToken != "" {
		req.Header.Set("partner-token", c.partnerToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("idempotency-key", idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.ProviderFailure(providerName, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.ProviderFailure(providerName, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := errorMessage(body)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return apperr.ProviderStatus(providerName, op, resp.StatusCode, "", message, "")
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.ProviderFailure(providerName, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
