// Package gateway is the HTTP client for the intake backend's /chat and
// /book endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "http://localhost:8000"

// ErrTransport wraps failures to reach the backend at all, as opposed to a
// StatusError reply.
var ErrTransport = errors.New("backend unreachable")

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError is returned when the backend answers with an unexpected status.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Chat sends the user's text together with the prior transcript.
func (c *Client) Chat(ctx context.Context, message string, history []Message) (*ChatResponse, error) {
	if history == nil {
		history = []Message{}
	}
	var out ChatResponse
	code, body, err := c.post(ctx, "/chat", chatRequest{Message: message, History: history})
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &StatusError{Path: "/chat", Code: code, Body: truncate(body)}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	return &out, nil
}

// Book asks the backend to reserve a slot. A response with ok=false is a
// business rejection and is returned without error, including the 400 and
// 409 replies the backend uses for invalid or taken slots.
func (c *Client) Book(ctx context.Context, req BookRequest) (*BookResponse, error) {
	code, body, err := c.post(ctx, "/book", req)
	if err != nil {
		return nil, err
	}

	var out BookResponse
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case code == http.StatusOK && decodeErr == nil:
		return &out, nil
	case code >= 400 && code < 500 && decodeErr == nil && !out.OK:
		return &out, nil
	case code != http.StatusOK:
		return nil, &StatusError{Path: "/book", Code: code, Body: truncate(body)}
	default:
		return nil, fmt.Errorf("unmarshal book response: %w", decodeErr)
	}
}

// Health probes the backend's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: /health: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Path: "/health", Code: resp.StatusCode, Body: truncate(body)}
	}

	var out HealthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal health response: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func truncate(body []byte) string {
	const maxBody = 512
	if len(body) > maxBody {
		return string(body[:maxBody]) + "..."
	}
	return string(body)
}
