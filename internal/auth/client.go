package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Platform API paths.
const (
	PathLogin    = "/api/user/login"
	PathLogout   = "/api/user/logout"
	PathRegister = "/api/user/register"
	PathInfo     = "/api/user/info"
)

// envelope is the platform's response wrapper. code 0 is success.
type envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

// Client talks to the platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a platform client. A nil httpClient gets a 10 second
// timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// do sends one request and unwraps the envelope. Only data of a successful
// envelope is returned.
func (c *Client) do(ctx context.Context, op, method, path, bearer string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= 500:
		return nil, &NetworkError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		msg := ""
		if decodeErr == nil {
			msg = env.text()
		}
		return nil, &Error{Op: op, Code: resp.StatusCode, Message: msg}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &NetworkError{Op: op, Status: resp.StatusCode}
	}

	if decodeErr != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("parse response: %w", decodeErr)}
	}
	if env.Code != 0 {
		return nil, &Error{Op: op, Code: env.Code, Message: env.text()}
	}
	return env.Data, nil
}
