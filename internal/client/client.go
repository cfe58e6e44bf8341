package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"parley/internal/config"
	"parley/internal/types"
)

const defaultBaseURL = "http://127.0.0.1:8400"

// Client talks to the agent server's REST and SSE surface.
type Client struct {
	baseURL   string
	tokenPath string
	token     string
	http      *http.Client
}

func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokenPath: tokenPath,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	_ = c.loadToken()
	return c, nil
}

func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokenPath: "",
		token:     token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]*types.Session, error) {
	var resp SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var session types.Session
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+strings.TrimSpace(id), nil, true, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetTrace fetches the full historical trace for a session together with
// the sequence number of the last live event it reflects.
func (c *Client) GetTrace(ctx context.Context, id string) (*TraceResponse, error) {
	path := fmt.Sprintf("/v1/sessions/%s/trace", strings.TrimSpace(id))
	var resp TraceResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CatchUp fetches the live events published after afterSeq, used to fill
// the gap between a trace snapshot and a freshly opened stream.
func (c *Client) CatchUp(ctx context.Context, id string, afterSeq int64) ([]types.AgentEvent, error) {
	path := fmt.Sprintf("/v1/sessions/%s/events?after=%d", strings.TrimSpace(id), afterSeq)
	var resp EventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) SendMessage(ctx context.Context, id string, req SendMessageRequest) (*SendMessageResponse, error) {
	path := fmt.Sprintf("/v1/sessions/%s/send", strings.TrimSpace(id))
	var resp SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) InterruptSession(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/sessions/%s/interrupt", strings.TrimSpace(id))
	return c.doJSON(ctx, http.MethodPost, path, nil, true, nil)
}

func (c *Client) ResolvePermission(ctx context.Context, id string, req ResolvePermissionRequest) error {
	path := fmt.Sprintf("/v1/sessions/%s/permission", strings.TrimSpace(id))
	return c.doJSON(ctx, http.MethodPost, path, req, true, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		if err := c.ensureToken(); err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ensureToken() error {
	if strings.TrimSpace(c.token) == "" {
		if err := c.loadToken(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.token) == "" {
		return errors.New("token not found; is the server running?")
	}
	return nil
}

func (c *Client) loadToken() error {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.token = ""
			return nil
		}
		return err
	}
	c.token = strings.TrimSpace(string(data))
	return nil
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
