// Package client provides a Go client for a remote whats-send gateway.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	// Start a session and poll for its pairing code.
//	if _, err := c.StartSession(ctx, "bot1", client.StartOptions{}); err != nil { ... }
//	qr, err := c.QR(ctx, "bot1")
//
//	// Send a message through the session.
//	_, err = c.Send(ctx, "bot1", "5599999999999", "hello", client.SendOptions{})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/gateway"
	"github.com/ortizmas/whats-send/registry"
)

// Client talks to a whats-send gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dispatch is the gateway's answer to a fire-and-forget submission.
type Dispatch struct {
	Message   string             `json:"message"`
	Placement *gateway.Placement `json:"placement"`
}

// Workers is the live pool snapshot.
type Workers struct {
	Replicas int                `json:"replicas"`
	Workers  []*registry.Record `json:"workers"`
}

// StartOptions modify a StartSession call.
type StartOptions struct {
	// Hostname pins the session to a specific worker. A dead target fails
	// with ErrWorkerUnavailable.
	Hostname string
}

// SendOptions modify a Send call.
type SendOptions struct {
	// Hostname pins the message to a specific worker.
	Hostname string
	// Random picks a uniform random live worker instead of hash placement.
	Random bool
}

// StartSession submits a startSession job. Completion is asynchronous;
// poll QR and Status for progress.
func (c *Client) StartSession(ctx context.Context, session string, opts StartOptions) (*Dispatch, error) {
	body := map[string]string{"session": session}
	if opts.Hostname != "" {
		body["hostname"] = opts.Hostname
	}

	var out Dispatch
	if err := c.post(ctx, "/start", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send submits a sendMessage job.
func (c *Client) Send(ctx context.Context, session, number, message string, opts SendOptions) (*Dispatch, error) {
	body := map[string]any{
		"session": session,
		"number":  number,
		"message": message,
	}
	if opts.Hostname != "" {
		body["hostname"] = opts.Hostname
	}
	if opts.Random {
		body["random"] = true
	}

	var out Dispatch
	if err := c.post(ctx, "/send", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Workers returns the current live worker pool.
func (c *Client) Workers(ctx context.Context) (*Workers, error) {
	var out Workers
	if err := c.get(ctx, "/workers", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QR returns the session's last pairing code as a base64 data URL, or ""
// when none is currently cached.
func (c *Client) QR(ctx context.Context, session string) (string, error) {
	var out struct {
		Base64 string `json:"base64"`
	}
	err := c.get(ctx, "/qr/"+url.PathEscape(session)+"?base64=true", &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return out.Base64, nil
}

// Status returns the session's last status outcome, or nil when none is
// currently cached.
func (c *Client) Status(ctx context.Context, session string) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/status/"+url.PathEscape(session), &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatssend/client: gateway returned %d: %s", e.Status, e.Message)
}

// Is maps a 409 back to the sentinel the gateway raised it from, so callers
// can errors.Is(err, whatssend.ErrWorkerUnavailable) across the wire.
func (e *APIError) Is(target error) bool {
	return target == whatssend.ErrWorkerUnavailable && e.Status == http.StatusConflict
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("whatssend/client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatssend/client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("whatssend/client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("whatssend/client: decode response: %w", err)
		}
	}
	return nil
}
