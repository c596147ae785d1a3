// Package client is a signed HTTP client for the lounge API.
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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/internal/domain/signature"
)

const defaultTimeout = 10 * time.Second

// Request headers, as read by the server.
const (
	headerUpdateSignature = "X-HMAC-Signature"
	headerHubSignature    = "X-Hub-Signature-256"
	headerDelivery        = "X-GitHub-Delivery"
	headerEvent           = "X-GitHub-Event"
)

// ErrNoSecret is returned when a signed call is made without its secret.
var ErrNoSecret = errors.New("no signing secret configured")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("lounge: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("lounge: %d %s: %s", e.Status, e.Code, e.Message)
}

// Response is the body of a successful submission.
type Response struct {
	Message string `json:"message"`
	BatchID string `json:"batch_id,omitempty"`
}

// Client calls the lounge API.
type Client struct {
	baseURL string
	http    *http.Client
	updates *signature.Verifier
	hooks   *signature.Verifier
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		if h != nil {
			c.http = h
		}
		return nil
	}
}

// WithUpdateSecret enables SubmitUpdate.
func WithUpdateSecret(secret string) Option {
	return func(c *Client) error {
		v, err := signature.NewVerifier([]byte(secret), signature.StringForm)
		if err != nil {
			return fmt.Errorf("update secret: %w", err)
		}
		c.updates = v
		return nil
	}
}

// WithPasswdSecret enables SendWebhook.
func WithPasswdSecret(secret string) Option {
	return func(c *Client) error {
		v, err := signature.NewVerifier([]byte(secret), signature.RawBody)
		if err != nil {
			return fmt.Errorf("passwd secret: %w", err)
		}
		c.hooks = v
		return nil
	}
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SubmitUpdate posts items as one batch. The body is serialized once and the
// signature is computed over the string form of exactly those bytes.
func (c *Client) SubmitUpdate(ctx context.Context, items []model.UpdateItem) (Response, error) {
	if c.updates == nil {
		return Response{}, ErrNoSecret
	}
	pairs := make([][2]any, len(items))
	for i, it := range items {
		pairs[i] = [2]any{it.Name, it.MMR}
	}
	body, err := json.Marshal(pairs)
	if err != nil {
		return Response{}, fmt.Errorf("encode batch: %w", err)
	}
	sig, err := c.updates.SignJSON(body)
	if err != nil {
		return Response{}, fmt.Errorf("sign batch: %w", err)
	}

	var out Response
	err = c.do(ctx, http.MethodPost, "/api/update", body, map[string]string{headerUpdateSignature: sig}, &out)
	return out, err
}

// SendWebhook posts body to the passwd hook with a fresh delivery id and
// returns that id.
func (c *Client) SendWebhook(ctx context.Context, event string, body []byte) (string, error) {
	if c.hooks == nil {
		return "", ErrNoSecret
	}
	delivery := uuid.NewString()
	headers := map[string]string{
		headerHubSignature: c.hooks.Sign(body),
		headerDelivery:     delivery,
		headerEvent:        event,
	}
	var out Response
	if err := c.do(ctx, http.MethodPost, "/api/passwd", body, headers, &out); err != nil {
		return delivery, err
	}
	return delivery, nil
}

// Leaderboard returns every player.
func (c *Client) Leaderboard(ctx context.Context) ([]model.Player, error) {
	var players []model.Player
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// Player returns one player.
func (c *Client) Player(ctx context.Context, name string) (model.Player, error) {
	var p model.Player
	if err := c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(name), nil, nil, &p); err != nil {
		return model.Player{}, err
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Message, apiErr.Code = eb.Error, eb.Code
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
