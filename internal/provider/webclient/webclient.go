// Package webclient talks to the self-hosted web-client bridge over HTTP. The
// bridge keeps the phone session alive and exposes a small JSON API for
// sending; this package is a thin client around it.
package webclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"regnotify/internal/provider"
	"regnotify/pkg/sentinel"
)

// Client implements provider.Provider against the bridge.
type Client struct {
	baseURL     string
	countryCode string
	http        *http.Client
	logger      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(w *Client) { w.http = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Client) { w.logger = logger.With("component", "webclient") }
}

func New(baseURL, countryCode string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		countryCode: countryCode,
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "webclient" }

// Address formats a bare mobile into the bridge's chat id.
func (c *Client) Address(mobile string) string {
	return c.countryCode + mobile + "@c.us"
}

// Status reads the bridge's connection state. While the phone session is
// pairing the bridge also reports the QR code to scan.
func (c *Client) Status(ctx context.Context) (provider.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return provider.Status{}, fmt.Errorf("build status request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return provider.Status{}, fmt.Errorf("bridge /status: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	var status struct {
		Connected bool   `json:"connected"`
		QR        string `json:"qr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return provider.Status{}, fmt.Errorf("decode bridge status: %w", err)
	}
	return provider.Status{Connected: status.Connected, QR: status.QR}, nil
}

func (c *Client) Connected(ctx context.Context) bool {
	status, err := c.Status(ctx)
	return err == nil && status.Connected
}

func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	return c.post(ctx, "/send-message", map[string]any{
		"chatId":  to,
		"message": text,
	})
}

func (c *Client) SendMedia(ctx context.Context, to string, media []byte, filename, caption string) (string, error) {
	return c.post(ctx, "/send-media", map[string]any{
		"chatId":   to,
		"filename": filename,
		"caption":  caption,
		"media":    base64.StdEncoding.EncodeToString(media),
	})
}

func (c *Client) SendTemplate(_ context.Context, _, name string, _ []string) (string, error) {
	return "", fmt.Errorf("template %q: bridge does not support template messages: %w",
		name, sentinel.ErrPermanent)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.post(ctx, "/logout", map[string]any{})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode bridge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge %s: %w", path, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("bridge %s returned %d: %w", path, resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bridge %s returned %d: %s: %w",
			path, resp.StatusCode, bytes.TrimSpace(detail), sentinel.ErrPermanent)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Some bridge builds return an empty body on success.
		return "", nil
	}
	return result.ID, nil
}
