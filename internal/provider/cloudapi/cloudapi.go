// Package cloudapi sends through the hosted WhatsApp Business Cloud API. It is
// the second provider generation: no phone session to babysit, but media must
// be uploaded before it can be referenced in a message.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"regnotify/pkg/sentinel"
)

// Client implements provider.Provider against the Graph API.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	countryCode   string
	http          *http.Client
	logger        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger.With("component", "cloudapi") }
}

func New(baseURL, phoneNumberID, accessToken, countryCode string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		countryCode:   countryCode,
		http:          &http.Client{Timeout: 30 * time.Second},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "cloudapi" }

// Address formats a bare mobile into an international number without the plus.
func (c *Client) Address(mobile string) string {
	return c.countryCode + mobile
}

// Connected reports whether credentials are present. The hosted API has no
// session to drop; a bad token surfaces as a permanent send error instead.
func (c *Client) Connected(_ context.Context) bool {
	return c.phoneNumberID != "" && c.accessToken != ""
}

func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	})
}

func (c *Client) SendMedia(ctx context.Context, to string, media []byte, filename, caption string) (string, error) {
	mediaID, err := c.uploadMedia(ctx, media, filename)
	if err != nil {
		return "", err
	}
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]any{"id": mediaID, "caption": caption},
	})
}

func (c *Client) SendTemplate(ctx context.Context, to, name string, params []string) (string, error) {
	parameters := make([]map[string]any, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, map[string]any{"type": "text", "text": p})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":     name,
			"language": map[string]any{"code": "en"},
			"components": []map[string]any{
				{"type": "body", "parameters": parameters},
			},
		},
	}
	return c.sendMessage(ctx, payload)
}

// Logout is a no-op: the hosted API has no session.
func (c *Client) Logout(_ context.Context) error { return nil }

func (c *Client) sendMessage(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode message response: %w", err)
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

func (c *Client) uploadMedia(ctx context.Context, media []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("build media upload: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build media upload: %w", err)
	}
	if _, err := part.Write(media); err != nil {
		return "", fmt.Errorf("build media upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build media upload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	return result.ID, nil
}

// classifyStatus splits API failures into retryable and permanent. Rate limits
// and server errors are retryable; everything else in the 4xx range will fail
// the same way on every retry.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("graph api returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph api returned %d: %s: %w",
			resp.StatusCode, bytes.TrimSpace(detail), sentinel.ErrPermanent)
	}
}
