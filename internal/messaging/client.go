// Package messaging provides a client for the WhatsApp messaging gateway API.
package messaging

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/apierr"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/media"
)

const (
	sendPath      = "/send"
	sendMediaPath = "/send-media"
)

// Config holds the gateway connection settings.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Insecure bool
}

// TextRequest is the body of a text send.
type TextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

// MediaRequest is the body of a media send.
type MediaRequest struct {
	Phone   string       `json:"phone"`
	Media   media.Object `json:"media"`
	Caption string       `json:"caption,omitempty"`
}

// Response is the decoded JSON body returned by the gateway.
type Response map[string]any

// Client is a wrapper for the messaging gateway API.
type Client struct {
	baseURL string
	client  *resty.Client
	logf    logger.Logf
}

// NewClient creates a new gateway client. The API token, when set, is sent as
// X-API-Token on every request.
func NewClient(cfg Config, logf logger.Logf) *Client {
	logf = logger.OrDiscard(logf)

	client := resty.New()
	client.SetLogger(logf)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIToken != "" {
		client.SetHeader("X-API-Token", cfg.APIToken)
	}
	if cfg.Insecure {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) // #nosec G402
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logf:    logf,
	}
}

// SendText sends a text message to phone. An empty subject is omitted.
func (c *Client) SendText(ctx context.Context, phone, message, subject string) (Response, error) {
	return c.post(ctx, sendPath, TextRequest{
		Phone:   phone,
		Message: message,
		Subject: subject,
	})
}

// SendMedia sends a media object to phone. An empty caption is omitted.
func (c *Client) SendMedia(ctx context.Context, phone string, obj media.Object, caption string) (Response, error) {
	return c.post(ctx, sendMediaPath, MediaRequest{
		Phone:   phone,
		Media:   obj,
		Caption: caption,
	})
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (Response, error) {
	body, err := marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", endpoint, err)
	}

	url := c.baseURL + endpoint
	c.logf("POST %s (payload %d bytes)", url, len(body))

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}

	if resp.StatusCode() >= 400 {
		return nil, apierr.New(endpoint, resp.StatusCode(), resp.String())
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return out, nil
}

// marshal encodes v as JSON, leaving <, > and & unescaped so alert text goes
// out verbatim.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
