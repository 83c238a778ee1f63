// Package discord delivers notification payloads to Discord channels via
// webhooks. The gateway/slash-command surface is a separate collaborator
// behind interfaces.ChatClient; this client covers delivery only.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

const DefaultTimeout = 30 * time.Second

// Embed colors, matching the bot's visual identity.
const (
	colorDefault = 0x0000FF // blue
	colorTesting = 0xFF69B4 // hot pink, non-production environments
	colorChanges = 0x2ECC71 // green, stock-change embeds
)

// Client posts notification payloads to per-channel webhook URLs.
type Client struct {
	webhooks   map[string]string // logical channel ID -> webhook URL
	httpClient *http.Client
	logger     *common.Logger
	testing    bool
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTestingColors switches embeds to the testing palette.
func WithTestingColors(testing bool) ClientOption {
	return func(c *Client) {
		c.testing = testing
	}
}

// NewClient creates a webhook delivery client. webhooks maps logical channel
// IDs (e.g. "leaderboard", "stocks") to webhook URLs.
func NewClient(webhooks map[string]string, opts ...ClientOption) *Client {
	c := &Client{
		webhooks: webhooks,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// embed mirrors the Discord embed wire format.
type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type webhookMessage struct {
	Embeds []embed `json:"embeds"`
}

func (c *Client) embedColor(reason models.Reason) int {
	if c.testing {
		return colorTesting
	}
	if reason == "" {
		return colorChanges
	}
	return colorDefault
}

// SendNotification delivers one payload to the named channel. When the
// payload carries a chart, it is attached as a PNG and referenced from the
// embed; otherwise a plain JSON post is made.
func (c *Client) SendNotification(ctx context.Context, channelID string, payload *models.Notification) error {
	webhookURL, ok := c.webhooks[channelID]
	if !ok || webhookURL == "" {
		return fmt.Errorf("no webhook configured for channel %q", channelID)
	}

	e := embed{
		Title:       payload.Title,
		Description: payload.Description,
		Color:       c.embedColor(payload.Reason),
	}
	if !payload.Timestamp.IsZero() {
		e.Timestamp = payload.Timestamp.UTC().Format(time.RFC3339)
	}
	if payload.Footer != "" {
		e.Footer = &embedFooter{Text: payload.Footer}
	}
	for _, f := range payload.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	var req *http.Request
	var err error
	if len(payload.Chart) > 0 {
		chartName := payload.ChartName
		if chartName == "" {
			chartName = "chart.png"
		}
		e.Image = &embedImage{URL: "attachment://" + chartName}
		req, err = c.multipartRequest(ctx, webhookURL, webhookMessage{Embeds: []embed{e}}, chartName, payload.Chart)
	} else {
		req, err = c.jsonRequest(ctx, webhookURL, webhookMessage{Embeds: []embed{e}})
	}
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook delivery failed: status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug().Str("channel", channelID).Str("title", payload.Title).Msg("Notification delivered")
	return nil
}

func (c *Client) jsonRequest(ctx context.Context, webhookURL string, msg webhookMessage) (*http.Request, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) multipartRequest(ctx context.Context, webhookURL string, msg webhookMessage, filename string, image []byte) (*http.Request, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormField("payload_json")
	if err != nil {
		return nil, fmt.Errorf("failed to create payload field: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to write payload field: %w", err)
	}

	filePart, err := writer.CreateFormFile("files[0]", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file field: %w", err)
	}
	if _, err := filePart.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write file field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
