// Package cloudapi implements the WhatsApp Business Cloud API adapter.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/tools"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v21.0"

// Config holds the Cloud API credentials.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string // webhook subscription handshake
	AppSecret     string // HMAC signature validation
}

// Adapter talks to the WhatsApp Business Cloud API. Sends are rate limited
// to stay under Meta's per-number throughput caps.
type Adapter struct {
	cfg     Config
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Adapter, error) {
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("cloudapi: phone_number_id and access token are required")
	}
	return &Adapter{
		cfg:     cfg,
		baseURL: defaultGraphBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}, nil
}

// SetBaseURL overrides the Graph endpoint, used by tests.
func (a *Adapter) SetBaseURL(base string) {
	a.baseURL = strings.TrimRight(base, "/")
}

func (a *Adapter) Name() string { return "whatsapp-cloud" }

func (a *Adapter) SendText(ctx context.Context, phone, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("cloudapi: message body is empty")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                channels.CleanPhone(phone),
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return a.postMessage(ctx, payload)
}

func (a *Adapter) SendButtons(ctx context.Context, phone string, p *tools.ButtonsPayload) (string, error) {
	buttons := make([]map[string]interface{}, len(p.Buttons))
	for i, btn := range p.Buttons {
		buttons[i] = map[string]interface{}{
			"type": "reply",
			"reply": map[string]string{
				"id":    btn.ID,
				"title": btn.Title,
			},
		}
	}

	interactive := map[string]interface{}{
		"type":   "button",
		"body":   map[string]string{"text": p.Body},
		"action": map[string]interface{}{"buttons": buttons},
	}
	if p.Footer != "" {
		interactive["footer"] = map[string]string{"text": p.Footer}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                channels.CleanPhone(phone),
		"type":              "interactive",
		"interactive":       interactive,
	}
	return a.postMessage(ctx, payload)
}

func (a *Adapter) SendList(ctx context.Context, phone string, p *tools.ListPayload) (string, error) {
	rows := make([]map[string]string, len(p.Options))
	for i, opt := range p.Options {
		row := map[string]string{"id": opt.ID, "title": opt.Title}
		if opt.Description != "" {
			row["description"] = opt.Description
		}
		rows[i] = row
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                channels.CleanPhone(phone),
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type": "list",
			"body": map[string]string{"text": p.Body},
			"action": map[string]interface{}{
				"button": p.ButtonText,
				"sections": []map[string]interface{}{
					{"title": "Opções", "rows": rows},
				},
			},
		},
	}
	return a.postMessage(ctx, payload)
}

func (a *Adapter) MarkRead(ctx context.Context, phone, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	_, err := a.postMessage(ctx, payload)
	return err
}

// SendTyping is not supported by the Cloud API.
func (a *Adapter) SendTyping(ctx context.Context, phone string, typing bool) error {
	return channels.ErrNotSupported
}

func (a *Adapter) postMessage(ctx context.Context, payload map[string]interface{}) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cloudapi: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", a.baseURL, a.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudapi: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("cloudapi: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil
	}
	if len(result.Messages) > 0 {
		return result.Messages[0].ID, nil
	}
	return "", nil
}
