// Package evolution implements the Evolution API adapter, used with
// self-hosted WhatsApp instances.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/tools"
)

// Config holds the Evolution API connection settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Instance string
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" || cfg.Instance == "" {
		return nil, fmt.Errorf("evolution: base URL and instance are required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "whatsapp-evolution" }

func (a *Adapter) SendText(ctx context.Context, phone, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("evolution: message body is empty")
	}

	payload := map[string]interface{}{
		"number": channels.CleanPhone(phone),
		"text":   text,
	}
	return a.post(ctx, "/message/sendText/"+a.cfg.Instance, payload)
}

func (a *Adapter) SendButtons(ctx context.Context, phone string, p *tools.ButtonsPayload) (string, error) {
	buttons := make([]map[string]string, len(p.Buttons))
	for i, btn := range p.Buttons {
		buttons[i] = map[string]string{
			"type":        "reply",
			"displayText": btn.Title,
			"id":          btn.ID,
		}
	}

	payload := map[string]interface{}{
		"number":      channels.CleanPhone(phone),
		"title":       "",
		"description": p.Body,
		"footer":      p.Footer,
		"buttons":     buttons,
	}
	return a.post(ctx, "/message/sendButtons/"+a.cfg.Instance, payload)
}

func (a *Adapter) SendList(ctx context.Context, phone string, p *tools.ListPayload) (string, error) {
	rows := make([]map[string]string, len(p.Options))
	for i, opt := range p.Options {
		rows[i] = map[string]string{
			"rowId":       opt.ID,
			"title":       opt.Title,
			"description": opt.Description,
		}
	}

	payload := map[string]interface{}{
		"number":      channels.CleanPhone(phone),
		"title":       "Opções",
		"description": p.Body,
		"buttonText":  p.ButtonText,
		"sections": []map[string]interface{}{
			{"title": "Opções", "rows": rows},
		},
	}
	return a.post(ctx, "/message/sendList/"+a.cfg.Instance, payload)
}

func (a *Adapter) MarkRead(ctx context.Context, phone, messageID string) error {
	payload := map[string]interface{}{
		"readMessages": []map[string]interface{}{
			{
				"remoteJid": toJID(phone),
				"fromMe":    false,
				"id":        messageID,
			},
		},
	}
	_, err := a.post(ctx, "/chat/markMessageAsRead/"+a.cfg.Instance, payload)
	return err
}

func (a *Adapter) SendTyping(ctx context.Context, phone string, typing bool) error {
	presence := "composing"
	if !typing {
		presence = "paused"
	}
	payload := map[string]interface{}{
		"number":   channels.CleanPhone(phone),
		"presence": presence,
		"delay":    1200,
	}
	_, err := a.post(ctx, "/chat/sendPresence/"+a.cfg.Instance, payload)
	return err
}

// Evolution webhook wire format (messages.upsert).
type webhookEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
		} `json:"message"`
		MessageTimestamp int64  `json:"messageTimestamp"`
		Status           string `json:"status"`
	} `json:"data"`
}

func (a *Adapter) ParseWebhook(body []byte) (*channels.InboundEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("evolution: decode webhook: %w", err)
	}

	switch envelope.Event {
	case "messages.upsert":
		data := envelope.Data
		text := data.Message.Conversation
		if text == "" {
			text = data.Message.ExtendedTextMessage.Text
		}
		return &channels.InboundEvent{
			Kind:      channels.EventMessage,
			Phone:     channels.CleanPhone(data.Key.RemoteJID),
			MessageID: data.Key.ID,
			Text:      text,
			PushName:  data.PushName,
			FromMe:    data.Key.FromMe,
			Timestamp: time.Unix(data.MessageTimestamp, 0),
		}, nil
	case "messages.update":
		data := envelope.Data
		return &channels.InboundEvent{
			Kind:      channels.EventStatus,
			Phone:     channels.CleanPhone(data.Key.RemoteJID),
			MessageID: data.Key.ID,
			Status:    strings.ToLower(data.Status),
		}, nil
	case "presence.update":
		return parsePresence(body)
	}
	return nil, nil
}

// presence.update carries a different data shape than message events: a map
// of JIDs to their last known presence.
type presenceEnvelope struct {
	Data struct {
		ID        string `json:"id"`
		Presences map[string]struct {
			LastKnownPresence string `json:"lastKnownPresence"`
		} `json:"presences"`
	} `json:"data"`
}

func parsePresence(body []byte) (*channels.InboundEvent, error) {
	var envelope presenceEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("evolution: decode presence webhook: %w", err)
	}
	for jid, p := range envelope.Data.Presences {
		if p.LastKnownPresence == "" {
			continue
		}
		return &channels.InboundEvent{
			Kind:     channels.EventPresence,
			Phone:    channels.CleanPhone(jid),
			Presence: strings.ToLower(p.LastKnownPresence),
		}, nil
	}
	return nil, nil
}

func toJID(phone string) string {
	if strings.Contains(phone, "@") {
		return phone
	}
	return phone + "@s.whatsapp.net"
}

func (a *Adapter) post(ctx context.Context, path string, payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("evolution: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("evolution: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("evolution: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var result struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil
	}
	return result.Key.ID, nil
}
