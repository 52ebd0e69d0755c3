package cloudapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/channels"
)

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// webhook body. An empty app secret disables verification.
func (a *Adapter) VerifySignature(body []byte, signatureHeader string) bool {
	if a.cfg.AppSecret == "" {
		return true
	}
	expected, ok := strings.CutPrefix(signatureHeader, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.cfg.AppSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(expected))
}

// VerifySubscription handles the GET handshake Meta performs when the
// webhook URL is registered. Returns the challenge to echo, or an error for
// a token mismatch.
func (a *Adapter) VerifySubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", fmt.Errorf("cloudapi: unexpected hub.mode %q", mode)
	}
	if token != a.cfg.VerifyToken {
		return "", fmt.Errorf("cloudapi: verify token mismatch")
	}
	return challenge, nil
}

// Webhook wire format, documented at
// https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/components
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []webhookMessage `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					RecipientID string `json:"recipient_id"`
					Timestamp   string `json:"timestamp"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type      string `json:"type"`
		ListReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

func (a *Adapter) ParseWebhook(body []byte) (*channels.InboundEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("cloudapi: decode webhook: %w", err)
	}

	if envelope.Object != "whatsapp_business_account" {
		return nil, nil
	}
	if len(envelope.Entry) == 0 || len(envelope.Entry[0].Changes) == 0 {
		return nil, nil
	}
	value := envelope.Entry[0].Changes[0].Value

	if len(value.Messages) > 0 {
		msg := value.Messages[0]

		event := &channels.InboundEvent{
			Kind:      channels.EventMessage,
			Phone:     msg.From,
			MessageID: msg.ID,
			Timestamp: parseUnixTimestamp(msg.Timestamp),
		}
		if len(value.Contacts) > 0 {
			event.PushName = value.Contacts[0].Profile.Name
		}

		switch msg.Type {
		case "text":
			event.Text = msg.Text.Body
		case "interactive":
			switch msg.Interactive.Type {
			case "list_reply":
				event.Text = msg.Interactive.ListReply.Title
				event.Interactive = &channels.InteractiveReply{
					Type:  "list_reply",
					ID:    msg.Interactive.ListReply.ID,
					Title: msg.Interactive.ListReply.Title,
				}
			case "button_reply":
				event.Text = msg.Interactive.ButtonReply.Title
				event.Interactive = &channels.InteractiveReply{
					Type:  "button_reply",
					ID:    msg.Interactive.ButtonReply.ID,
					Title: msg.Interactive.ButtonReply.Title,
				}
			}
		}
		return event, nil
	}

	if len(value.Statuses) > 0 {
		st := value.Statuses[0]
		return &channels.InboundEvent{
			Kind:      channels.EventStatus,
			Phone:     st.RecipientID,
			MessageID: st.ID,
			Status:    st.Status,
			Timestamp: parseUnixTimestamp(st.Timestamp),
		}, nil
	}

	return nil, nil
}

func parseUnixTimestamp(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
