package telegram

import (
	"testing"

	"github.com/grupovorp/adpilot/internal/channels"
)

func TestParseWebhookTextMessage(t *testing.T) {
	a := &Adapter{}
	body := []byte(`{
		"update_id": 1001,
		"message": {
			"message_id": 42,
			"date": 1756720800,
			"chat": {"id": 987654321, "type": "private"},
			"from": {"id": 11, "is_bot": false, "first_name": "Rafael"},
			"text": "como foram as campanhas?"
		}
	}`)

	event, err := a.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	if event == nil {
		t.Fatal("expected event, got nil")
	}
	if event.Kind != channels.EventMessage {
		t.Errorf("Kind = %q, want %q", event.Kind, channels.EventMessage)
	}
	if event.Phone != "987654321" {
		t.Errorf("Phone = %q, want 987654321", event.Phone)
	}
	if event.Text != "como foram as campanhas?" {
		t.Errorf("Text = %q", event.Text)
	}
	if event.PushName != "Rafael" {
		t.Errorf("PushName = %q, want Rafael", event.PushName)
	}
	if event.MessageID != "42" {
		t.Errorf("MessageID = %q, want 42", event.MessageID)
	}
}

func TestParseWebhookCallbackQuery(t *testing.T) {
	a := &Adapter{}
	body := []byte(`{
		"update_id": 1002,
		"callback_query": {
			"id": "cb-77",
			"from": {"id": 11, "is_bot": false, "first_name": "Rafael"},
			"data": "2",
			"message": {
				"message_id": 43,
				"date": 1756720900,
				"chat": {"id": 987654321, "type": "private"}
			}
		}
	}`)

	event, err := a.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	if event == nil {
		t.Fatal("expected event, got nil")
	}
	if event.Interactive == nil {
		t.Fatal("expected interactive reply")
	}
	if event.Interactive.ID != "2" {
		t.Errorf("Interactive.ID = %q, want 2", event.Interactive.ID)
	}
	if event.Phone != "987654321" {
		t.Errorf("Phone = %q, want 987654321", event.Phone)
	}
	if event.Text != "2" {
		t.Errorf("Text = %q, want 2", event.Text)
	}
}

func TestParseWebhookIgnoresOtherUpdates(t *testing.T) {
	a := &Adapter{}
	event, err := a.ParseWebhook([]byte(`{"update_id": 1003, "edited_message": {"message_id": 5, "date": 1, "chat": {"id": 9, "type": "private"}}}`))
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	if event != nil {
		t.Fatalf("expected nil event for edited message, got %+v", event)
	}
}

func TestChatIDValidation(t *testing.T) {
	if _, err := chatID("not-a-number"); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
	id, err := chatID("123456")
	if err != nil {
		t.Fatalf("chatID() error = %v", err)
	}
	if id.ID != 123456 {
		t.Errorf("ID = %d, want 123456", id.ID)
	}
}
