package cloudapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/tools"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(Config{
		PhoneNumberID: "5550001",
		AccessToken:   "tok",
		VerifyToken:   "verify-me",
		AppSecret:     "s3cret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.SetBaseURL(srv.URL)
	return a, srv
}

func TestSendTextPayload(t *testing.T) {
	var got map[string]interface{}
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/5550001/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.XYZ"}},
		})
	})

	id, err := a.SendText(context.Background(), "5511999990000@s.whatsapp.net", "oi")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "wamid.XYZ" {
		t.Errorf("id = %q", id)
	}
	if got["to"] != "5511999990000" {
		t.Errorf("to = %v (JID suffix not stripped)", got["to"])
	}
	if got["type"] != "text" {
		t.Errorf("type = %v", got["type"])
	}
}

func TestSendTextRejectsEmpty(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	if _, err := a.SendText(context.Background(), "555", "   "); err == nil {
		t.Error("expected error for blank message")
	}
}

func TestSendListPayload(t *testing.T) {
	var got map[string]interface{}
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("{}"))
	})

	_, err := a.SendList(context.Background(), "555", &tools.ListPayload{
		Body:       "Escolha:",
		ButtonText: "Ver opções",
		Options: []tools.ListOption{
			{ID: "1", Title: "Ver CTR", Description: "Taxa de cliques"},
			{ID: "2", Title: "Comparar"},
		},
	})
	if err != nil {
		t.Fatalf("SendList: %v", err)
	}

	interactive := got["interactive"].(map[string]interface{})
	if interactive["type"] != "list" {
		t.Errorf("interactive type = %v", interactive["type"])
	}
	action := interactive["action"].(map[string]interface{})
	if action["button"] != "Ver opções" {
		t.Errorf("button = %v", action["button"])
	}
	sections := action["sections"].([]interface{})
	rows := sections[0].(map[string]interface{})["rows"].([]interface{})
	if len(rows) != 2 {
		t.Errorf("rows = %d", len(rows))
	}
}

func TestSendTypingNotSupported(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := a.SendTyping(context.Background(), "555", true); err != channels.ErrNotSupported {
		t.Errorf("err = %v, want ErrNotSupported", err)
	}
}

func TestVerifySignature(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	body := []byte(`{"object":"whatsapp_business_account"}`)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !a.VerifySignature(body, sig) {
		t.Error("valid signature rejected")
	}
	if a.VerifySignature(body, "sha256=deadbeef") {
		t.Error("invalid signature accepted")
	}
	if a.VerifySignature(body, "") {
		t.Error("missing signature accepted")
	}
}

func TestVerifySubscription(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	challenge, err := a.VerifySubscription("subscribe", "verify-me", "12345")
	if err != nil || challenge != "12345" {
		t.Errorf("challenge = %q, err = %v", challenge, err)
	}
	if _, err := a.VerifySubscription("subscribe", "wrong", "12345"); err == nil {
		t.Error("token mismatch accepted")
	}
}

func TestParseWebhookTextMessage(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"contacts": [{"profile": {"name": "Lucas"}}],
			"messages": [{
				"from": "5511999990000",
				"id": "wamid.ABC",
				"timestamp": "1756720000",
				"type": "text",
				"text": {"body": "como foi a semana?"}
			}]
		}}]}]
	}`)

	event, err := a.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event == nil {
		t.Fatal("event is nil")
	}
	if event.Kind != channels.EventMessage {
		t.Errorf("kind = %q", event.Kind)
	}
	if event.Phone != "5511999990000" || event.Text != "como foi a semana?" {
		t.Errorf("event = %+v", event)
	}
	if event.PushName != "Lucas" {
		t.Errorf("push name = %q", event.PushName)
	}
}

func TestParseWebhookInteractiveReply(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"messages": [{
				"from": "5511999990000",
				"id": "wamid.DEF",
				"type": "interactive",
				"interactive": {
					"type": "button_reply",
					"button_reply": {"id": "2", "title": "📈 Comparar"}
				}
			}]
		}}]}]
	}`)

	event, err := a.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.Text != "📈 Comparar" {
		t.Errorf("text = %q", event.Text)
	}
	if event.Interactive == nil || event.Interactive.ID != "2" {
		t.Errorf("interactive = %+v", event.Interactive)
	}
}

func TestParseWebhookStatus(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"statuses": [{"id": "wamid.GHI", "status": "read", "recipient_id": "5511999990000", "timestamp": "1756720000"}]
		}}]}]
	}`)

	event, err := a.ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.Kind != channels.EventStatus || event.Status != "read" {
		t.Errorf("event = %+v", event)
	}
}

func TestParseWebhookIgnoresOtherObjects(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	event, err := a.ParseWebhook([]byte(`{"object": "page"}`))
	if err != nil || event != nil {
		t.Errorf("event = %+v, err = %v", event, err)
	}
}
