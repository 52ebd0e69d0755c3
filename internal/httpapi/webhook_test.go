package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grupovorp/adpilot/internal/agent"
	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/dispatch"
	"github.com/grupovorp/adpilot/internal/providers"
	"github.com/grupovorp/adpilot/internal/store"
	"github.com/grupovorp/adpilot/internal/tools"
)

// stubAdapter parses a minimal JSON event format and records sends.
type stubAdapter struct {
	mu          sync.Mutex
	sent        []string
	rejectSig   bool
	verifyToken string
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) SendText(ctx context.Context, phone, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return "msg-1", nil
}

func (a *stubAdapter) SendButtons(ctx context.Context, phone string, p *tools.ButtonsPayload) (string, error) {
	return "", channels.ErrNotSupported
}

func (a *stubAdapter) SendList(ctx context.Context, phone string, p *tools.ListPayload) (string, error) {
	return "", channels.ErrNotSupported
}

func (a *stubAdapter) MarkRead(ctx context.Context, phone, messageID string) error { return nil }

func (a *stubAdapter) SendTyping(ctx context.Context, phone string, typing bool) error { return nil }

func (a *stubAdapter) ParseWebhook(body []byte) (*channels.InboundEvent, error) {
	var event channels.InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	if event.Kind == "" {
		return nil, nil
	}
	return &event, nil
}

func (a *stubAdapter) VerifySignature(body []byte, header string) bool { return !a.rejectSig }

func (a *stubAdapter) VerifySubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != a.verifyToken {
		return "", channels.ErrNotSupported
	}
	return challenge, nil
}

func (a *stubAdapter) sentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

type webhookStore struct {
	mu       sync.Mutex
	messages []store.MessageRecord
	statuses map[string]string
}

func newWebhookStore() *webhookStore {
	return &webhookStore{statuses: make(map[string]string)}
}

func (s *webhookStore) GetOrCreateConversation(ctx context.Context, phone, displayName string) (*store.Conversation, error) {
	return &store.Conversation{ID: 1, ContactID: 1}, nil
}

func (s *webhookStore) AppendMessage(ctx context.Context, rec *store.MessageRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, *rec)
	return rec.ID, nil
}

func (s *webhookStore) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]store.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.MessageRecord(nil), s.messages...), nil
}

func (s *webhookStore) UpdateMessageStatus(ctx context.Context, messageRowID int64, status string) error {
	return nil
}

func (s *webhookStore) UpdateStatusByMessageID(ctx context.Context, messageID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[messageID] = status
	return nil
}

func (s *webhookStore) LogAgentAction(ctx context.Context, log *store.AgentLog) error { return nil }

func (s *webhookStore) Close() error { return nil }

func (s *webhookStore) incomingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.Direction == store.DirectionIncoming {
			n++
		}
	}
	return n
}

type cannedProvider struct{ reply string }

func (p *cannedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: p.reply, FinishReason: "stop"}, nil
}

func (p *cannedProvider) DefaultModel() string { return "gpt-4o-mini" }
func (p *cannedProvider) Name() string         { return "canned" }

func newTestServer(t *testing.T, adapter channels.Adapter, st store.ConversationStore, quiet time.Duration) *Server {
	t.Helper()
	loop := agent.NewLoop(agent.LoopConfig{
		Provider: &cannedProvider{reply: "Tudo certo por aqui."},
		Registry: tools.NewRegistry(),
		Store:    st,
	})
	dispatcher := dispatch.NewDispatcher(adapter, st)
	pipeline := NewPipeline(context.Background(), st, adapter, loop, dispatcher, quiet)
	t.Cleanup(pipeline.Close)
	return NewServer("127.0.0.1:0", adapter, pipeline)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, newWebhookStore(), time.Hour)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWebhookVerification(t *testing.T) {
	adapter := &stubAdapter{verifyToken: "segredo"}
	srv := newTestServer(t, adapter, newWebhookStore(), time.Hour)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET",
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=segredo&hub.challenge=12345", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET",
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=errado&hub.challenge=12345", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want 403", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	adapter := &stubAdapter{rejectSig: true}
	srv := newTestServer(t, adapter, newWebhookStore(), time.Hour)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/whatsapp",
		strings.NewReader(`{"Kind":"message","Phone":"5511999990000","Text":"oi"}`)))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestWebhookMessageFlowsToReply(t *testing.T) {
	adapter := &stubAdapter{}
	st := newWebhookStore()
	srv := newTestServer(t, adapter, st, 30*time.Millisecond)

	body := `{"Kind":"message","Phone":"5511999990000","MessageID":"wamid.1","Text":"como foram as campanhas?","PushName":"Rafael"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(body)))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "queued") {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if st.incomingCount() != 1 {
		t.Fatalf("incoming messages = %d, want 1", st.incomingCount())
	}

	// After the quiet period the agent answers and the reply goes out.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if adapter.sentCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if adapter.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", adapter.sentCount())
	}
	adapter.mu.Lock()
	reply := adapter.sent[0]
	adapter.mu.Unlock()
	if reply != "Tudo certo por aqui." {
		t.Errorf("reply = %q", reply)
	}
}

func TestWebhookStatusUpdatesMessage(t *testing.T) {
	adapter := &stubAdapter{}
	st := newWebhookStore()
	srv := newTestServer(t, adapter, st, time.Hour)

	body := `{"Kind":"status","MessageID":"wamid.9","Status":"read"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st.mu.Lock()
	got := st.statuses["wamid.9"]
	st.mu.Unlock()
	if got != store.StatusRead {
		t.Errorf("stored status = %q, want %q", got, store.StatusRead)
	}
}

func TestWebhookIgnoresUnparseableEvents(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, newWebhookStore(), time.Hour)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ignored") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSendEndpoint(t *testing.T) {
	adapter := &stubAdapter{}
	srv := newTestServer(t, adapter, newWebhookStore(), time.Hour)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/send",
		strings.NewReader(`{"phone":"5511999990000","message":"aviso manual"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if adapter.sentCount() != 1 {
		t.Errorf("sent = %d, want 1", adapter.sentCount())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/send", strings.NewReader(`{"phone":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d, want 400", rec.Code)
	}
}
