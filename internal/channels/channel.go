// Package channels abstracts the messaging providers the assistant can talk
// through. Each adapter converts between the provider's wire format and the
// pipeline's InboundEvent / payload types.
package channels

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/tools"
)

// ErrNotSupported marks capabilities a provider lacks (e.g. Telegram has no
// read receipts for bots). Callers degrade gracefully on it.
var ErrNotSupported = errors.New("operation not supported by this channel")

// Inbound event kinds.
const (
	EventMessage  = "message"
	EventStatus   = "status"
	EventPresence = "presence"
)

// InteractiveReply carries the user's answer to a buttons or list message.
type InteractiveReply struct {
	Type  string // "button_reply" or "list_reply"
	ID    string
	Title string
}

// InboundEvent is a provider webhook normalized into pipeline terms.
type InboundEvent struct {
	Kind        string
	Phone       string // partition key: phone or chat handle
	MessageID   string
	Text        string
	PushName    string
	FromMe      bool
	Timestamp   time.Time
	Status      string // for EventStatus: sent, delivered, read, failed
	Presence    string // for EventPresence: composing, paused, available
	Interactive *InteractiveReply
}

// Adapter is the outbound+webhook contract every provider implements.
// Send methods return the provider message ID when the provider reports one.
type Adapter interface {
	Name() string

	SendText(ctx context.Context, phone, text string) (string, error)
	SendButtons(ctx context.Context, phone string, p *tools.ButtonsPayload) (string, error)
	SendList(ctx context.Context, phone string, p *tools.ListPayload) (string, error)

	// MarkRead acknowledges an inbound message. ErrNotSupported when the
	// provider has no read receipts.
	MarkRead(ctx context.Context, phone, messageID string) error

	// SendTyping toggles the typing presence indicator.
	SendTyping(ctx context.Context, phone string, typing bool) error

	// ParseWebhook converts a raw webhook body into an event. A nil event
	// with nil error means the payload is valid but carries nothing the
	// pipeline cares about.
	ParseWebhook(body []byte) (*InboundEvent, error)
}

// CleanPhone strips the WhatsApp JID suffix, leaving the bare number.
func CleanPhone(phone string) string {
	return strings.TrimSuffix(phone, "@s.whatsapp.net")
}
