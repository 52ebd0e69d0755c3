// Package dispatch delivers one logical agent response over a channel
// adapter: long text is split into message-sized parts, interactive payloads
// go out as native buttons or lists with a text fallback, and every sent
// part is persisted.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/agent"
	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/store"
	"github.com/grupovorp/adpilot/internal/tools"
)

const (
	// MaxPartLen is the split threshold, well under WhatsApp's hard limit
	// so parts stay readable on one screen.
	MaxPartLen = 800

	defaultPartDelay = 1500 * time.Millisecond
)

type Dispatcher struct {
	adapter   channels.Adapter
	store     store.ConversationStore
	partDelay time.Duration
	sleep     func(time.Duration)
}

func NewDispatcher(adapter channels.Adapter, st store.ConversationStore) *Dispatcher {
	return &Dispatcher{
		adapter:   adapter,
		store:     st,
		partDelay: defaultPartDelay,
		sleep:     time.Sleep,
	}
}

// Deliver sends the response to the contact. An interactive payload replaces
// the plain-text path: the response text travels as the payload body, never
// as a separate message, so the contact reads it exactly once. Plain
// responses are split into parts with a pause between them. Every sent part
// is persisted as soon as its send attempt resolves.
func (d *Dispatcher) Deliver(ctx context.Context, conv *store.Conversation, phone string, resp *agent.Response) error {
	if kind := interactiveKind(resp); kind != "" {
		messageID, text, err := d.sendInteractive(ctx, phone, resp, kind)
		if err != nil {
			slog.Error("outbound send failed", "phone", phone, "kind", kind, "error", err)
		}
		d.persist(ctx, conv, messageID, text, err)
		return err
	}

	var firstErr error
	for i, part := range SplitMessage(resp.Text, MaxPartLen) {
		if i > 0 {
			d.sleep(d.partDelay)
		}
		messageID, err := d.adapter.SendText(ctx, phone, part)
		if err != nil {
			slog.Error("outbound send failed", "phone", phone, "part", i+1, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		d.persist(ctx, conv, messageID, part, err)
	}
	return firstErr
}

func (d *Dispatcher) persist(ctx context.Context, conv *store.Conversation, messageID, text string, sendErr error) {
	status := store.StatusSent
	if sendErr != nil {
		status = store.StatusFailed
	}
	rec := &store.MessageRecord{
		ConversationID: conv.ID,
		ContactID:      conv.ContactID,
		MessageID:      messageID,
		Direction:      store.DirectionOutgoing,
		Text:           text,
		Status:         status,
	}
	if _, err := d.store.AppendMessage(ctx, rec); err != nil {
		slog.Warn("failed to persist outbound message", "conversation_id", conv.ID, "error", err)
	}
}

// interactiveKind decides which interactive payload goes out, if any.
func interactiveKind(resp *agent.Response) string {
	switch {
	case resp.List != nil:
		return "list"
	case resp.Buttons != nil:
		return "buttons"
	}
	return ""
}

func (d *Dispatcher) sendInteractive(ctx context.Context, phone string, resp *agent.Response, kind string) (messageID, text string, err error) {
	if kind == "list" {
		text = resp.List.Body
		messageID, err = d.adapter.SendList(ctx, phone, resp.List)
		if errors.Is(err, channels.ErrNotSupported) {
			text = tools.FormatListAsText(resp.List)
			messageID, err = d.adapter.SendText(ctx, phone, text)
		}
		return messageID, text, err
	}

	// The model's final text, when present, is the button message body.
	payload := *resp.Buttons
	if resp.Text != "" {
		payload.Body = resp.Text
	}
	text = payload.Body
	messageID, err = d.adapter.SendButtons(ctx, phone, &payload)
	if errors.Is(err, channels.ErrNotSupported) {
		text = tools.FormatButtonsAsText(&payload)
		messageID, err = d.adapter.SendText(ctx, phone, text)
	}
	return messageID, text, err
}

// Typing starts the typing indicator and returns a stop function. The stop
// request uses a detached context so it still goes out after the run's
// context is done; failures are ignored because presence is best effort.
func (d *Dispatcher) Typing(ctx context.Context, phone string) func() {
	go func() {
		if err := d.adapter.SendTyping(ctx, phone, true); err != nil && !errors.Is(err, channels.ErrNotSupported) {
			slog.Debug("typing indicator failed", "phone", phone, "error", err)
		}
	}()
	return func() {
		go func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = d.adapter.SendTyping(stopCtx, phone, false)
		}()
	}
}

// SplitMessage breaks text into parts of at most maxLen characters,
// preferring blank-line boundaries so sections stay intact. A single
// section longer than maxLen is sent whole rather than cut mid-line.
func SplitMessage(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	sections := strings.Split(text, "\n\n")
	var parts []string
	var current string

	for _, section := range sections {
		if current == "" {
			current = section
			continue
		}
		if len(current)+2+len(section) <= maxLen {
			current += "\n\n" + section
		} else {
			parts = append(parts, current)
			current = section
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
