package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/grupovorp/adpilot/internal/agent"
	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/debounce"
	"github.com/grupovorp/adpilot/internal/dispatch"
	"github.com/grupovorp/adpilot/internal/store"
)

const markReadDelay = 1500 * time.Millisecond

// Pipeline connects inbound events to the agent: persist, batch, run, reply.
type Pipeline struct {
	store      store.ConversationStore
	adapter    channels.Adapter
	loop       *agent.Loop
	dispatcher *dispatch.Dispatcher
	debouncer  *debounce.Aggregator
	baseCtx    context.Context
}

func NewPipeline(ctx context.Context, st store.ConversationStore, adapter channels.Adapter, loop *agent.Loop, dispatcher *dispatch.Dispatcher, quiet time.Duration) *Pipeline {
	p := &Pipeline{
		store:      st,
		adapter:    adapter,
		loop:       loop,
		dispatcher: dispatcher,
		baseCtx:    ctx,
	}
	p.debouncer = debounce.NewAggregator(quiet, p.onFlush)
	return p
}

func (p *Pipeline) Close() {
	p.debouncer.Close()
}

// HandleEvent processes one parsed webhook event. Message events are
// persisted and queued for the debouncer; status events update delivery
// state of earlier outbound messages.
func (p *Pipeline) HandleEvent(ctx context.Context, event *channels.InboundEvent) error {
	switch event.Kind {
	case channels.EventStatus:
		status := normalizeStatus(event.Status)
		if status == "" {
			return nil
		}
		return p.store.UpdateStatusByMessageID(ctx, event.MessageID, status)

	case channels.EventPresence:
		p.debouncer.OnPresence(channels.CleanPhone(event.Phone), event.Presence)
		return nil

	case channels.EventMessage:
		return p.handleMessage(ctx, event)
	}
	return nil
}

// SetQuiet applies a reloaded debounce quiet period to future batches.
func (p *Pipeline) SetQuiet(quiet time.Duration) {
	p.debouncer.SetQuiet(quiet)
}

// SendManual delivers an operator-initiated message through the same
// formatting, splitting and persistence path agent replies take.
func (p *Pipeline) SendManual(ctx context.Context, phone, text string) error {
	phone = channels.CleanPhone(phone)
	conv, err := p.store.GetOrCreateConversation(ctx, phone, "")
	if err != nil {
		return err
	}
	return p.dispatcher.Deliver(ctx, conv, phone, &agent.Response{Text: agent.ToWhatsApp(text)})
}

func (p *Pipeline) handleMessage(ctx context.Context, event *channels.InboundEvent) error {
	if event.FromMe || event.Text == "" {
		return nil
	}

	phone := channels.CleanPhone(event.Phone)

	conv, err := p.store.GetOrCreateConversation(ctx, phone, event.PushName)
	if err != nil {
		return err
	}

	rec := &store.MessageRecord{
		ConversationID: conv.ID,
		ContactID:      conv.ContactID,
		MessageID:      event.MessageID,
		Direction:      store.DirectionIncoming,
		Text:           event.Text,
		Status:         store.StatusReceived,
		CreatedAt:      event.Timestamp,
	}
	if _, err := p.store.AppendMessage(ctx, rec); err != nil {
		return err
	}

	p.scheduleMarkRead(phone, event.MessageID)

	p.debouncer.Add(phone, event.PushName, event.Text)

	// Interactive replies are a complete answer on their own; answering
	// immediately beats waiting out the quiet period.
	if event.Interactive != nil {
		p.debouncer.FlushNow(phone)
	}
	return nil
}

// scheduleMarkRead sends the read receipt after a short delay so the
// checkmarks turn blue while the contact still has the chat open.
func (p *Pipeline) scheduleMarkRead(phone, messageID string) {
	if messageID == "" {
		return
	}
	time.AfterFunc(markReadDelay, func() {
		ctx, cancel := context.WithTimeout(p.baseCtx, 10*time.Second)
		defer cancel()
		if err := p.adapter.MarkRead(ctx, phone, messageID); err != nil && err != channels.ErrNotSupported {
			slog.Debug("mark read failed", "phone", phone, "message_id", messageID, "error", err)
		}
	})
}

// onFlush runs the agent for one flushed batch and delivers the reply.
func (p *Pipeline) onFlush(batch *debounce.Batch) {
	ctx := p.baseCtx

	conv, err := p.store.GetOrCreateConversation(ctx, batch.Phone, batch.PushName)
	if err != nil {
		slog.Error("conversation lookup failed on flush", "phone", batch.Phone, "error", err)
		return
	}

	stopTyping := p.dispatcher.Typing(ctx, batch.Phone)

	resp, err := p.loop.Run(ctx, agent.Request{
		ConversationID: conv.ID,
		Phone:          batch.Phone,
		ContactName:    batch.PushName,
		Message:        batch.Combined(),
	})
	stopTyping()
	if err != nil {
		slog.Error("agent run failed", "phone", batch.Phone, "error", err)
		// resp still carries the fallback apology.
	}

	if err := p.dispatcher.Deliver(ctx, conv, batch.Phone, resp); err != nil {
		slog.Error("delivery failed", "phone", batch.Phone, "error", err)
	}
}

func normalizeStatus(s string) string {
	switch s {
	case "sent", "server_ack":
		return store.StatusSent
	case "delivered", "delivery_ack":
		return store.StatusDelivered
	case "read":
		return store.StatusRead
	case "failed":
		return store.StatusFailed
	}
	return ""
}
