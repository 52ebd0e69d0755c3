// Package telegram implements a Telegram adapter so the assistant can be
// reached outside WhatsApp. Lists and read receipts are not available for
// Telegram bots; the dispatcher falls back to text on ErrNotSupported.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/tools"
)

type Adapter struct {
	bot *telego.Bot
}

func New(token string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Adapter{bot: bot}, nil
}

func (a *Adapter) Name() string { return "telegram" }

func chatID(phone string) (telego.ChatID, error) {
	id, err := strconv.ParseInt(phone, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("telegram: invalid chat id %q: %w", phone, err)
	}
	return tu.ID(id), nil
}

func (a *Adapter) SendText(ctx context.Context, phone, text string) (string, error) {
	id, err := chatID(phone)
	if err != nil {
		return "", err
	}
	msg, err := a.bot.SendMessage(ctx, tu.Message(id, text))
	if err != nil {
		return "", fmt.Errorf("telegram: send message: %w", err)
	}
	return strconv.Itoa(msg.MessageID), nil
}

// SendButtons maps reply buttons onto an inline keyboard, one button per row.
func (a *Adapter) SendButtons(ctx context.Context, phone string, p *tools.ButtonsPayload) (string, error) {
	id, err := chatID(phone)
	if err != nil {
		return "", err
	}

	rows := make([][]telego.InlineKeyboardButton, len(p.Buttons))
	for i, btn := range p.Buttons {
		rows[i] = tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(btn.Title).WithCallbackData(btn.ID),
		)
	}

	body := p.Body
	if p.Footer != "" {
		body += "\n\n" + p.Footer
	}

	params := tu.Message(id, body).WithReplyMarkup(tu.InlineKeyboard(rows...))
	msg, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("telegram: send buttons: %w", err)
	}
	return strconv.Itoa(msg.MessageID), nil
}

func (a *Adapter) SendList(ctx context.Context, phone string, p *tools.ListPayload) (string, error) {
	return "", channels.ErrNotSupported
}

func (a *Adapter) MarkRead(ctx context.Context, phone, messageID string) error {
	return channels.ErrNotSupported
}

func (a *Adapter) SendTyping(ctx context.Context, phone string, typing bool) error {
	if !typing {
		// Telegram clears the action on send; there is no explicit stop.
		return nil
	}
	id, err := chatID(phone)
	if err != nil {
		return err
	}
	return a.bot.SendChatAction(ctx, tu.ChatAction(id, telego.ChatActionTyping))
}

func (a *Adapter) ParseWebhook(body []byte) (*channels.InboundEvent, error) {
	var update telego.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("telegram: decode update: %w", err)
	}

	if update.Message != nil && update.Message.Text != "" {
		msg := update.Message
		event := &channels.InboundEvent{
			Kind:      channels.EventMessage,
			Phone:     strconv.FormatInt(msg.Chat.ID, 10),
			MessageID: strconv.Itoa(msg.MessageID),
			Text:      msg.Text,
			Timestamp: time.Unix(msg.Date, 0),
		}
		if msg.From != nil {
			event.PushName = msg.From.FirstName
		}
		return event, nil
	}

	if update.CallbackQuery != nil {
		cq := update.CallbackQuery
		event := &channels.InboundEvent{
			Kind:      channels.EventMessage,
			MessageID: cq.ID,
			Text:      cq.Data,
			Interactive: &channels.InteractiveReply{
				Type: "button_reply",
				ID:   cq.Data,
			},
		}
		if cq.Message != nil {
			event.Phone = strconv.FormatInt(cq.Message.GetChat().ID, 10)
		}
		if cq.From.FirstName != "" {
			event.PushName = cq.From.FirstName
		}
		return event, nil
	}

	return nil, nil
}
