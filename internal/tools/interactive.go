package tools

import (
	"context"
	"fmt"

	"github.com/mattn/go-runewidth"
)

// Interactive payloads prepared by tools during a run. Each run owns one
// InteractiveSink, injected into the tool context by the agent loop; at most
// one payload survives the run (a list wins over buttons at dispatch time).

// Button is one quick-reply option.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsPayload is a message with up to three reply buttons.
type ButtonsPayload struct {
	Body    string   `json:"body"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

// ListOption is one row of an interactive list.
type ListOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListPayload is a message that opens a selection list.
type ListPayload struct {
	Body       string       `json:"body"`
	ButtonText string       `json:"button_text"`
	Options    []ListOption `json:"options"`
}

// InteractiveSink collects the interactive payload a tool prepares for the
// current run. Implementations keep last-write-wins semantics per kind.
type InteractiveSink interface {
	SetButtons(p *ButtonsPayload)
	SetList(p *ListPayload)
}

type sinkContextKey struct{}

func WithInteractiveSink(ctx context.Context, sink InteractiveSink) context.Context {
	return context.WithValue(ctx, sinkContextKey{}, sink)
}

func InteractiveSinkFromCtx(ctx context.Context) InteractiveSink {
	v, _ := ctx.Value(sinkContextKey{}).(InteractiveSink)
	return v
}

const (
	maxButtons          = 3
	maxButtonTitleWidth = 20
	maxListOptions      = 10
	maxListTitleWidth   = 24
	maxListDescWidth    = 72
)

// TruncateTitle trims s to maxWidth display cells, appending "..." when it
// had to cut. Rune-width aware so emoji in titles do not overflow the
// provider limit.
func TruncateTitle(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// --- send_whatsapp_buttons ---

type SendButtonsTool struct{}

func NewSendButtonsTool() *SendButtonsTool { return &SendButtonsTool{} }

func (t *SendButtonsTool) Name() string { return "send_whatsapp_buttons" }
func (t *SendButtonsTool) Description() string {
	return "Envia botões interativos no WhatsApp (máximo 3 botões). Use para oferecer 1-3 opções rápidas após apresentar dados ou análise. Título do botão: máximo 20 caracteres."
}
func (t *SendButtonsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"body_text": map[string]interface{}{
				"type":        "string",
				"description": "Texto principal da mensagem (pergunta/sugestão)",
			},
			"buttons": map[string]interface{}{
				"type":        "array",
				"description": "Lista de 1 a 3 botões",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":    map[string]interface{}{"type": "string", "description": "Identificador único (ex: \"1\")"},
						"title": map[string]interface{}{"type": "string", "description": "Texto do botão (máx 20 caracteres)"},
					},
					"required": []string{"id", "title"},
				},
			},
			"footer_text": map[string]interface{}{
				"type":        "string",
				"description": "Texto opcional no rodapé",
			},
		},
		"required": []string{"body_text", "buttons"},
	}
}

func (t *SendButtonsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	sink := InteractiveSinkFromCtx(ctx)
	if sink == nil {
		return ErrorResult("Botões não estão disponíveis neste canal")
	}

	body, _ := args["body_text"].(string)
	if body == "" {
		return ErrorResult("Erro: body_text não pode estar vazio")
	}

	rawButtons, _ := args["buttons"].([]interface{})
	if len(rawButtons) == 0 || len(rawButtons) > maxButtons {
		return ErrorResult("Erro: você deve fornecer de 1 a 3 botões (máximo 3)")
	}

	payload := &ButtonsPayload{Body: body}
	if footer, _ := args["footer_text"].(string); footer != "" {
		payload.Footer = footer
	}

	for i, raw := range rawButtons {
		btn, _ := raw.(map[string]interface{})
		id, _ := btn["id"].(string)
		title, _ := btn["title"].(string)
		if id == "" || title == "" {
			return ErrorResult(fmt.Sprintf("Erro: botão %d deve ter 'id' e 'title'", i+1))
		}
		payload.Buttons = append(payload.Buttons, Button{
			ID:    id,
			Title: TruncateTitle(title, maxButtonTitleWidth),
		})
	}

	sink.SetButtons(payload)
	return NewResult(fmt.Sprintf("%d botão(ões) preparado(s) para envio. Os botões serão anexados à mensagem.", len(payload.Buttons)))
}

// --- send_whatsapp_list ---

type SendListTool struct{}

func NewSendListTool() *SendListTool { return &SendListTool{} }

func (t *SendListTool) Name() string { return "send_whatsapp_list" }
func (t *SendListTool) Description() string {
	return "Prepara uma lista interativa para envio no WhatsApp. Use quando precisar dar múltiplas escolhas ao usuário (até 10 opções)."
}
func (t *SendListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"body_text": map[string]interface{}{
				"type":        "string",
				"description": "Texto explicativo sobre as opções",
			},
			"button_text": map[string]interface{}{
				"type":        "string",
				"description": "Texto do botão que abre a lista (ex: \"Ver opções\")",
			},
			"options": map[string]interface{}{
				"type":        "array",
				"description": "Até 10 opções",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":          map[string]interface{}{"type": "string"},
						"title":       map[string]interface{}{"type": "string", "description": "Máx 24 caracteres"},
						"description": map[string]interface{}{"type": "string", "description": "Máx 72 caracteres, opcional"},
					},
					"required": []string{"id", "title"},
				},
			},
		},
		"required": []string{"body_text", "button_text", "options"},
	}
}

func (t *SendListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	sink := InteractiveSinkFromCtx(ctx)
	if sink == nil {
		return ErrorResult("Listas não estão disponíveis neste canal")
	}

	body, _ := args["body_text"].(string)
	buttonText, _ := args["button_text"].(string)
	if body == "" || buttonText == "" {
		return ErrorResult("Erro: body_text e button_text são obrigatórios")
	}

	rawOptions, _ := args["options"].([]interface{})
	if len(rawOptions) == 0 {
		return ErrorResult("Erro: é necessário pelo menos uma opção")
	}
	if len(rawOptions) > maxListOptions {
		return ErrorResult("Erro: máximo de 10 opções permitidas. Por favor, reduza o número de opções.")
	}

	payload := &ListPayload{Body: body, ButtonText: buttonText}
	for i, raw := range rawOptions {
		opt, _ := raw.(map[string]interface{})
		id, _ := opt["id"].(string)
		title, _ := opt["title"].(string)
		if id == "" || title == "" {
			return ErrorResult(fmt.Sprintf("Erro: opção %d deve ter 'id' e 'title'", i+1))
		}
		desc, _ := opt["description"].(string)
		payload.Options = append(payload.Options, ListOption{
			ID:          id,
			Title:       TruncateTitle(title, maxListTitleWidth),
			Description: TruncateTitle(desc, maxListDescWidth),
		})
	}

	sink.SetList(payload)

	return NewResult("Lista preparada para envio. Versão texto:\n\n" + FormatListAsText(payload))
}

// FormatListAsText renders a list payload as a numbered text menu, used both
// as tool feedback to the model and as the dispatch fallback on channels
// without list support.
func FormatListAsText(p *ListPayload) string {
	out := p.Body + "\n\n"
	for i, opt := range p.Options {
		out += fmt.Sprintf("*%d.* %s\n", i+1, opt.Title)
		if opt.Description != "" {
			out += "   _" + opt.Description + "_\n"
		}
	}
	out += "\n_Responda com o número da opção desejada._"
	return out
}

// FormatButtonsAsText renders a buttons payload as plain text for channels
// without button support.
func FormatButtonsAsText(p *ButtonsPayload) string {
	out := p.Body + "\n"
	for i, btn := range p.Buttons {
		out += fmt.Sprintf("\n*%d.* %s", i+1, btn.Title)
	}
	if p.Footer != "" {
		out += "\n\n_" + p.Footer + "_"
	}
	return out
}
