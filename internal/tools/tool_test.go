package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type staticTool struct {
	name string
	fn   func(ctx context.Context, args map[string]interface{}) *Result
}

func (t *staticTool) Name() string        { return t.name }
func (t *staticTool) Description() string { return "test tool" }
func (t *staticTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *staticTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.fn(ctx, args)
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}

	res := r.Execute(context.Background(), "nope", nil)
	if !res.IsError {
		t.Error("expected error result")
	}
	if !errors.Is(res.Err, ErrUnknownTool) {
		t.Errorf("res.Err = %v", res.Err)
	}
}

func TestRegistryExecuteRecoverFromPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&staticTool{name: "boom", fn: func(ctx context.Context, args map[string]interface{}) *Result {
		panic("kaput")
	}})

	res := r.Execute(context.Background(), "boom", nil)
	if !res.IsError {
		t.Error("expected error result from panicking tool")
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		n := name
		r.Register(&staticTool{name: n, fn: func(ctx context.Context, args map[string]interface{}) *Result {
			return NewResult("ok")
		}})
	}

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("defs = %d", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, d := range defs {
		if d.Function.Name != want[i] {
			t.Errorf("defs[%d] = %q, want %q", i, d.Function.Name, want[i])
		}
		if d.Type != "function" {
			t.Errorf("defs[%d].Type = %q", i, d.Type)
		}
	}
}

type captureSink struct {
	buttons *ButtonsPayload
	list    *ListPayload
}

func (s *captureSink) SetButtons(p *ButtonsPayload) { s.buttons = p }
func (s *captureSink) SetList(p *ListPayload)       { s.list = p }

func TestSendButtonsValidation(t *testing.T) {
	tool := NewSendButtonsTool()
	sink := &captureSink{}
	ctx := WithInteractiveSink(context.Background(), sink)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{
			name:    "no sink context",
			args:    map[string]interface{}{"body_text": "x", "buttons": []interface{}{}},
			wantErr: true,
		},
		{
			name:    "empty body",
			args:    map[string]interface{}{"body_text": "", "buttons": []interface{}{map[string]interface{}{"id": "1", "title": "Ok"}}},
			wantErr: true,
		},
		{
			name: "too many buttons",
			args: map[string]interface{}{"body_text": "x", "buttons": []interface{}{
				map[string]interface{}{"id": "1", "title": "A"},
				map[string]interface{}{"id": "2", "title": "B"},
				map[string]interface{}{"id": "3", "title": "C"},
				map[string]interface{}{"id": "4", "title": "D"},
			}},
			wantErr: true,
		},
		{
			name: "valid",
			args: map[string]interface{}{"body_text": "Quer ver mais?", "buttons": []interface{}{
				map[string]interface{}{"id": "1", "title": "📊 Ver CTR"},
				map[string]interface{}{"id": "2", "title": "📈 Comparar"},
			}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := ctx
			if tt.name == "no sink context" {
				execCtx = context.Background()
			}
			res := tool.Execute(execCtx, tt.args)
			if res.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (%s)", res.IsError, tt.wantErr, res.ForLLM)
			}
		})
	}

	if sink.buttons == nil {
		t.Fatal("valid call did not set buttons")
	}
	if len(sink.buttons.Buttons) != 2 || sink.buttons.Buttons[0].Title != "📊 Ver CTR" {
		t.Errorf("buttons = %+v", sink.buttons.Buttons)
	}
}

func TestSendButtonsTruncatesLongTitle(t *testing.T) {
	tool := NewSendButtonsTool()
	sink := &captureSink{}
	ctx := WithInteractiveSink(context.Background(), sink)

	res := tool.Execute(ctx, map[string]interface{}{
		"body_text": "x",
		"buttons": []interface{}{
			map[string]interface{}{"id": "1", "title": "Comparar com o mês anterior inteiro"},
		},
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	got := sink.buttons.Buttons[0].Title
	if !strings.HasSuffix(got, "...") {
		t.Errorf("title = %q, want ... suffix", got)
	}
}

func TestSendListValidationAndFallbackText(t *testing.T) {
	tool := NewSendListTool()
	sink := &captureSink{}
	ctx := WithInteractiveSink(context.Background(), sink)

	var opts []interface{}
	for i := 0; i < 11; i++ {
		opts = append(opts, map[string]interface{}{"id": "1", "title": "Opção"})
	}
	res := tool.Execute(ctx, map[string]interface{}{
		"body_text": "x", "button_text": "Ver", "options": opts,
	})
	if !res.IsError {
		t.Error("expected error for 11 options")
	}

	res = tool.Execute(ctx, map[string]interface{}{
		"body_text":   "Como posso ajudar?",
		"button_text": "Escolher",
		"options": []interface{}{
			map[string]interface{}{"id": "1", "title": "Consultar campanhas", "description": "Ver status"},
			map[string]interface{}{"id": "2", "title": "Suporte"},
		},
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if sink.list == nil || len(sink.list.Options) != 2 {
		t.Fatalf("list = %+v", sink.list)
	}
	if !strings.Contains(res.ForLLM, "*1.* Consultar campanhas") {
		t.Errorf("fallback text missing numbered option: %q", res.ForLLM)
	}
}
