// Package agent runs the reason/act loop: the model reads the conversation,
// calls Facebook tools until it has the data it needs, and produces one
// logical response per batch of inbound messages.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/grupovorp/adpilot/internal/costs"
	"github.com/grupovorp/adpilot/internal/providers"
	"github.com/grupovorp/adpilot/internal/store"
	"github.com/grupovorp/adpilot/internal/tools"
)

const (
	defaultMaxIterations = 10
	defaultRunTimeout    = 120 * time.Second
	defaultHistoryLimit  = 10

	// FallbackReply is sent when the run fails outright.
	FallbackReply = "Desculpe, tive um problema para processar sua mensagem agora. Pode tentar novamente em instantes?"

	emptyReply = "Desculpe, não consegui gerar uma resposta. Pode reformular a pergunta?"
)

var tracer = otel.Tracer("github.com/grupovorp/adpilot/internal/agent")

// Loop executes one agent run per flushed batch.
type Loop struct {
	provider      providers.Provider
	model         string
	registry      *tools.Registry
	store         store.ConversationStore
	maxIterations int
	runTimeout    time.Duration
	historyLimit  int
	pricing       costs.Pricing
	now           func() time.Time
}

type LoopConfig struct {
	Provider      providers.Provider
	Model         string
	Registry      *tools.Registry
	Store         store.ConversationStore
	MaxIterations int
	RunTimeout    time.Duration
	HistoryLimit  int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	model := cfg.Model
	if model == "" {
		model = cfg.Provider.DefaultModel()
	}
	return &Loop{
		provider:      cfg.Provider,
		model:         model,
		registry:      cfg.Registry,
		store:         cfg.Store,
		maxIterations: cfg.MaxIterations,
		runTimeout:    cfg.RunTimeout,
		historyLimit:  cfg.HistoryLimit,
		pricing:       costs.DefaultPricing(),
		now:           time.Now,
	}
}

// Request is one flushed batch to answer.
type Request struct {
	ConversationID int64
	Phone          string
	ContactName    string
	Message        string
}

// Response is the logical reply: text plus at most one interactive payload.
type Response struct {
	Text       string
	Buttons    *tools.ButtonsPayload
	List       *tools.ListPayload
	Iterations int
	Usage      providers.Usage
}

// runSink collects interactive payloads set by tools during a run.
// Last write wins per kind.
type runSink struct {
	mu      sync.Mutex
	buttons *tools.ButtonsPayload
	list    *tools.ListPayload
}

func (s *runSink) SetButtons(p *tools.ButtonsPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons = p
}

func (s *runSink) SetList(p *tools.ListPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = p
}

// Run executes the loop for one batch. On failure it still returns a
// response carrying the fallback apology, alongside the error.
func (l *Loop) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.runTimeout)
	defer cancel()

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "agent.run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int64("conversation.id", req.ConversationID),
		attribute.String("llm.model", l.model),
	)
	defer span.End()

	start := l.now()
	resp, err := l.run(ctx, req)
	elapsed := time.Since(start)

	logEntry := &store.AgentLog{
		ConversationID: req.ConversationID,
		Action:         "agent_run",
		Input:          truncate(req.Message, 500),
		Status:         "success",
		ExecutionMS:    elapsed.Milliseconds(),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logEntry.Status = "error"
		logEntry.ErrorMessage = err.Error()
		resp = &Response{Text: FallbackReply}
	} else {
		logEntry.Output = truncate(resp.Text, 500)
		span.SetAttributes(attribute.Int("agent.iterations", resp.Iterations))
		_, brl := l.pricing.Cost(resp.Usage)
		slog.Info("agent run completed",
			"run_id", runID,
			"conversation_id", req.ConversationID,
			"iterations", resp.Iterations,
			"tokens", resp.Usage.TotalTokens,
			"cost_brl", fmt.Sprintf("%.4f", brl),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	if logErr := l.store.LogAgentAction(context.WithoutCancel(ctx), logEntry); logErr != nil {
		slog.Warn("failed to persist agent log", "conversation_id", req.ConversationID, "error", logErr)
	}

	return resp, err
}

func (l *Loop) run(ctx context.Context, req Request) (*Response, error) {
	sink := &runSink{}
	ctx = tools.WithInteractiveSink(ctx, sink)

	messages, err := l.buildMessages(ctx, req)
	if err != nil {
		return nil, err
	}

	var totalUsage providers.Usage
	var finalContent string
	var done bool
	iteration := 0

	for iteration < l.maxIterations {
		iteration++
		slog.Debug("agent iteration", "conversation_id", req.ConversationID, "iteration", iteration, "messages", len(messages))

		chatReq := providers.ChatRequest{
			Messages: messages,
			Tools:    l.registry.Definitions(),
			Model:    l.model,
			Options: map[string]interface{}{
				providers.OptMaxTokens:   2048,
				providers.OptTemperature: 0.4,
			},
		}

		resp, err := l.provider.Chat(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("llm call failed (iteration %d): %w", iteration, err)
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			done = true
			break
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			messages = append(messages, l.executeTool(ctx, req.ConversationID, tc))
		}
	}

	// Running out of iterations without a tool-free response means the model
	// never finished its answer. Anything a tool staged along the way is
	// half-built, so the whole turn fails and the caller sends the apology.
	if !done {
		return nil, fmt.Errorf("iteration limit reached after %d iterations", l.maxIterations)
	}

	finalContent = ToWhatsApp(finalContent)

	out := &Response{
		Text:       finalContent,
		Buttons:    sink.buttons,
		List:       sink.list,
		Iterations: iteration,
		Usage:      totalUsage,
	}

	if out.Buttons == nil && out.List == nil {
		out.Text, out.Buttons = RecoverButtons(out.Text)
	}

	if out.Text == "" && out.Buttons == nil && out.List == nil {
		out.Text = emptyReply
	}

	return out, nil
}

func (l *Loop) executeTool(ctx context.Context, conversationID int64, tc providers.ToolCall) providers.Message {
	argsJSON, _ := json.Marshal(tc.Arguments)
	slog.Info("tool call", "tool", tc.Name, "args_len", len(argsJSON))

	ctx, span := tracer.Start(ctx, "tool."+tc.Name)
	span.SetAttributes(attribute.String("tool.name", tc.Name))
	start := l.now()
	result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
	if result.IsError {
		span.SetStatus(codes.Error, truncate(result.ForLLM, 200))
		slog.Warn("tool error", "tool", tc.Name, "error", truncate(result.ForLLM, 200))
	}
	span.End()

	toolLog := &store.AgentLog{
		ConversationID: conversationID,
		Action:         tc.Name,
		Input:          truncate(string(argsJSON), 500),
		Output:         truncate(result.ForLLM, 500),
		Status:         "success",
		ExecutionMS:    time.Since(start).Milliseconds(),
	}
	if result.IsError {
		toolLog.Status = "error"
		toolLog.ErrorMessage = truncate(result.ForLLM, 500)
	}
	if err := l.store.LogAgentAction(ctx, toolLog); err != nil {
		slog.Warn("failed to persist tool log", "tool", tc.Name, "error", err)
	}

	return providers.Message{
		Role:       "tool",
		Content:    result.ForLLM,
		ToolCallID: tc.ID,
	}
}

// buildMessages seeds the run with recent conversation history. Trailing
// incoming records are the batch currently being answered, so they are
// dropped in favor of the combined req.Message.
func (l *Loop) buildMessages(ctx context.Context, req Request) ([]providers.Message, error) {
	recent, err := l.store.RecentMessages(ctx, req.ConversationID, l.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	for len(recent) > 0 && recent[len(recent)-1].Direction == store.DirectionIncoming {
		recent = recent[:len(recent)-1]
	}

	messages := make([]providers.Message, 0, len(recent)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: SystemPrompt(req.ContactName, l.now()),
	})
	for _, rec := range recent {
		role := "user"
		if rec.Direction == store.DirectionOutgoing {
			role = "assistant"
		}
		messages = append(messages, providers.Message{Role: role, Content: rec.Text})
	}
	messages = append(messages, providers.Message{Role: "user", Content: req.Message})
	return messages, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
