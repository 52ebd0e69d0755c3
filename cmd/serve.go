package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grupovorp/adpilot/internal/agent"
	"github.com/grupovorp/adpilot/internal/channels"
	"github.com/grupovorp/adpilot/internal/channels/cloudapi"
	"github.com/grupovorp/adpilot/internal/channels/evolution"
	"github.com/grupovorp/adpilot/internal/channels/telegram"
	"github.com/grupovorp/adpilot/internal/config"
	"github.com/grupovorp/adpilot/internal/dispatch"
	"github.com/grupovorp/adpilot/internal/facebook"
	"github.com/grupovorp/adpilot/internal/httpapi"
	"github.com/grupovorp/adpilot/internal/providers"
	"github.com/grupovorp/adpilot/internal/store"
	"github.com/grupovorp/adpilot/internal/store/pg"
	"github.com/grupovorp/adpilot/internal/store/sqlite"
	"github.com/grupovorp/adpilot/internal/telemetry"
	"github.com/grupovorp/adpilot/internal/tools"
)

func runServe() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return err
	}
	slog.Info("channel adapter ready", "channel", adapter.Name())

	fb := facebook.NewClient(cfg.Facebook.AccessToken)
	registry := buildRegistry(fb)

	provider := providers.NewOpenAIProvider("openai", cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, cfg.OpenAI.Model)

	loop := agent.NewLoop(agent.LoopConfig{
		Provider:      provider,
		Model:         cfg.OpenAI.Model,
		Registry:      registry,
		Store:         st,
		MaxIterations: cfg.Agent.MaxIterations,
		RunTimeout:    time.Duration(cfg.Agent.RunTimeoutSeconds) * time.Second,
		HistoryLimit:  cfg.Agent.HistoryLimit,
	})

	dispatcher := dispatch.NewDispatcher(adapter, st)

	quiet := time.Duration(cfg.Agent.DebounceSeconds * float64(time.Second))
	pipeline := httpapi.NewPipeline(ctx, st, adapter, loop, dispatcher, quiet)
	defer pipeline.Close()

	if err := config.Watch(ctx, cfgPath, func(next *config.Config) {
		pipeline.SetQuiet(time.Duration(next.Agent.DebounceSeconds * float64(time.Second)))
		slog.Info("agent settings updated",
			"max_iterations", next.Agent.MaxIterations,
			"debounce_seconds", next.Agent.DebounceSeconds,
		)
	}); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := httpapi.NewServer(addr, adapter, pipeline)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.ConversationStore, error) {
	if cfg.Database.PostgresDSN != "" {
		st, err := pg.New(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		slog.Info("using postgres store")
		return st, nil
	}
	st, err := sqlite.New(cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	slog.Info("using sqlite store", "path", cfg.Database.SQLitePath)
	return st, nil
}

func buildAdapter(cfg *config.Config) (channels.Adapter, error) {
	switch cfg.Channel.Provider {
	case "cloudapi":
		return cloudapi.New(cloudapi.Config{
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
			VerifyToken:   cfg.WhatsApp.VerifyToken,
			AppSecret:     cfg.WhatsApp.AppSecret,
		})
	case "evolution":
		return evolution.New(evolution.Config{
			BaseURL:  cfg.Evolution.BaseURL,
			APIKey:   cfg.Evolution.APIKey,
			Instance: cfg.Evolution.Instance,
		})
	case "telegram":
		return telegram.New(cfg.Telegram.Token)
	}
	return nil, fmt.Errorf("unknown channel provider %q", cfg.Channel.Provider)
}

func buildRegistry(fb *facebook.Client) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewAdAccountsTool())
	registry.Register(tools.NewFindAccountTool())
	registry.Register(tools.NewCampaignInsightsTool(fb))
	registry.Register(tools.NewAllAccountsInsightsTool(fb))
	registry.Register(tools.NewComparePeriodsTool(fb))
	registry.Register(tools.NewActivityHistoryTool(fb))
	registry.Register(tools.NewBudgetTool())
	registry.Register(tools.NewBusinessInfoTool(fb))
	registry.Register(tools.NewSendButtonsTool())
	registry.Register(tools.NewSendListTool())
	return registry
}
