package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasonsaas/stark/internal/agent"
	"github.com/haasonsaas/stark/internal/channels"
	"github.com/haasonsaas/stark/internal/channels/discord"
	"github.com/haasonsaas/stark/internal/channels/slack"
	"github.com/haasonsaas/stark/internal/channels/telegram"
	"github.com/haasonsaas/stark/internal/config"
	"github.com/haasonsaas/stark/internal/gateway"
	"github.com/haasonsaas/stark/internal/identity"
	"github.com/haasonsaas/stark/internal/llm"
	"github.com/haasonsaas/stark/internal/memory"
	"github.com/haasonsaas/stark/internal/sessions"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/internal/tools/builtin"
	"github.com/haasonsaas/stark/internal/tools/policy"
)

// defaultSystemPrompt is the bot's fixed preamble (§4.8 step 2). Operators
// shape tone/persona through the bot_name setting, not this string.
const defaultSystemPrompt = `You are STARK, a self-hosted conversational agent. Use the tools and
skills available to you, ask for confirmation before any side-effecting
action the policy requires it for, and keep replies concise.`

// shutdownGracePeriod bounds how long runServe waits for in-flight turns
// and channel adapters to stop after a shutdown signal arrives.
const shutdownGracePeriod = 30 * time.Second

// runtimeStatus backs the system_status tool. It is constructed before the
// Supervisor exists (the tool registry is built before the dispatcher) and
// has its supervisor field filled in once the Supervisor is wired, so the
// tool always reads the live value rather than a stale snapshot.
type runtimeStatus struct {
	start      time.Time
	supervisor *agent.Supervisor
}

func (r *runtimeStatus) ActiveSessions() int {
	if r.supervisor == nil {
		return 0
	}
	return r.supervisor.ActiveSessions()
}

func (r *runtimeStatus) Uptime() time.Duration { return time.Since(r.start) }

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store, err := storage.NewPostgresStore(cfg.Database.URL, &storage.PostgresConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	migrator, err := storage.NewMigrator(store.DB())
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if applied, err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	} else if len(applied) > 0 {
		logger.Info("applied migrations", "count", len(applied), "ids", applied)
	}

	settingsStore, err := config.LoadSettingsStore(ctx, cfg, store.Settings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	providerCfg, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return fmt.Errorf("no llm provider configured for %q", cfg.LLM.DefaultProvider)
	}
	provider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
		APIKey:       providerCfg.APIKey,
		BaseURL:      providerCfg.BaseURL,
		DefaultModel: providerCfg.DefaultModel,
	})
	if err != nil {
		return fmt.Errorf("build completion provider: %w", err)
	}

	channelRegistry := channels.NewRegistry(1024, logger)
	status := &runtimeStatus{start: time.Now()}

	registry := tools.NewRegistry()

	builtinTools := []tools.Tool{
		builtin.NewReadFileTool(".", 1<<20),
		builtin.NewWriteFileTool("."),
		builtin.NewRunShellTool("."),
		builtin.NewWebFetchTool(8000),
		builtin.NewMemorySearchTool(memory.NewRetriever(store.Memories, memory.DeterministicEmbedder{}), ""),
		builtin.NewSendMessageTool(channels.ToolSender{Registry: channelRegistry}),
		builtin.NewSystemStatusTool(status),
		builtin.NewSetAddressTool(),
		builtin.NewToRawAmountTool(),
		builtin.NewErc20TransferTool(store.Transactions, "mainnet"),
		builtin.NewBroadcastWeb3TxTool(builtin.NewHTTPRPCClient(), ""),
	}
	// web_search is intentionally not registered: no SearchBackend
	// implementation exists in this build (no search API is in scope), so
	// the tool would only ever return an error. Leaving it unregistered
	// beats shipping a stub that always fails.
	for _, t := range builtinTools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool %s: %w", t.Spec().Name, err)
		}
	}

	resolver := policy.NewResolver(registry.GroupOf)
	executor := tools.NewExecutor(registry, resolver, store.ToolAudit, tools.DefaultExecutorConfig())

	skillMgr := skills.NewManager(skills.Roots{
		Bundled: cfg.Skills.BundledDir,
		Managed: cfg.Skills.ManagedDir,
	}, store.Skills, skills.RegistryResolver{Registry: registry})
	if err := skillMgr.Reload(ctx); err != nil {
		logger.Warn("initial skill load failed", "error", err)
	}

	identityResolver := identity.NewResolver(store.Identities, store.Memories, store.Sessions)
	memoryWriter := memory.NewWriter(store.Memories, memory.DeterministicEmbedder{})
	sessionMgr := sessions.NewManager(store.Sessions, store.Messages, memoryWriter, 0, 0)

	retriever := memory.NewRetriever(store.Memories, memory.DeterministicEmbedder{})
	promptBuilder := agent.NewPromptBuilder(defaultSystemPrompt, retriever, skillMgr, 0)

	rpcRouter := gateway.NewRPCRouter()
	hub := gateway.NewHub(rpcRouter, logger)

	dispatcherCfg := agent.DefaultConfig()
	dispatcherCfg.MaxToolIterations = cfg.Tools.Execution.MaxIterations
	dispatcherCfg.ProviderTimeout = cfg.Tools.Execution.Timeout
	dispatcherCfg.ProviderRetrySchedule = cfg.Tools.Execution.RetrySchedule
	dispatcher := agent.NewDispatcher(provider, executor, sessionMgr, skillMgr,
		skills.RegistryResolver{Registry: registry}, skills.NewBinaryProber(), promptBuilder,
		hub, channelRegistry, dispatcherCfg)
	dispatcher.UseSettingsSource(settingsStore)

	supervisor := agent.NewSupervisor(dispatcher, logger)
	status.supervisor = supervisor
	bridge := &agent.SessionBridge{Sessions: sessionMgr, Supervisor: supervisor}

	registerRPCMethods(rpcRouter, supervisor, skillMgr, registry)

	if cfg.Channels.Discord.Enabled {
		adapter, err := discord.NewAdapter(discord.Config{
			Token:     cfg.Channels.Discord.BotToken,
			RateLimit: cfg.Channels.Discord.RateLimit,
			RateBurst: cfg.Channels.Discord.RateBurst,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("build discord adapter: %w", err)
		}
		channelRegistry.Register(adapter)
	}
	if cfg.Channels.Slack.Enabled {
		adapter, err := slack.NewAdapter(slack.Config{
			BotToken:  cfg.Channels.Slack.BotToken,
			AppToken:  cfg.Channels.Slack.AppToken,
			RateLimit: cfg.Channels.Slack.RateLimit,
			RateBurst: cfg.Channels.Slack.RateBurst,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("build slack adapter: %w", err)
		}
		channelRegistry.Register(adapter)
	}
	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(telegram.Config{
			Token:     cfg.Channels.Telegram.BotToken,
			RateLimit: cfg.Channels.Telegram.RateLimit,
			RateBurst: cfg.Channels.Telegram.RateBurst,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("build telegram adapter: %w", err)
		}
		channelRegistry.Register(adapter)
	}

	ingress := channels.NewIngress(identityResolver, bridge, logger)
	channelRegistry.OnInbound(ingress.Handle)

	if err := channelRegistry.StartAll(ctx); err != nil {
		return fmt.Errorf("start channel adapters: %w", err)
	}

	auth := gateway.NewStaticTokenAuth(cfg.Auth.SecretKey)
	gwServer := gateway.NewServer(hub, auth, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GatewayPort),
		Handler: gwServer,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("gateway server: %w", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Warn("gateway shutdown error", "error", err)
	}
	if err := channelRegistry.StopAll(drainCtx); err != nil {
		logger.Warn("channel shutdown error", "error", err)
	}
	supervisor.Shutdown()

	return nil
}

// registerRPCMethods binds the operator-visible read/control surface
// (§4.9) onto rpc: session.cancel, skills.list, skills.reload, tools.list.
func registerRPCMethods(rpc *gateway.RPCRouter, supervisor *agent.Supervisor, skillMgr *skills.Manager, registry *tools.Registry) {
	rpc.Register("session.cancel", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		if req.SessionID == "" {
			return nil, fmt.Errorf("session_id is required")
		}
		supervisor.Cancel(req.SessionID)
		return map[string]any{"cancelled": req.SessionID}, nil
	})

	rpc.Register("skills.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return skillMgr.Index(), nil
	})

	rpc.Register("skills.reload", func(ctx context.Context, params json.RawMessage) (any, error) {
		if err := skillMgr.Reload(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"skills": len(skillMgr.List())}, nil
	})

	rpc.Register("tools.list", func(ctx context.Context, params json.RawMessage) (any, error) {
		return registry.List(), nil
	})
}
