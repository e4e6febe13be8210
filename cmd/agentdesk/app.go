package main

import (
	"context"
	"errors"
	"fmt"

	agentctx "github.com/BaSui01/agentdesk/agent/context"
	"github.com/BaSui01/agentdesk/agent/persistence"
	"github.com/BaSui01/agentdesk/agent/session"
	"github.com/BaSui01/agentdesk/config"
	"github.com/BaSui01/agentdesk/internal/metrics"
	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/llm/moderation"
	"github.com/BaSui01/agentdesk/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 运行时装配（serve 与 chat 共用）
// =============================================================================

// App 持有一次运行所需的全部组件
type App struct {
	Config     *config.Config
	Provider   llm.Provider
	Moderation moderation.ModerationProvider
	Store      persistence.SnapshotStore
	Catalog    *config.AgentCatalog
	Manager    *session.Manager
	Watcher    *config.FileWatcher

	logger *zap.Logger
}

// NewApp 按配置装配生成后端、快照存储、Agent 目录与会话管理器。
// collector 为 nil 时不记录指标。
func NewApp(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, logger: logger}

	var provider llm.Provider = newProvider(cfg.LLM, logger)
	if collector != nil {
		provider = collector.InstrumentProvider(provider)
	}
	app.Provider = provider
	app.Moderation = newModerationProvider(cfg.Moderation, cfg.LLM)

	store, err := persistence.NewSnapshotStore(cfg.Persistence.StoreConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	app.Store = store

	catalog, err := config.NewAgentCatalog(cfg.Agents, cfg.Session.TriageAgent, logger)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Catalog = catalog

	opts := session.Options{
		Config:     sessionConfig(cfg),
		Agents:     catalog.Agents(),
		Rules:      catalog.Rules(),
		Provider:   provider,
		Moderation: app.Moderation,
		Logger:     logger,
	}
	if collector != nil {
		opts.Observer = collector
	}
	manager, err := session.NewManager(ctx, opts, store)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Manager = manager
	catalog.SetApplier(manager.Rebuild)

	logger.Info("runtime assembled",
		zap.String("provider", provider.Name()),
		zap.Int("agents", len(opts.Agents)),
		zap.Int("guardrail_rules", len(opts.Rules)),
		zap.String("persistence", cfg.Persistence.Type),
		zap.Bool("moderation", app.Moderation != nil))
	return app, nil
}

// Watch 在配置开启时监听 Agent 与安全规则文件
func (a *App) Watch(ctx context.Context) error {
	if !a.Config.Agents.Watch {
		return nil
	}
	var opts []config.WatcherOption
	if a.Config.Agents.WatchDebounce > 0 {
		opts = append(opts, config.WithDebounceDelay(a.Config.Agents.WatchDebounce))
	}
	w, err := config.WatchCatalog(ctx, a.Catalog, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("watch agent config: %w", err)
	}
	a.Watcher = w
	return nil
}

// Close 依次停止监听、关闭会话（排空进行中的轮次）并释放存储
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Manager != nil {
		if err := a.Manager.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newProvider(cfg config.LLMConfig, logger *zap.Logger) *openaicompat.Provider {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.DefaultModel,
		Timeout:      cfg.Timeout,
	}, logger)
}

// newModerationProvider 未开启审核时返回 nil；未单独配置密钥时沿用 LLM 密钥
func newModerationProvider(cfg config.ModerationConfig, llmCfg config.LLMConfig) moderation.ModerationProvider {
	if !cfg.Enabled {
		return nil
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = llmCfg.APIKey
	}
	return moderation.NewOpenAIProvider(moderation.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := cfg.Session
	return session.Config{
		TriageAgent: sc.TriageAgent,
		Context: agentctx.Config{
			Window:       sc.ContextWindow,
			NarrowWindow: sc.NarrowWindow,
			Truncate:     sc.Truncate,
		},
		ContinuityWindow:     sc.ContinuityWindow,
		OrchestrationTimeout: sc.OrchestrationTimeout,
		DefaultModel:         cfg.LLM.DefaultModel,
		ClassifierModel:      cfg.LLM.ClassifierModel,
		SemanticTimeout:      sc.SemanticTimeout,
		ModerationTimeout:    cfg.Moderation.Timeout,
		Routing:              cfg.Routing,
	}
}
