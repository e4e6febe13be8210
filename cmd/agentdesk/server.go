package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/agentdesk/agent/persistence"
	"github.com/BaSui01/agentdesk/api/handlers"
	"github.com/BaSui01/agentdesk/config"
	"github.com/BaSui01/agentdesk/internal/metrics"
	"github.com/BaSui01/agentdesk/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dbStatsInterval 连接池指标的采样周期
const dbStatsInterval = 15 * time.Second

// skipAuthPaths 不需要认证的探活与版本端点
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 AgentDesk 的 HTTP 服务，API 与 Metrics 分端口
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	app       *App
	collector *metrics.Collector
	registry  *prometheus.Registry

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 装配运行时并构建两个 HTTP 服务，不监听端口
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollectorWithRegisterer("agentdesk", registry, logger)

	app, err := NewApp(ctx, cfg, collector, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "server")),
		app:       app,
		collector: collector,
		registry:  registry,
	}
	s.httpManager = server.NewManager("api", s.buildHandler(ctx), s.apiServerConfig(), logger)
	s.metricsManager = server.NewManager("metrics", s.buildMetricsHandler(), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	return s, nil
}

// Run 启动全部服务并阻塞到 ctx 结束，之后关闭会话与存储
func (s *Server) Run(ctx context.Context) error {
	if err := s.app.Watch(ctx); err != nil {
		s.logger.Warn("agent config watcher disabled", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	if s.cfg.Server.MetricsPort > 0 {
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}
	g.Go(func() error {
		s.reportDBStats(gctx)
		return nil
	})

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("agent_watch", s.cfg.Agents.Watch),
		zap.String("auth", describeAuth(s.cfg.Server.APIKeys, s.cfg.Server.JWTSecret)))

	runErr := g.Wait()

	s.logger.Info("Starting graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.app.Close(shutdownCtx); err != nil {
		s.logger.Error("runtime shutdown error", zap.Error(err))
	}
	s.logger.Info("Graceful shutdown completed")
	return runErr
}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

func (s *Server) buildHandler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewCheck("snapshot_store", s.app.Store.Ping))
	health.RegisterCheck(handlers.NewProviderCheck(s.app.Provider))
	health.Register(mux, Version, BuildTime, GitCommit)

	handlers.NewChatHandler(s.app.Manager, s.logger).Register(mux)
	handlers.NewAgentHandler(s.app.Catalog, s.logger).Register(mux)
	handlers.NewStatusHandler(s.app.Manager, s.logger).Register(mux)

	sc := s.cfg.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(sc.AllowedOrigins),
	}
	if sc.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitBurst, s.logger))
	}
	if len(sc.APIKeys) > 0 || sc.JWTSecret != "" {
		chain = append(chain, Authenticate(sc.APIKeys, sc.JWTSecret, skipAuthPaths, s.logger))
	}
	return Chain(mux, chain...)
}

func (s *Server) buildMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

func (s *Server) apiServerConfig() server.Config {
	sc := s.cfg.Server
	return server.Config{
		Addr:            fmt.Sprintf(":%d", sc.HTTPPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     2 * sc.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: sc.ShutdownTimeout,
	}
}

// reportDBStats 周期性上报 SQL 快照存储的连接池状态，其他后端直接返回
func (s *Server) reportDBStats(ctx context.Context) {
	store, ok := s.app.Store.(*persistence.SQLSnapshotStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		stats := store.Stats()
		s.collector.RecordDBConnections(s.cfg.Persistence.SQLDriver, stats.OpenConnections, stats.Idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
