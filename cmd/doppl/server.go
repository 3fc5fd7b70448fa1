package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/doppl/api/handlers"
	"github.com/BaSui01/doppl/config"
	"github.com/BaSui01/doppl/internal/metrics"
	"github.com/BaSui01/doppl/internal/ratelimit"
	"github.com/BaSui01/doppl/internal/server"
	"github.com/BaSui01/doppl/internal/telemetry"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/gateway"
)

const (
	routeGenerate       = "/api/v1/vton/generate"
	routeTestConnection = "/api/v1/vton/test-connection"
)

// 不需要认证的探针路径
var publicPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Doppl 的主服务器
type Server struct {
	store      *config.Store
	configPath string
	logger     *zap.Logger
	telemetry  *telemetry.Providers

	registry  *prometheus.Registry
	collector *metrics.Collector
	gateway   *liveGateway
	redis     *ratelimit.Redis

	healthHandler *handlers.HealthHandler
	vtonHandler   *handlers.VTONHandler

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建服务器。configPath 非空时 Run 会监听文件变化并热更新网关配置。
func NewServer(cfg *config.Config, loader *config.Loader, configPath string, logger *zap.Logger, tel *telemetry.Providers) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:      config.NewStore(cfg, loader, logger),
		configPath: configPath,
		logger:     logger,
		telemetry:  tel,
		registry:   prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("doppl", logger, s.registry)
	s.collector.SetModelAllowList(metricModels(cfg)...)
	s.gateway = &liveGateway{}
	s.gateway.swap(s.newGateway(cfg))

	s.store.OnReload(func(_, next *config.Config) {
		s.collector.SetModelAllowList(metricModels(next)...)
		s.gateway.swap(s.newGateway(next))
		s.logger.Info("gateway rebuilt from reloaded configuration",
			zap.Duration("timeout", next.Gateway.Timeout),
			zap.String("default_language", string(next.Gateway.Language())))
	})

	if cfg.Redis.Enabled() && cfg.Server.RateLimitRPS > 0 {
		limit, window := ratelimit.Window(float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
		r, err := ratelimit.NewRedis(cfg.Redis, limit, window, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
		} else {
			s.redis = r
		}
	}

	s.initHandlers()
	return s
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) newGateway(cfg *config.Config) *gateway.Gateway {
	return gateway.NewDefault(gateway.Config{
		DefaultLanguage: cfg.Gateway.Language(),
		Timeout:         cfg.Gateway.Timeout,
		Referer:         cfg.Custom.Referer,
		Title:           cfg.Custom.Title,
		MaxTokens:       cfg.Custom.MaxTokens,
	}, s.logger, gateway.WithObserver(s.collector))
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewFuncCheck("config", func(ctx context.Context) error {
		return s.store.Current().Validate()
	}))

	// 限流在 Redis 故障时放行，所以 redis 不是关键检查
	if s.redis != nil {
		s.healthHandler.RegisterOptionalCheck(handlers.NewFuncCheck("redis", s.redis.Ping))
	}
	s.healthHandler.SetProviderStatus(func() map[string]bool {
		cfg := s.store.Current()
		return map[string]bool{
			string(vton.ProviderGoogle): strings.TrimSpace(cfg.Google.APIKey) != "",
			string(vton.ProviderCustom): cfg.Custom.Provider().IsComplete(),
		}
	})

	cfg := s.store.Current()
	s.vtonHandler = handlers.NewVTONHandler(s.gateway, s.providerDefaults, cfg.Server.MaxBodyBytes, s.logger)
}

// metricModels 服务端已知的模型，其余模型名在指标中记为 other
func metricModels(cfg *config.Config) []string {
	models := []string{vton.DefaultGoogleModel, cfg.Google.Model, cfg.Custom.Model}
	return append(models, cfg.Gateway.MetricModels...)
}

// providerDefaults 每次请求读取最新配置
func (s *Server) providerDefaults() handlers.ProviderDefaults {
	cfg := s.store.Current()
	return handlers.ProviderDefaults{
		Provider: vton.ProviderKind(cfg.Gateway.DefaultProvider),
		Language: cfg.Gateway.Language(),
		Google:   cfg.Google.Provider(),
		Custom:   cfg.Custom.Provider(),
	}
}

// Handler 构建路由与中间件链。ctx 结束时限流器的后台清理随之退出。
func (s *Server) Handler(ctx context.Context) http.Handler {
	cfg := s.store.Current().Server

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc(routeGenerate, s.vtonHandler.HandleGenerate)
	mux.HandleFunc(routeTestConnection, s.vtonHandler.HandleTestConnection)

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(cfg.CORSAllowedOrigins),
	}
	if cfg.RateLimitRPS > 0 {
		var limiter ratelimit.Limiter = ratelimit.NewLocal(ctx, float64(cfg.RateLimitRPS), cfg.RateLimitBurst)
		if s.redis != nil {
			limiter = s.redis
		}
		chain = append(chain, RateLimiter(limiter, s.logger))
	}
	if len(cfg.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(cfg.APIKeys, publicPaths, cfg.AllowQueryAPIKey, s.logger))
	}
	if cfg.JWTSecret != "" {
		chain = append(chain, JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, publicPaths, s.logger))
	}
	return Chain(mux, chain...)
}

// MetricsHandler 暴露本服务器的 Prometheus Registry
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 API 与 Metrics 服务器并阻塞到 ctx 结束，随后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	cfg := s.store.Current().Server

	if s.configPath != "" {
		if err := s.store.Watch(ctx); err != nil {
			s.logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer func() {
				if err := s.store.Stop(); err != nil {
					s.logger.Warn("config watcher stop error", zap.Error(err))
				}
			}()
		}
	}

	s.httpManager = server.NewManager(s.Handler(ctx), server.Config{
		Name:              "api",
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.ReadTimeout,
		MaxHeaderBytes:    1 << 20, // 1 MB
		ShutdownTimeout:   cfg.ShutdownTimeout,
		TLSCertFile:       cfg.TLSCertFile,
		TLSKeyFile:        cfg.TLSKeyFile,
	}, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })

	if cfg.MetricsPort > 0 {
		s.metricsManager = server.NewManager(s.MetricsHandler(), server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", cfg.MetricsPort),
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.ReadTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, s.logger)
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}

	s.logger.Info("Doppl servers starting",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.Bool("tls", cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
		zap.Bool("api_key_auth", len(cfg.APIKeys) > 0),
		zap.Bool("jwt_auth", cfg.JWTSecret != ""),
		zap.Bool("distributed_rate_limit", s.redis != nil))

	err := g.Wait()

	if s.redis != nil {
		if rErr := s.redis.Close(); rErr != nil {
			s.logger.Warn("redis close error", zap.Error(rErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if tErr := s.telemetry.Shutdown(shutdownCtx); tErr != nil {
		s.logger.Warn("telemetry shutdown error", zap.Error(tErr))
	}

	s.logger.Info("Graceful shutdown completed")
	return err
}

// =============================================================================
// 🔁 可热替换的网关
// =============================================================================

// liveGateway 在配置重载时原子替换底层网关，进行中的请求继续使用旧实例
type liveGateway struct {
	current atomic.Pointer[gateway.Gateway]
}

func (g *liveGateway) swap(gw *gateway.Gateway) { g.current.Store(gw) }

func (g *liveGateway) Generate(ctx context.Context, req *vton.GenerationRequest) (*vton.Result, error) {
	return g.current.Load().Generate(ctx, req)
}

func (g *liveGateway) TestCustomConnection(ctx context.Context, cfg vton.CustomConfig) vton.ConnectionTestResult {
	return g.current.Load().TestCustomConnection(ctx, cfg)
}
