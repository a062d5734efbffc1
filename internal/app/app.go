// Package app wires configuration, adapters, the dream pipeline and the
// HTTP router into a runnable application.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamrecorder/server/internal/adapter/outbound/llm"
	redisadapter "github.com/dreamrecorder/server/internal/adapter/outbound/redis"
	"github.com/dreamrecorder/server/internal/adapter/outbound/videogen"
	"github.com/dreamrecorder/server/internal/module/dream"
	"github.com/dreamrecorder/server/internal/shared/config"
	"github.com/dreamrecorder/server/internal/shared/logger"
	"github.com/dreamrecorder/server/internal/utils/metrics"
	"github.com/dreamrecorder/server/internal/utils/middleware"
)

// App holds the wired application.
type App struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	redis  *goredis.Client

	bus     *dream.Bus
	handler *dream.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{config: cfg, logger: log}

	m := metrics.New("")
	bus := dream.NewBus(log.Named("bus"))
	app.bus = bus

	llmClient := llm.NewClient(&cfg.Enhancer, log.Named("llm"))
	videoClient := videogen.NewClient(&cfg.Generator, log.Named("videogen"))

	enhancer := dream.NewEnhancer(&dream.EnhancerConfig{
		Client:             llmClient,
		Bus:                bus,
		SystemPrompt:       cfg.Enhancer.SystemPrompt,
		SystemPromptExtend: cfg.Enhancer.SystemPromptExtend,
		Logger:             log.Named("enhancer"),
	})
	orchestrator := dream.NewOrchestrator(&dream.OrchestratorConfig{
		Backend: videoClient,
		Bus:     bus,
		Settings: dream.GenerationSettings{
			PollInterval:    cfg.Generator.PollInterval,
			MaxPollAttempts: cfg.Generator.MaxPollAttempts,
		},
		Metrics: m,
		Logger:  log.Named("orchestrator"),
	})
	service := dream.NewService(&dream.ServiceConfig{
		Enhancer:     enhancer,
		Orchestrator: orchestrator,
		Metrics:      m,
		Logger:       log.Named("pipeline"),
	})

	app.handler = dream.NewHandler(&dream.HandlerConfig{
		Service:      service,
		Enhancer:     enhancer,
		Orchestrator: orchestrator,
		Bus:          bus,
		Checks: map[string]dream.HealthChecker{
			"llm":      llmClient,
			"videogen": videoClient,
		},
		Logger: log.Named("handler"),
	})

	var limiter middleware.RateLimiter
	if cfg.RateLimit.Enabled && cfg.Redis.Address != "" {
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = redisadapter.NewRateLimiter(app.redis)
	}

	app.router = app.setupRouter(m, limiter)
	return app, nil
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases application resources.
func (a *App) Stop() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *App) setupRouter(m *metrics.Metrics, limiter middleware.RateLimiter) *gin.Engine {
	if a.config.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logging(a.logger.Named("http")),
		middleware.Recovery(a.logger.Named("http")),
		middleware.CORS(middleware.DefaultCORSConfig()),
		middleware.Metrics(m),
	)

	router.GET("/health", a.handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	var guards []gin.HandlerFunc
	if limiter != nil {
		// Only generation-starting routes consume provider credits; the
		// progress stream stays unlimited.
		guards = append(guards, middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Limit:  a.config.RateLimit.Limit,
			Window: a.config.RateLimit.Window,
		}))
	}
	a.handler.RegisterRoutes(api, guards...)

	return router
}
