// Package bootstrap assembles the assistant and its backends from config.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/cache"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/config"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/guard"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/llm"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/monitoring"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/ratelimit"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/session"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/storage"
)

// Components is everything a binary needs. Close releases the backends.
type Components struct {
	Assistant *assistant.Assistant
	Catalog   *catalog.Index
	Sessions  session.Store
	Limiter   ratelimit.Limiter
	Exchanges *storage.ExchangeRepository // nil unless audit is enabled
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Redis     *redis.Client // nil with the memory driver
	DB        *sql.DB       // nil unless audit is enabled
}

// Options tweak Build. Tests use them to swap the completion service.
type Options struct {
	LLM llm.Service
}

// LoadCatalog returns the configured dataset, or the embedded one.
func LoadCatalog(cfg *config.Config) (*catalog.Index, error) {
	if cfg.Catalog.Path != "" {
		return catalog.LoadFile(cfg.Catalog.Path)
	}
	return catalog.Default()
}

// Build wires the assistant. On error every opened backend is closed.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*Components, error) {
	c := &Components{}
	if err := c.build(ctx, cfg, logger, opts); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) error {
	var err error

	if c.Catalog, err = LoadCatalog(cfg); err != nil {
		return err
	}
	logger.Info().Int("phones", c.Catalog.Len()).Strs("brands", c.Catalog.Brands()).Msg("Catalog loaded")

	c.Registry = prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		c.Metrics = observability.NewMetrics(c.Registry)
	}

	if err = c.buildState(ctx, cfg, logger); err != nil {
		return err
	}

	service := opts.LLM
	if service == nil {
		if service, err = NewLLM(ctx, cfg, logger); err != nil {
			return err
		}
	}

	var audit *monitoring.AuditLogger
	if cfg.Audit.Enabled {
		if c.DB, err = storage.Open(ctx, cfg.Audit.Driver, cfg.Audit.DSN); err != nil {
			return domain.ConfigError("open audit database", err)
		}
		c.Exchanges = storage.NewExchangeRepository(c.DB)
		audit = monitoring.NewAuditLogger(logger.WithOperation("audit"), c.Exchanges)
		logger.Info().Str("driver", cfg.Audit.Driver).Msg("Exchange audit log enabled")
	}

	c.Assistant, err = assistant.New(assistant.Deps{
		Catalog:  c.Catalog,
		Sessions: c.Sessions,
		Limiter:  c.Limiter,
		Guard:    guard.New(service, cfg.Guard.Timeout, logger.WithOperation("guard"), c.Metrics),
		LLM:      service,
		Audit:    audit,
		Metrics:  c.Metrics,
		Logger:   logger,
	})
	return err
}

func (c *Components) buildState(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	limits := ratelimit.Config{Limit: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}

	if cfg.Session.Driver != "redis" {
		c.Sessions = session.NewMemoryStore(
			session.WithMemoryTTL(cfg.Session.TTL),
			session.WithMaxConversations(cfg.Session.MaxConversations),
		)
		c.Limiter = ratelimit.NewMemoryLimiter(limits)
		return nil
	}

	client, err := cache.Connect(ctx, cache.RedisConfig{
		URL:      cfg.Redis.URL,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return domain.ConfigError("connect to redis", err)
	}
	c.Redis = client

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = cache.DefaultPrefix
	}
	c.Sessions = session.NewRedisStore(client, session.WithTTL(cfg.Session.TTL), session.WithPrefix(prefix))
	c.Limiter = ratelimit.NewRedisLimiter(client, limits, prefix, logger.WithOperation("ratelimit"))
	logger.Info().Str("prefix", prefix).Msg("Using redis for sessions and rate limits")
	return nil
}

// NewLLM creates the configured completion service.
func NewLLM(ctx context.Context, cfg *config.Config, logger *observability.Logger) (llm.Service, error) {
	switch cfg.LLM.Provider {
	case "openrouter":
		if cfg.LLM.OpenRouterAPIKey == "" {
			return nil, domain.ConfigError("OpenRouter API key is required", nil)
		}
		opts := []llm.OpenRouterOption{
			llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, llm.WithEndpoint(cfg.LLM.BaseURL))
		}
		return llm.NewOpenRouterClient(cfg.LLM.OpenRouterAPIKey, cfg.LLM.Model, logger.WithOperation("openrouter"), opts...), nil
	default:
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:  cfg.LLM.GoogleAPIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
	}
}

// Ready checks the external backends.
func (c *Components) Ready(ctx context.Context) error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Ping(ctx).Err())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.PingContext(ctx))
	}
	return errors.Join(errs...)
}

// Close releases the redis client and audit database.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
