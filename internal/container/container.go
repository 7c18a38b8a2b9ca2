package container

import (
	"context"
	"errors"
	"fmt"

	"apgrhost/internal/config"
	"apgrhost/internal/middleware"
	"apgrhost/internal/repository"
	"apgrhost/internal/service"
	"apgrhost/internal/service/geolocation"
	"apgrhost/internal/service/notifier"
	"apgrhost/pkg/database"
	"apgrhost/pkg/logger"
	"apgrhost/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *logger.Logger
	RedisClient    *redis.Client
	DB             *database.PostgresDB
	Store          repository.VisitorStore
	Geo            *geolocation.Chain
	Notifier       notifier.Notifier
	Limiter        middleware.Limiter
	VisitorService service.VisitorService

	closers []func() error
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	// Redis is optional unless it is the store backend
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			if cfg.StoreBackend == config.StoreRedis {
				return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
			}
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without it")
		} else {
			c.RedisClient = client
			c.closers = append(c.closers, client.Close)
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without it")
	}

	if err := c.initStore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initGeo(); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initNotifier(); err != nil {
		c.Close()
		return nil, err
	}

	classifierConfig := service.DefaultClassifierConfig()
	classifierConfig.MismatchConfidence = cfg.MismatchConfidence
	if err := classifierConfig.Validate(); err != nil {
		c.Close()
		return nil, err
	}

	scoringConfig, err := service.LoadScoringConfig(cfg.ScoringConfigPath)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.VisitorService = service.NewVisitorService(
		c.Store,
		service.NewClassifier(classifierConfig, log),
		service.NewScorer(scoringConfig),
		c.Geo,
		c.Notifier,
		service.VisitorServiceConfig{
			SkipBots:      cfg.SkipBots,
			StoreTimeout:  cfg.StoreTimeout,
			NotifyTimeout: cfg.NotifyTimeout,
		},
		log,
	)

	if cfg.RateLimitPerHour > 0 {
		if c.RedisClient != nil {
			c.Limiter = middleware.NewRedisLimiter(c.RedisClient, cfg.RateLimitPerHour)
		} else {
			local := middleware.NewLocalLimiter(cfg.RateLimitPerHour)
			c.closers = append(c.closers, local.Close)
			c.Limiter = local
		}
	}

	log.WithFields(map[string]interface{}{
		"store":      cfg.StoreBackend,
		"redis":      c.HasRedis(),
		"chats":      len(cfg.ChatIDs),
		"rate_limit": cfg.RateLimitPerHour,
	}).Info("Container initialized")

	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	cfg := c.Config

	switch cfg.StoreBackend {
	case config.StoreMemory:
		c.Store = repository.NewMemoryStore()
	case config.StoreFile:
		store, err := repository.NewFileStore(cfg.VisitorsFile)
		if err != nil {
			return err
		}
		c.Store = store
	case config.StoreRedis:
		if c.RedisClient == nil {
			return errors.New("redis store requires REDIS_URL")
		}
		c.Store = repository.NewRedisStore(c.RedisClient)
	case config.StorePostgres:
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		c.closers = append(c.closers, func() error { db.Close(); return nil })
		if err := database.EnsureSchema(ctx, db.Pool); err != nil {
			return err
		}
		c.Store = repository.NewPostgresStore(db)
	case config.StoreMongo:
		store, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		c.Store = store
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	c.closers = append(c.closers, c.Store.Close)
	return nil
}

func (c *Container) initGeo() error {
	cfg := c.Config
	var providers []geolocation.Provider

	if cfg.GeoIPCityDB != "" {
		mm, err := geolocation.NewMaxMindProvider(cfg.GeoIPCityDB, cfg.GeoIPASNDB)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, mm.Close)
		providers = append(providers, mm)
	}

	providers = append(providers,
		geolocation.NewIPAPIProvider(cfg.IPAPIURL),
		geolocation.NewIPInfoProvider(cfg.IPInfoURL, cfg.IPInfoToken),
		geolocation.NewIPWhoisProvider(cfg.IPWhoisURL),
	)

	var cache geolocation.Cache
	if c.RedisClient != nil {
		cache = geolocation.NewRedisCache(c.RedisClient, cfg.GeoCacheTTL)
	} else {
		cache = geolocation.NewMemoryCache(cfg.GeoCacheTTL)
	}

	c.Geo = geolocation.NewChain(providers, cache, c.Logger)
	return nil
}

func (c *Container) initNotifier() error {
	cfg := c.Config
	if cfg.TelegramToken == "" || len(cfg.ChatIDs) == 0 {
		c.Logger.Warn("Telegram not configured, visit reports go to the log")
		c.Notifier = notifier.NewLogNotifier(c.Logger)
		return nil
	}

	tg, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramAPIEndpoint, cfg.ChatIDs, cfg.NotifyTimeout, c.Logger)
	if err != nil {
		// A bad token or unreachable Bot API must not keep the collector down
		c.Logger.WithError(err).Error("Telegram notifier unavailable, visit reports go to the log")
		c.Notifier = notifier.NewLogNotifier(c.Logger)
		return nil
	}
	c.Notifier = tg
	return nil
}

// Health checks every backing service the container owns
func (c *Container) Health(ctx context.Context) map[string]error {
	checks := map[string]error{}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Health(ctx)
	}
	if c.DB != nil {
		checks["postgres"] = c.DB.Health(ctx)
	}
	if c.Store != nil {
		_, err := c.Store.Count(ctx)
		checks["store"] = err
	}
	return checks
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}
