package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/api"
	"github.com/MEmshousen/CodeRED2025-404NotFound/config"
	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/router"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/cron"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/storage"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/auth"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/cache"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/logger"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const accessTokenExpiry = 24 * time.Hour

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, gormStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// One client serves both the room broker and the rate limiter.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	hub := realtime.NewHub(0, log.Named("hub"))
	defer hub.Close()

	broker, err := newBroker(cfg, gormStore, redisClient, hub, log.Named("broker"))
	if err != nil {
		return err
	}
	defer broker.Close()

	go func() {
		if err := broker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("realtime broker stopped", zap.Error(err))
		}
	}()

	var blobs storage.BlobStore
	if cfg.SpacesConfigured() {
		spaces, err := storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: cfg.SpacesAccessKey,
			SecretKey: cfg.SpacesSecretKey,
			Bucket:    cfg.SpacesBucket,
			Region:    cfg.SpacesRegion,
			Endpoint:  cfg.SpacesEndpoint,
			CDNURL:    cfg.SpacesCDNURL,
		})
		if err != nil {
			return fmt.Errorf("failed to configure object storage: %w", err)
		}
		blobs = spaces
	} else {
		log.Warn("object storage not configured, material uploads disabled")
	}

	security := middleware.SecurityConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AccessLog:         true,
	}
	if redisClient != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, rate limits are per instance", zap.Error(err))
		} else {
			security.RateLimitStorage = cache.NewRedisCacheFromClient(redisClient, "ratelimit:")
		}
	}

	// Initialize Cron Manager (only if enabled)
	if cfg.CronEnabled {
		cronManager := cron.NewCronManager(store, hub, cron.Config{
			KeepAliveSchedule: cfg.KeepAliveSchedule,
			LogRetention:      cfg.CronLogRetention,
		}, log.Named("cron"))
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, streams just lose their keep-alives
			log.Warn("failed to start cron jobs", zap.Error(err))
		} else {
			defer cronManager.Stop()
		}
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		Expiry: accessTokenExpiry,
	})

	server := api.NewAPIServer(fmt.Sprintf(":%d", cfg.Port), log)
	router.SetupRoutes(server.GetEngine(), router.Dependencies{
		Store:         store,
		JWTManager:    jwtManager,
		Hub:           hub,
		Publisher:     broker,
		Blobs:         blobs,
		ServiceAPIKey: cfg.ServiceAPIKey,
		Security:      security,
		Log:           log,
	})

	return server.Run(ctx)
}

// openStore connects the configured database. gormStore is nil for the
// memory driver.
func openStore(cfg *config.Config, log *zap.Logger) (database.Storage, *database.GORMStore, error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return database.NewMemoryStore(), nil, nil
	}

	gormStore, err := database.StartGORM(cfg, log.Named("db"))
	if err != nil {
		log.Error("failed to connect to postgres, check that it is running", zap.Error(err))
		return nil, nil, err
	}
	if err := gormStore.Init(); err != nil {
		gormStore.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return gormStore, gormStore, nil
}

// newBroker builds the cross-instance transport for room events.
func newBroker(cfg *config.Config, gormStore *database.GORMStore, redisClient *redis.Client, hub *realtime.Hub, log *zap.Logger) (realtime.Broker, error) {
	switch cfg.RealtimeBroker {
	case config.BrokerRedis:
		log.Info("using redis pub/sub for course rooms")
		return realtime.NewRedisBroker(redisClient, hub, log), nil
	case config.BrokerPostgres:
		log.Info("using postgres LISTEN/NOTIFY for course rooms")
		return realtime.NewPostgresBroker(gormStore.DB(), cfg.DSN(), hub, log), nil
	case config.BrokerKafka:
		log.Info("using kafka for course rooms", zap.Strings("brokers", cfg.KafkaBrokers))
		return realtime.NewKafkaBroker(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, hub, log)
	default:
		log.Info("course rooms are local to this instance")
		return hub, nil
	}
}
