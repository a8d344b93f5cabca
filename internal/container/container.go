package container

import (
	"context"
	"fmt"

	"pollengine/internal/config"
	"pollengine/internal/engine"
	"pollengine/internal/handler"
	"pollengine/internal/middleware"
	"pollengine/internal/notify"
	"pollengine/internal/repository"
	"pollengine/internal/service"
	"pollengine/pkg/database"
	"pollengine/pkg/logger"
	"pollengine/pkg/redis"
)

// Container wires every component together and owns their lifecycles.
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.PostgresDB
	Redis    *redis.Client
	Notifier notify.Notifier

	Auth *middleware.Authenticator

	PollHandler    *handler.PollHandler
	VotingHandler  *handler.VotingHandler
	ResultsHandler *handler.ResultsHandler
	AuditHandler   *handler.AuditHandler
	HealthHandler  *handler.HealthHandler
}

// New builds the full dependency graph.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.KafkaEnabled() {
		notifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log.Logger)
	}

	clock := engine.SystemClock{}

	pollRepo := repository.NewPollRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cacheSvc := service.NewCacheService(redisClient, log.Logger)
	auditSvc := service.NewAuditService(auditRepo, clock, log.Logger)
	pollSvc := service.NewPollService(pollRepo, auditSvc, cacheSvc, notifier, clock, log.Logger)
	votingSvc := service.NewVotingService(pollSvc, voteRepo, auditSvc, cacheSvc, notifier, clock, log.Logger)
	resultsSvc := service.NewResultsService(pollSvc, voteRepo, auditSvc, cacheSvc, clock, log.Logger)

	return &Container{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Redis:    redisClient,
		Notifier: notifier,

		Auth: middleware.NewAuthenticator(cfg.JWTSecret),

		PollHandler:    handler.NewPollHandler(pollSvc, log.Logger),
		VotingHandler:  handler.NewVotingHandler(votingSvc, log.Logger),
		ResultsHandler: handler.NewResultsHandler(resultsSvc, log.Logger),
		AuditHandler:   handler.NewAuditHandler(pollSvc, auditSvc, log.Logger),
		HealthHandler:  handler.NewHealthHandler(db, redisClient, log.Logger),
	}, nil
}

// Close releases all held resources in reverse dependency order.
func (c *Container) Close() {
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			c.Logger.Warn("failed to close notifier")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	_ = c.Logger.Sync()
}
