package commands

import (
	"fmt"

	"github.com/careerforge/console/internal/abtest"
	"github.com/careerforge/console/internal/notify"
	"github.com/careerforge/console/pkg/config"
	"github.com/careerforge/console/pkg/database"
	"github.com/careerforge/console/pkg/httputil"
	"github.com/careerforge/console/pkg/logger"
	"github.com/careerforge/console/pkg/redis"
)

// app holds the wired dependencies shared by the long-running commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	repo    *abtest.Repository
	runner  *abtest.Runner
	hub     *notify.Hub
	limiter *redis.RateLimiter
}

// newApp connects storage and wires the evaluation runner.
// Redis is optional: when it is unreachable the service runs without
// cache, cross-instance locks or shared rate limits.
func newApp(cfg *config.Config) (*app, error) {
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache and locks")
		rc = redis.Disabled()
	}

	limiter := redis.NewRateLimiter(rc, redis.KeyPrefix)

	httpClient := httputil.New(cfg, log).
		WithRateLimiter(limiter, redis.WebhookRateLimit)

	webhook := notify.NewWebhookNotifier(httpClient, cfg.Webhook.URL, log)
	if !webhook.Enabled() {
		log.Info("WEBHOOK_URL not set, winner webhooks disabled")
	}

	hub := notify.NewHub(log)
	repo := abtest.NewRepository(db.Pool)

	runner := abtest.NewRunner(
		repo,
		redis.NewLocker(rc, redis.KeyPrefix),
		redis.NewCache(rc, redis.KeyPrefix),
		notify.Multi{webhook, hub},
		abtest.NewRunnerConfig(cfg.ABTest),
		log,
	)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rc,
		repo:    repo,
		runner:  runner,
		hub:     hub,
		limiter: limiter,
	}, nil
}

// Close releases storage connections
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
