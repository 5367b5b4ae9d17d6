package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"loyaltycast/cache"
	"loyaltycast/config"
	"loyaltycast/database"
	"loyaltycast/events"
	"loyaltycast/gateway"
	"loyaltycast/repository"
	"loyaltycast/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// App holds the wired application components
type App struct {
	Config        *config.Config
	DB            *database.DB
	Bus           *events.Bus
	Notifications service.NotificationService
	Birthday      service.BirthdayService

	nats  *events.NATSClient
	redis *redis.Client
}

// Build connects infrastructure and wires repositories and services. Redis and NATS are
// optional; an empty URL leaves them disabled.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db

	app.Bus = events.NewBus()
	if strings.TrimSpace(cfg.NATSServers) != "" {
		nc := events.NewNATSClient(cfg.NATSServers)
		if err := nc.Connect(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		app.nats = nc
		events.NewForwarder(nc).Attach(app.Bus)
		log.WithField("servers", cfg.NATSServers).Info("Forwarding domain events to NATS")
	}

	var estimates service.EstimateCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = client
		estimates = cache.NewRedisEstimateCache(client)
		log.Info("Segment estimate cache enabled")
	}

	programs := repository.NewProgramRepository(db)
	members := repository.NewMemberRepository(db)
	logs := repository.NewCampaignLogRepository(db)
	claims := repository.NewBirthdayClaimRepository(db)
	points := repository.NewPointsRepository(db)

	walletGateway := gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayRatePerSec, &http.Client{})
	dispatcher := service.NewDispatcher(walletGateway, logs, app.Bus, service.DispatchConfigFrom(cfg))

	app.Notifications = service.NewNotificationService(
		service.NewValidator(programs),
		service.NewEvaluator(members),
		dispatcher,
		logs,
		estimates,
		cfg.SegmentEstimateTTL,
	)
	app.Birthday = service.NewBirthdayService(
		programs,
		members,
		claims,
		points,
		dispatcher,
		logs,
		app.Bus,
		service.BirthdayConfig{
			Location:   cfg.Location(),
			MaxDetails: cfg.BirthdayMaxDetails,
		},
	)

	return app, nil
}

// Close waits for pending event handlers and releases connections
func (a *App) Close() {
	if a.Bus != nil {
		a.Bus.Wait()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Error closing redis client")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
