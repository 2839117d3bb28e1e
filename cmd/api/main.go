package main

import (
	"context"
	"log"

	"livepoll/config"
	"livepoll/internal/events"
	"livepoll/internal/handler"
	"livepoll/internal/outbox"
	"livepoll/internal/proxy"
	"livepoll/internal/redis"
	"livepoll/internal/repository"
	"livepoll/internal/server"
	"livepoll/internal/services"
	"livepoll/internal/websocket"
	"livepoll/pkg/database"
	"livepoll/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	// Database and schema
	database.Connect(cfg)
	defer database.Close()

	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}
	if err := repository.InitSchema(database.DB); err != nil {
		log.Fatalf("Failed to apply schema migrations: %v", err)
	}

	// Redis
	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	defer redis.Close()

	redisClient := redis.GetClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redis.Ping(ctx, redisClient); err != nil {
		l.Warnf("Redis unreachable at startup: %s", err)
	}

	// Repositories, policy proxy, services
	repos := repository.NewRepositories(database.DB)
	eventPublisher := services.NewEventPublisher(repos.Events)
	access := proxy.NewAccessControl(repos.Polls)

	authService := services.NewAuthService(repos.Users, eventPublisher, cfg)
	pollService := services.NewPollService(database.DB, repos.Polls, access, eventPublisher)
	voteService := services.NewVoteService(database.DB, repos.Polls, access, eventPublisher)

	// Live feed: hub fed by the Redis bridge
	hub := websocket.NewHub()
	go hub.Run(ctx)

	subscriber := redis.NewSubscriber(redisClient)
	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		patterns := []string{
			events.ChannelPolls,
			events.ChannelPrefixPoll + "*",
			events.ChannelPrefixUser + "*",
		}
		if err := bridge.Run(ctx, patterns); err != nil && ctx.Err() == nil {
			l.Errorf("Redis bridge stopped: %s", err)
		}
	}()

	// Outbox relay: DB events -> Redis pub/sub
	publisher := redis.NewPublisher(redisClient)
	runner := outbox.NewRunner(outbox.DefaultProcessor(repos.Events, publisher))
	runner.Start(ctx)

	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	// HTTP server
	srv := server.New(cfg, l)
	authorizer := websocket.NewChannelAuthorizer(access, repos.Polls)
	handlers := &server.Handlers{
		Auth: handler.NewAuthHandler(authService),
		Poll: handler.NewPollHandler(pollService, voteService),
		WS:   websocket.NewHandler(authService, hub, authorizer, cfg.Origins()),
	}
	srv.SetupRoutes(handlers, authService, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
