package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/api"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/cache"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/chat"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/config"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/directory"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/events"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/logger"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/metrics"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/repository"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.Init()

	verifier, err := auth.NewVerifier(cfg.JWT.Secret)
	if err != nil {
		zlog.Fatalw("jwt verifier", "err", err)
	}

	mc, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	coll := mc.Database(cfg.Mongo.Database).Collection("chats")
	if err := repository.EnsureIndexes(context.Background(), coll); err != nil {
		zlog.Fatalw("mongo indexes", "err", err)
	}
	store := repository.NewMongoStore(coll)

	// Presence is optional: without redis the summaries simply omit online
	// state and the gateway skips presence tracking.
	var presence *cache.PresenceStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		presence = cache.NewPresenceStore(rdb, cfg.Redis.Prefix)
	}

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = publisher.Close() }()
	}

	var dir *directory.Client
	if cfg.Directory.BaseURL != "" {
		dir = directory.NewClient(cfg.Directory.BaseURL, cfg.DirectoryTimeout)
	}

	registry := ws.NewRegistry()

	var svcDir chat.Directory
	if dir != nil {
		svcDir = dir
	}
	var svcPresence chat.Presence
	var gwPresence ws.PresenceTracker
	if presence != nil {
		svcPresence = presence
		gwPresence = presence
	}
	var svcPublisher chat.EventPublisher
	if publisher != nil {
		svcPublisher = publisher
	}

	svc := chat.NewService(store, svcDir, svcPresence, svcPublisher, registry, zlog)
	gateway := ws.NewGateway(svc, registry, verifier, gwPresence, zlog,
		cfg.PingInterval, cfg.WriteDeadline, cfg.WS.MaxMessageSizeBytes)

	app := api.NewServer(svc, gateway, verifier, zlog)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("chat-service started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Info("chat-service stopped")
}
