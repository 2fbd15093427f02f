package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fathima-sithara/teamchat/internal/api"
	"github.com/fathima-sithara/teamchat/internal/auth"
	"github.com/fathima-sithara/teamchat/internal/cache"
	"github.com/fathima-sithara/teamchat/internal/config"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/kafka"
	"github.com/fathima-sithara/teamchat/internal/logger"
	"github.com/fathima-sithara/teamchat/internal/registry"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/fathima-sithara/teamchat/internal/service"
	"github.com/fathima-sithara/teamchat/internal/storage"
	"github.com/fathima-sithara/teamchat/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and event-fanout server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Development(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo
	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	store := repository.NewMongoStore(db)

	// Redis
	rc := cache.NewClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), cfg.Redis.Prefix)
	defer rc.Close()
	if err := rc.Ping(ctx); err != nil {
		log.Warnw("redis unreachable, limiter and presence degraded", "addr", cfg.Redis.Addr, "err", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenOptions{
		Alg:            cfg.JWT.Alg,
		HSSecret:       cfg.JWT.HSSecret,
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		AccessTTL:      cfg.AccessTTL,
		RefreshTTL:     cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	deps := &service.Deps{
		Store:    store,
		Limiter:  rc,
		Presence: rc,
		Rates: service.RateLimits{
			MessagesPerMinute:     cfg.Rate.MessagesPerMinute,
			JoinAttemptsPerMinute: cfg.Rate.JoinAttemptsPerMinute,
		},
		Log: log,
	}

	var uploads api.Uploader
	if cfg.AWS.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:     cfg.AWS.Region,
			Bucket:     cfg.AWS.Bucket,
			Endpoint:   cfg.AWS.Endpoint,
			PublicRead: cfg.S3.PublicRead,
			PresignTTL: cfg.PresignTTL,
		}, log)
		if err != nil {
			return err
		}
		images := storage.NewImages(s3, cfg.S3.MaxImageBytes)
		deps.Images = images
		uploads = images
	} else {
		log.Warn("aws.bucket not set, image uploads disabled")
	}

	svc := service.New(deps)
	hub := ws.NewHub(svc, rc, ws.Options{
		MaxMessageBytes:  cfg.WS.MaxMessageBytes,
		PingInterval:     cfg.PingInterval,
		InboundPerSecond: cfg.WS.InboundPerSecond,
		InboundBurst:     cfg.WS.InboundBurst,
	}, log)

	// Events reach local sockets either through Kafka, so every node sees
	// every change, or straight from the publisher on a single node.
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		deps.Events = producer

		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.GroupID+"-"+host, log)
		defer consumer.Close()
		go consumer.Start(ctx, hub.HandleEvent)
	} else {
		deps.Events = events.PublisherFunc(func(_ context.Context, ev events.Event) error {
			hub.HandleEvent(ev)
			return nil
		})
	}

	providers := auth.Providers{}
	if p := cfg.OAuth.GitHub; p.Enabled() {
		providers[auth.ProviderGitHub] = auth.NewGitHub(p.ClientID, p.ClientSecret, cfg.App.BaseURL+"/api/auth/oauth/github/callback")
	}
	if p := cfg.OAuth.Google; p.Enabled() {
		providers[auth.ProviderGoogle] = auth.NewGoogle(p.ClientID, p.ClientSecret, cfg.App.BaseURL+"/api/auth/oauth/google/callback")
	}

	srv := api.New(api.Options{
		Services: svc,
		Auth:     service.NewAuthService(deps, tokens, rc, providers),
		Uploads:  uploads,
		Hub:      hub,
		Health: map[string]api.HealthCheck{
			"mongo": func(ctx context.Context) error { return mc.Ping(ctx, readpref.Primary()) },
			"redis": rc.Ping,
		},
		Log:            log,
		BaseURL:        cfg.App.BaseURL,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: int(cfg.S3.MaxImageBytes),
		AccessLog:      cfg.Development(),
	})

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen(":" + cfg.App.PortString())
	}()
	log.Infow("teamchat started", "port", cfg.App.Port, "kafka", cfg.Kafka.Enabled, "oauth", providers.Names())

	reg, err := registry.New(registry.Options{
		Addr:        cfg.Consul.Addr,
		ServiceName: cfg.Consul.ServiceName,
		Port:        cfg.App.Port,
	}, log.Desugar())
	if err != nil {
		log.Warnw("consul client init failed", "err", err)
	}
	if reg != nil {
		if err := reg.Register(); err != nil {
			log.Warnw("consul register failed", "err", err)
		}
		defer func() { _ = reg.Deregister() }()
	}

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info("teamchat stopped")
	return nil
}
