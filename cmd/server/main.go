package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/visitrack/visitrack/config"
	appmodel "github.com/visitrack/visitrack/internal/app/model"
	apprepository "github.com/visitrack/visitrack/internal/app/repository"
	appserver "github.com/visitrack/visitrack/internal/app/server"
	appservice "github.com/visitrack/visitrack/internal/app/service"
	"github.com/visitrack/visitrack/internal/infra/logger"
	infraNATS "github.com/visitrack/visitrack/internal/infra/nats"
	infraPostgres "github.com/visitrack/visitrack/internal/infra/postgres"
	infraPrometheus "github.com/visitrack/visitrack/internal/infra/prometheus"
	infraRedis "github.com/visitrack/visitrack/internal/infra/redis"
	"github.com/visitrack/visitrack/internal/platform/facebook"
	"github.com/visitrack/visitrack/internal/platform/telegram"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.String("public_base_url", cfg.App.PublicBaseURL),
		zap.Duration("dedup_window", cfg.Tracking.DedupWindowDuration()),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Event{},
		&appmodel.Domain{},
		&appmodel.Pixel{},
		&appmodel.Funnel{},
		&appmodel.ChatBot{},
		&appmodel.VisitorBinding{},
		&appmodel.ConversionLog{},
		&appmodel.ConversationLog{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	eventRepo := apprepository.NewEventRepository(gormDB)
	domainRepo := apprepository.NewDomainRepository(gormDB)
	funnelRepo := apprepository.NewFunnelRepository(gormDB)
	botRepo := apprepository.NewBotRepository(gormDB)
	bindingRepo := apprepository.NewBindingRepository(gormDB)
	conversionLogRepo := apprepository.NewConversionLogRepository(gormDB)
	conversationLogRepo := apprepository.NewConversationLogRepository(gormDB)

	fbOpts := []facebook.Option{}
	if cfg.Facebook.GraphVersion != "" {
		fbOpts = append(fbOpts, facebook.WithGraphVersion(cfg.Facebook.GraphVersion))
	}
	if cfg.Facebook.Timeout != "" {
		if timeout, err := time.ParseDuration(cfg.Facebook.Timeout); err == nil {
			fbOpts = append(fbOpts, facebook.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
	}
	fbClient := facebook.NewClient(fbOpts...)

	tgOpts := []telegram.Option{}
	if cfg.Telegram.APIBaseURL != "" {
		tgOpts = append(tgOpts, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
	}
	tgClient := telegram.NewClient(tgOpts...)

	conversionService := appservice.NewConversionService(log, fbClient, conversionLogRepo)
	trackService := appservice.NewTrackService(appservice.TrackDeps{
		Logger:      log,
		Events:      eventRepo,
		Domains:     domainRepo,
		Forwarder:   conversionService,
		Mirror:      appservice.NewEventPublisher(js),
		DedupWindow: cfg.Tracking.DedupWindowDuration(),
		Source:      cfg.Tracking.Source,
	})
	inviteService := appservice.NewInviteService(log, funnelRepo, bindingRepo, tgClient)
	chatService := appservice.NewChatService(appservice.ChatDeps{
		Logger:        log,
		Funnels:       funnelRepo,
		Bindings:      bindingRepo,
		Conversations: conversationLogRepo,
		Chat:          tgClient,
	})

	consumer := appservice.NewEventConsumer(js, log)
	if err := consumer.Start(); err != nil {
		log.Error("Failed to start event metrics consumer", zap.Error(err))
	}

	if cfg.Telegram.ManageWebhooks {
		botService := appservice.NewBotService(log, botRepo, tgClient, cfg.App.PublicBaseURL)
		if err := botService.RegisterWebhooks(ctx); err != nil {
			log.Error("Failed to register bot webhooks", zap.Error(err))
		}
		defer func() {
			if err := botService.UnregisterWebhooks(context.Background()); err != nil {
				log.Warn("Failed to unregister bot webhooks", zap.Error(err))
			}
		}()
	}

	server := appserver.New(appserver.Dependencies{
		Logger:        log,
		Postgres:      pool,
		Redis:         redisClient,
		NATS:          natsConn,
		JetStream:     js,
		Funnels:       funnelRepo,
		Bots:          botRepo,
		Tracks:        trackService,
		Invites:       inviteService,
		Chat:          chatService,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Source:        cfg.Tracking.Source,
		DecorateHosts: cfg.Tracking.DecorateHosts,
	})

	if err := server.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
