package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse/internal/audit"
	brokerhandler "gatehouse/internal/broker/handler"
	brokermetrics "gatehouse/internal/broker/metrics"
	"gatehouse/internal/broker/redirect"
	brokerservice "gatehouse/internal/broker/service"
	sessionstore "gatehouse/internal/broker/store/session"
	"gatehouse/internal/broker/workers/cleanup"
	dirhandler "gatehouse/internal/directory/handler"
	dirmetrics "gatehouse/internal/directory/metrics"
	dirservice "gatehouse/internal/directory/service"
	appstore "gatehouse/internal/directory/store/application"
	membershipstore "gatehouse/internal/directory/store/membership"
	profilestore "gatehouse/internal/directory/store/profile"
	tierstore "gatehouse/internal/directory/store/tier"
	"gatehouse/internal/identity"
	"gatehouse/internal/identity/local"
	"gatehouse/internal/identity/remote"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/platform/health"
	"gatehouse/internal/platform/kafka/producer"
	"gatehouse/internal/platform/logger"
	platformredis "gatehouse/internal/platform/redis"
	httptransport "gatehouse/internal/transport/http"
)

// main wires the configured backends into the directory and broker
// services, mounts the HTTP surface, and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New()

	log.Info("initializing gatehouse",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"session_store_backend", cfg.SessionStoreBackend,
		"identity_mode", cfg.IdentityMode,
	)

	healthHandler := health.New(cfg.Environment)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	auditPublisher, closeAudit, err := buildAuditPublisher(cfg, log)
	if err != nil {
		log.Error("audit pipeline setup failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()

	identityProvider, err := buildIdentityProvider(cfg)
	if err != nil {
		log.Error("identity provider setup failed", "error", err)
		os.Exit(1)
	}

	var (
		apps        dirservice.ApplicationStore
		appFinder   redirect.ApplicationFinder
		tiers       dirservice.TierStore
		memberships dirservice.MembershipStore
		profiles    dirservice.ProfileStore
	)
	if cfg.StoreBackend == config.StorePostgres {
		appPg := appstore.NewPostgres(pool.DB())
		apps, appFinder = appPg, appPg
		tiers = tierstore.NewPostgres(pool.DB())
		memberships = membershipstore.NewPostgres(pool.DB())
		profiles = profilestore.NewPostgres(pool.DB())
	} else {
		appMem := appstore.NewInMemory()
		apps, appFinder = appMem, appMem
		tiers = tierstore.NewInMemory()
		memberships = membershipstore.NewInMemory()
		profiles = profilestore.NewInMemory()
	}

	var sessions brokerservice.SessionStore
	switch cfg.SessionStoreBackend {
	case config.StorePostgres:
		sessions = sessionstore.NewPostgres(pool.DB())
	case config.SessionStoreRedis:
		sessions = sessionstore.NewRedis(redisClient.Client)
	default:
		sessions = sessionstore.NewInMemory()
	}

	directory := dirservice.New(apps, tiers, memberships, profiles,
		dirservice.WithLogger(log),
		dirservice.WithAuditPublisher(auditPublisher),
		dirservice.WithMetrics(dirmetrics.New()),
	)

	validator := redirect.New(appFinder,
		redirect.WithLogger(log),
		redirect.WithAuditPublisher(auditPublisher),
	)

	broker, err := brokerservice.New(sessions, validator, directory, identityProvider,
		brokerservice.Config{PublicURL: cfg.PublicBaseURL},
		brokerservice.WithLogger(log),
		brokerservice.WithAuditPublisher(auditPublisher),
		brokerservice.WithMetrics(brokermetrics.New()),
	)
	if err != nil {
		log.Error("broker service setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := cleanup.New(sessions,
		cleanup.WithInterval(cfg.SessionCleanupInterval),
		cleanup.WithLogger(log),
	)
	go sweeper.Start(ctx)

	router := httptransport.NewRouter(httptransport.Deps{
		Broker:   brokerhandler.New(broker, log),
		Admin:    dirhandler.New(directory, log),
		Verifier: identityProvider,
		Authz:    directory,
		Health:   healthHandler,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildAuditPublisher always records to memory for the admin read path and
// tees to Kafka when brokers are configured.
func buildAuditPublisher(cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	memory := audit.NewInMemoryStore()

	var store audit.Store = memory
	closeFn := func() {}
	if cfg.AuditKafkaBrokers != "" {
		kafkaProducer, err := producer.New(producer.Config{Brokers: cfg.AuditKafkaBrokers}, log)
		if err != nil {
			return nil, nil, err
		}
		store = audit.NewTeeStore(memory, audit.NewKafkaStore(kafkaProducer, cfg.AuditKafkaTopic))
		closeFn = kafkaProducer.Close
	}

	publisher := audit.NewPublisher(store, audit.WithPublisherLogger(log))
	return publisher, func() {
		publisher.Close()
		closeFn()
	}, nil
}

func buildIdentityProvider(cfg config.Server) (identity.Provider, error) {
	if cfg.IdentityMode == config.IdentityRemote {
		return remote.New(cfg.IdentityBaseURL, cfg.IdentityAPIKey)
	}
	return local.New(cfg.JWTSigningKey)
}
