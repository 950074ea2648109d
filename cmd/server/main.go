package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"civreg/internal/audit"
	audithandler "civreg/internal/audit/handler"
	auditmemory "civreg/internal/audit/store/memory"
	auditpostgres "civreg/internal/audit/store/postgres"
	auditworker "civreg/internal/audit/worker"
	authhandler "civreg/internal/auth/handler"
	authservice "civreg/internal/auth/service"
	authstore "civreg/internal/auth/store"
	certhandler "civreg/internal/certificate/handler"
	"civreg/internal/certificate/models"
	certservice "civreg/internal/certificate/service"
	certstore "civreg/internal/certificate/store"
	"civreg/internal/jwttoken"
	notifhandler "civreg/internal/notification/handler"
	notifservice "civreg/internal/notification/service"
	notifstore "civreg/internal/notification/store"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/kafka"
	"civreg/internal/platform/logger"
	"civreg/internal/platform/metrics"
	platformredis "civreg/internal/platform/redis"
	"civreg/internal/router"
	verifyhandler "civreg/internal/verify/handler"
	verifyservice "civreg/internal/verify/service"
	txcontext "civreg/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db         *sql.DB
		runner     txcontext.Runner = txcontext.Passthrough{}
		certs      certservice.Store
		users      authstore.Store
		notifs     notifstore.Store
		auditStore audit.Store
		outbox     audit.OutboxStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to reach database", "error", err)
			return err
		}

		runner = txcontext.NewSQLRunner(db)
		certs = certstore.NewPostgres(db)
		users = authstore.NewPostgres(db)
		notifs = notifstore.NewPostgres(db)
		pg := auditpostgres.New(db)
		auditStore, outbox = pg, pg
		log.Info("using postgres storage")
	} else {
		certs = certstore.NewInMemory()
		users = authstore.NewInMemory()
		notifs = notifstore.NewInMemory()
		mem := auditmemory.New()
		auditStore, outbox = mem, mem
		log.Info("DATABASE_URL not set, using in-memory storage")
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher auditworker.Publisher = &auditworker.LogPublisher{Logger: log}
	kafkaClient, err := kafka.New(ctx, cfg.KafkaBrokers)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		publisher = kafkaClient
		log.Info("publishing audit events to kafka", "brokers", cfg.KafkaBrokers)
	}
	relay := auditworker.NewRelay(outbox, publisher, log, auditworker.WithMetrics(m))

	auditor := audit.NewPublisher(auditStore)
	issuer := jwttoken.NewIssuer(cfg.JWTSigningKey)

	authSvc := authservice.New(users, auditor, issuer, runner, log)
	notifSvc := notifservice.New(notifs, m, log)
	certSvc := certservice.New(
		certs,
		auditor,
		notifSvc,
		models.NewNumberGenerator(),
		runner,
		m,
		log,
		cfg.VerifyBaseURL,
	)
	verifySvc := verifyservice.New(certs, redisClient, config.VerifyCacheTTL, log)

	handler := router.New(router.Deps{
		Logger:        log,
		Metrics:       m,
		Validator:     issuer,
		Auth:          authhandler.New(authSvc, log),
		Certificates:  certhandler.New(certSvc, log),
		Notifications: notifhandler.New(notifSvc, log),
		Verify:        verifyhandler.New(verifySvc, log),
		Audit:         audithandler.New(auditStore, log),
		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				if err := redisClient.Health(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
