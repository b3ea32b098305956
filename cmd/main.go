package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/RaikyD/merch-pickup-service/internal/application"
	"github.com/RaikyD/merch-pickup-service/internal/config"
	"github.com/RaikyD/merch-pickup-service/internal/fixtures"
	"github.com/RaikyD/merch-pickup-service/internal/kafka"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/metrics"
	"github.com/RaikyD/merch-pickup-service/internal/migrate"
	"github.com/RaikyD/merch-pickup-service/internal/presentation"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: postgres when DB_STRING is set, otherwise in-memory
	var repo repository.OrderRepo
	if cfg.InMemory() {
		repo = repository.NewMemoryRepository()
		logger.Info("using in-memory order store")
	} else {
		if err := migrate.Up(cfg.DB_STRING); err != nil {
			logger.Warn("migrations failed", "err", err)
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.DB_STRING)
		if err != nil {
			logger.Warn("pgxpool new failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("db ping failed", "err", err)
			os.Exit(1)
		}
		logger.Info("db connected")
		repo = repository.NewOrderRepository(pool)
	}

	// Wiring
	reg := metrics.NewRegistry()
	svc := application.NewOrdersService(repo)

	if cfg.SEED_FIXTURES {
		n, err := fixtures.Seed(ctx, svc, time.Now().UTC())
		if err != nil {
			logger.Warn("seed fixtures failed", "err", err)
		} else {
			logger.Info("fixtures seeded", "orders", n)
		}
	}
	if err := svc.RestoreCache(ctx, cfg.CACHE_RESTORE_LIMIT); err != nil {
		logger.Warn("restore cache failed", "err", err)
	}

	var (
		notifier  application.ReleaseNotifier
		publisher presentation.OrderPublisher
	)
	if cfg.KafkaEnabled() {
		prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC, cfg.KAFKA_RELEASE_TOPIC)
		defer prod.Close()
		notifier, publisher = prod, prod

		_, _ = kafka.StartConsumer(ctx, svc, reg, kafka.ConsumerConfig{
			Brokers: cfg.KAFKA_BROKERS,
			Topic:   cfg.KAFKA_TOPIC,
			GroupID: cfg.KAFKA_GROUP_ID,
		})
	}

	verifier := application.NewReleaseVerifier(svc, notifier, reg)
	r := presentation.NewRouter(
		presentation.NewOrdersHandler(svc, publisher),
		presentation.NewPickupHandler(verifier, application.NewSessions(), cfg.SCAN_DELAY, reg.OpenSessions),
		reg.Handler(),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP_PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server crashed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
