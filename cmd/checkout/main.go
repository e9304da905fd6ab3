package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/auth"
	"github.com/nikolayk812/restaurant-checkout/internal/config"
	"github.com/nikolayk812/restaurant-checkout/internal/edge"
	"github.com/nikolayk812/restaurant-checkout/internal/guestcart"
	"github.com/nikolayk812/restaurant-checkout/internal/httpapi"
	"github.com/nikolayk812/restaurant-checkout/internal/logger"
	"github.com/nikolayk812/restaurant-checkout/internal/migrations"
	"github.com/nikolayk812/restaurant-checkout/internal/outbox"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
	"github.com/nikolayk812/restaurant-checkout/internal/realtime/pgnotify"
	"github.com/nikolayk812/restaurant-checkout/internal/repository"
	"github.com/nikolayk812/restaurant-checkout/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	janitorInterval    = time.Minute
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config.Load: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger.New: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("checkout service stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("bye")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.RunMigrations {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrations.Up: %w", err)
		}
		log.Info("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool.Ping: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rdb.Ping: %w", err)
	}

	carts, err := repository.NewCart(pool)
	if err != nil {
		return fmt.Errorf("repository.NewCart: %w", err)
	}
	catalog, err := repository.NewCatalog(pool)
	if err != nil {
		return fmt.Errorf("repository.NewCatalog: %w", err)
	}
	orders, err := repository.NewOrder(pool)
	if err != nil {
		return fmt.Errorf("repository.NewOrder: %w", err)
	}
	discounts, err := repository.NewDiscount(pool)
	if err != nil {
		return fmt.Errorf("repository.NewDiscount: %w", err)
	}
	addresses, err := repository.NewAddress(pool)
	if err != nil {
		return fmt.Errorf("repository.NewAddress: %w", err)
	}
	tasks, err := repository.NewOutbox(pool, repository.DefaultLease)
	if err != nil {
		return fmt.Errorf("repository.NewOutbox: %w", err)
	}

	feed, err := pgnotify.NewFeed(pool, pgnotify.DefaultConfig(), log.Named("pgnotify"))
	if err != nil {
		return fmt.Errorf("pgnotify.NewFeed: %w", err)
	}
	defer feed.Close()

	edgeClient, err := edge.New(edge.DefaultConfig(cfg.EdgeBaseURL, cfg.EdgeAnonKey), log.Named("edge"))
	if err != nil {
		return fmt.Errorf("edge.New: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth.NewVerifier: %w", err)
	}

	svc, err := service.New(service.Deps{
		Calculator: pricing.New(cfg.Pricing),
		Carts:      carts,
		GuestCarts: guestcart.New(rdb, guestcart.DefaultTTL),
		Catalog:    catalog,
		Discounts:  discounts,
		Addresses:  addresses,
		Orders:     orders,
		Payments:   edgeClient,
		Tasks:      tasks,
		Feed:       feed,
		Logger:     log.Named("checkout"),
	}, service.Config{
		Currency:       cfg.Currency,
		NoticeTTL:      cfg.ErrorNoticeTTL,
		Debounce:       cfg.RealtimeDebounce,
		ClearCartDelay: cfg.ClearCartDelay,
		RedirectDelay:  cfg.RedirectDelay,
	})
	if err != nil {
		return fmt.Errorf("service.New: %w", err)
	}
	defer svc.Shutdown()

	pollerCfg := outbox.DefaultConfig()
	pollerCfg.Interval = cfg.OutboxInterval
	pollerCfg.MaxAttempts = cfg.OutboxMaxAttempts
	poller := outbox.NewPoller(tasks, pollerCfg, log.Named("outbox"))
	outbox.Register(poller, discounts, edgeClient, carts)

	server := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Service:  svc,
			Verifier: verifier,
			Health:   pool.Ping,
			Logger:   log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.ListenAndServe: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return svc.RunJanitor(gctx, janitorInterval, sessionIdleTimeout)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
