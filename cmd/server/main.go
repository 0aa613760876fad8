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

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-ledger/internal/config"
	"github.com/iliyamo/cinema-seat-ledger/internal/database"
	"github.com/iliyamo/cinema-seat-ledger/internal/handler"
	"github.com/iliyamo/cinema-seat-ledger/internal/middleware"
	"github.com/iliyamo/cinema-seat-ledger/internal/queue"
	"github.com/iliyamo/cinema-seat-ledger/internal/repository"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
	"github.com/iliyamo/cinema-seat-ledger/internal/router"
	"github.com/iliyamo/cinema-seat-ledger/internal/service"
	"github.com/iliyamo/cinema-seat-ledger/internal/session"
	"github.com/iliyamo/cinema-seat-ledger/internal/stream"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg)

	if err := run(cfg); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(ctx, database.Config{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	}, 10, config.Component("database"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Error("closing database")
		}
	}()

	rdb := config.NewRedisClient(config.Component("redis"))
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	shows := repository.NewShowRepo(db)
	seats := repository.NewSeatRepo(db)
	holds := repository.NewSeatHoldRepo(db)
	catalog := repository.NewCatalog(shows, repository.NewHallRepo(db), seats)
	occupancy := repository.NewOccupancy(db, holds)
	recorder := repository.NewSaleRecorder(shows, repository.NewShowSeatRepo(db), holds, repository.NewReservationRepo(db))

	hub := stream.NewHub(config.Component("stream"))
	journal := reservation.NewJournal(holds, cfg.JournalQueue, config.Component("journal"))
	registry := reservation.NewRegistry(catalog, occupancy, recorder,
		[]reservation.SeatSelectionSubscriber{journal, hub},
		reservation.WithLogger(config.Component("ledger")),
		reservation.WithSweepGrace(cfg.SweepGrace),
	)
	supervisor := session.NewSupervisor(session.Config{
		Window:       cfg.PurchaseWindow,
		TickInterval: cfg.TickInterval,
		MaxExtension: cfg.MaxExtension,
	}, config.Component("session"))
	publisher := service.NewTicketPublisher(cfg.AMQPURL, config.Component("handoff"))
	booking := service.NewBooking(registry, supervisor, publisher, hub, holds, service.Config{
		Retention: cfg.SessionRetention,
	}, config.Component("booking"))
	tickets := queue.NewTicketConsumer(cfg.AMQPURL, cfg.TicketLogDir, config.Component("tickets"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Correlation(config.Component("http")))
	router.RegisterRoutes(e, db,
		handler.NewAuthHandler(cfg.JWTSecret, cfg.AccessTTLMin, repository.NewUserRepo(db)),
		handler.NewLayoutHandler(catalog),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)
	router.RegisterSelection(e,
		handler.NewSelectionHandler(booking),
		handler.NewEventsHandler(hub, booking),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return journal.Run(runCtx)
	})

	g.Go(func() error {
		return booking.RunJanitor(runCtx, cfg.SweepInterval)
	})

	g.Go(func() error {
		return tickets.Run(runCtx)
	})

	g.Go(func() error {
		logrus.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("Starting HTTP server...")
		err := e.Start(":" + cfg.Port)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		// Live event streams end when the hub closes; Shutdown waits for them.
		if err := hub.Close(); err != nil {
			logrus.WithError(err).Warn("closing event hub")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")
	return nil
}
