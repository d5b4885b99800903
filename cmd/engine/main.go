package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/ledger"
	"bankcore/internal/logging"
	"bankcore/internal/repository"
	"bankcore/internal/scheduler"
)

// engineStore is the union of the persistence contracts the engine consumes.
// Both store backends satisfy it.
type engineStore interface {
	ledger.Store
	scheduler.Store
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Scheduler.Timezone, "error", err)
		os.Exit(1)
	}

	store, closeStore, err := buildStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to build store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	ledgerService := ledger.New(store, loc)
	sched := scheduler.New(ledgerService, store, logger, scheduler.Config{
		Location:      loc,
		DailyHour:     cfg.Scheduler.DailyHour,
		WeeklyWeekday: time.Weekday(cfg.Scheduler.WeeklyWeekday),
		WeeklyHour:    cfg.Scheduler.WeeklyHour,
		MonthlyDay:    cfg.Scheduler.MonthlyDay,
		MonthlyHour:   cfg.Scheduler.MonthlyHour,
		Workers:       cfg.Scheduler.Workers,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sched.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (engineStore, func(), error) {
	if cfg.Driver == "postgres" {
		pg, err := repository.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	return repository.NewMemory(), func() {}, nil
}
