package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/tuner/internal/browse"
	"github.com/mmcdole/tuner/internal/catalog"
	"github.com/mmcdole/tuner/internal/config"
	"github.com/mmcdole/tuner/internal/httpapi"
	"github.com/mmcdole/tuner/internal/log"
	"github.com/mmcdole/tuner/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		showVersion bool
		configDir   string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configDir, "config", "", "directory containing config.yaml")
	flag.Parse()

	if showVersion {
		fmt.Printf("tunerd %s\n", Version)
		return
	}

	if err := run(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	var searchPaths []string
	if configDir != "" {
		searchPaths = append(searchPaths, configDir)
	}
	cfg, err := config.LoadConfig(searchPaths...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting tunerd", "version", Version, "addr", cfg.Server.Addr)

	journal, err := store.OpenJournal(cfg.Journal.Path, cfg.Journal.Retain)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	policy, err := browse.ParseUnsubscribePolicy(cfg.Notify.UnsubscribePolicy)
	if err != nil {
		return err
	}

	hub := httpapi.NewEventHub()
	controller := browse.NewController(
		catalog.NewTree(catalog.WithStrict(cfg.Catalog.Strict)),
		hub,
		logger,
		browse.WithDelay(cfg.Notify.Delay),
		browse.WithItemCountHint(cfg.Notify.ItemCountHint),
		browse.WithUnsubscribePolicy(policy),
		browse.WithJournal(journal),
	)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(controller, hub, httpapi.Options{
			RateLimit: cfg.Server.RateLimit,
			Journal:   journal,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Event streams block Shutdown until they end
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		if err := controller.Close(shutdownCtx); err != nil {
			logger.Error("controller shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
