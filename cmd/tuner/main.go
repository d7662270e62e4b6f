package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/mmcdole/tuner/internal/browse"
	"github.com/mmcdole/tuner/internal/catalog"
	"github.com/mmcdole/tuner/internal/config"
	"github.com/mmcdole/tuner/internal/domain"
	"github.com/mmcdole/tuner/internal/log"
	"github.com/mmcdole/tuner/internal/store"
	"github.com/mmcdole/tuner/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

const notifyBuffer = 16

func main() {
	var (
		showVersion bool
		initConfig  bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&initConfig, "init", false, "write a default config file and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("tuner %s\n", Version)
		return
	}

	if err := run(initConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(initConfig bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if initConfig {
		path, err := config.SaveConfig(cfg, "")
		if err != nil {
			return err
		}
		fmt.Printf("✓ Configuration saved to %s\n", path)
		return nil
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tuner needs an interactive terminal; use tunerd for headless browsing")
	}

	// Stderr belongs to the TUI, so only log when a file is configured
	logger := log.NullLogger()
	if cfg.Logging.File != "" {
		fileLogger, closer, err := log.SetupLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		defer closer.Close()
		logger = fileLogger
	}
	slog.SetDefault(logger)

	journal, err := store.OpenJournal(cfg.Journal.Path, cfg.Journal.Retain)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	policy, err := browse.ParseUnsubscribePolicy(cfg.Notify.UnsubscribePolicy)
	if err != nil {
		return err
	}

	self := domain.SubscriberID(uuid.NewString())
	notifier := tui.NewChannelNotifier(self, notifyBuffer)

	controller := browse.NewController(
		catalog.NewTree(catalog.WithStrict(cfg.Catalog.Strict)),
		notifier,
		logger,
		browse.WithDelay(cfg.Notify.Delay),
		browse.WithItemCountHint(cfg.Notify.ItemCountHint),
		browse.WithUnsubscribePolicy(policy),
		browse.WithJournal(journal),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := controller.Close(ctx); err != nil {
			logger.Error("controller shutdown failed", "error", err)
		}
	}()

	logger.Info("starting TUI", "version", Version, "subscriber", self.ID())

	p := tea.NewProgram(
		tui.NewModel(controller, self, notifier),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
