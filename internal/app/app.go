// Package app assembles the watcher from its parts and runs it until
// shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/workshop-watcher/internal/config"
	"github.com/dmitrijs2005/workshop-watcher/internal/discord"
	"github.com/dmitrijs2005/workshop-watcher/internal/logging"
	"github.com/dmitrijs2005/workshop-watcher/internal/resolver"
	"github.com/dmitrijs2005/workshop-watcher/internal/steam"
	"github.com/dmitrijs2005/workshop-watcher/internal/storage"
	"github.com/dmitrijs2005/workshop-watcher/internal/watcher"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   storage.RepositoryManager
	watcher *watcher.Watcher
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.NewDefault(logging.ParseLevel(cfg.LogLevel))

	store, err := storage.NewRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	client := steam.NewClient(logger)
	res := resolver.New(store.SteamUsers(), client, cfg.SteamAPIKey, logger)
	dispatcher := discord.NewDispatcher(cfg.DiscordWebhookURL, cfg.PingRoles, logger)

	w := watcher.New(cfg.Items, cfg.NotifyOnFirstSeen, store, client, res, dispatcher, logger)

	return &App{config: cfg, logger: logger, store: store, watcher: w}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes the watcher until the poll loop finishes or a shutdown
// signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting watcher",
		"items", len(app.config.Items),
		"poll_interval", app.config.PollInterval,
	)

	app.initSignalHandler(cancelFunc)
	defer func() {
		if err := app.store.Close(); err != nil {
			app.logger.Error(ctx, "closing store", "error", err)
		}
	}()

	if err := app.watcher.Run(ctx, app.config.PollInterval); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
