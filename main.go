package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/card"
	"github.com/pyama86/slaffic-ticket/domain/directory"
	"github.com/pyama86/slaffic-ticket/domain/fanout"
	"github.com/pyama86/slaffic-ticket/domain/infra"
	"github.com/pyama86/slaffic-ticket/domain/lifecycle"
	"github.com/pyama86/slaffic-ticket/domain/router"
	"github.com/pyama86/slaffic-ticket/handler"
	"github.com/pyama86/slaffic-ticket/logger"
	"github.com/slack-go/slack"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	slog.SetDefault(logger.New(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ds, err := infra.NewDatastore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer ds.Close()

	client := slack.New(cfg.BotToken)
	messenger := handler.NewMessenger(client)
	broadcaster := fanout.NewBroadcaster(messenger, 4)
	dir := directory.New(cfg)
	renderer := card.NewRenderer(card.Options{
		TaskTracking: cfg.TaskTracking,
		Label:        dir.Label,
	})
	rt := router.New(ds, messenger, renderer, broadcaster, cfg.DashboardChannelID)
	engine := lifecycle.New(ds, dir, rt, messenger, lifecycle.Options{
		Location:   cfg.Location,
		DraftTTL:   cfg.DraftTTL,
		StorageDir: cfg.StorageDir,
	})

	deps := handler.Deps{
		Client:      client,
		Datastore:   ds,
		Engine:      engine,
		Directory:   dir,
		Renderer:    renderer,
		Broadcaster: broadcaster,
	}
	ai, err := infra.NewOpenAI(cfg.AI)
	if err != nil {
		return err
	}
	if ai != nil {
		deps.Summarizer = ai
	}

	h := handler.NewHandler(cfg, deps)
	h.StartDigestMonitor(ctx)

	slog.Info("Starting Socket Mode",
		slog.String("store", cfg.Store.Driver),
		slog.Int("departments", len(cfg.Departments)))
	if err := h.Handle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
