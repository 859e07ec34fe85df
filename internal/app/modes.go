package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/defiwatchbot/defiwatch/internal/command"
	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/server"
	"github.com/defiwatchbot/defiwatch/internal/server/handler"
	"github.com/defiwatchbot/defiwatch/internal/server/ws"
	"github.com/defiwatchbot/defiwatch/internal/snapshot"
	"github.com/defiwatchbot/defiwatch/internal/watcher"
)

// shutdownTimeout bounds graceful HTTP shutdown and the final archive flush.
const shutdownTimeout = 10 * time.Second

// WatchMode runs the periodic risk sweeps, alerting, and the Telegram
// command loop, without the dashboard server.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startCatalog(ctx, g, deps)

	sink, archiver := a.buildEventChain(deps, nil)
	a.startWatcher(ctx, g, deps, sink)
	a.startBot(ctx, g, deps)

	err := g.Wait()
	a.flushArchive(archiver)
	return err
}

// BotMode runs only the Telegram command loop.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startCatalog(ctx, g, deps)
	a.startBot(ctx, g, deps)

	return g.Wait()
}

// ServeMode runs the dashboard API and the sweeps that feed it. Alerts still
// go out when a Telegram token or Discord webhook is configured.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startCatalog(ctx, g, deps)

	hub := a.startHub(ctx, g, true)
	sink, archiver := a.buildEventChain(deps, hub)
	w := a.startWatcher(ctx, g, deps, sink)
	a.startHTTPServer(ctx, g, deps, hub, w)

	err := g.Wait()
	a.flushArchive(archiver)
	return err
}

// FullMode runs everything: sweeps, the Telegram bot, and the dashboard.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startCatalog(ctx, g, deps)

	hub := a.startHub(ctx, g, a.cfg.Server.Enabled)
	sink, archiver := a.buildEventChain(deps, hub)
	w := a.startWatcher(ctx, g, deps, sink)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, hub, w)
	}
	a.startBot(ctx, g, deps)

	err := g.Wait()
	a.flushArchive(archiver)
	return err
}

// startCatalog restores persisted catalog snapshots and starts the periodic
// refresh loop.
func (a *App) startCatalog(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	deps.Catalog.WarmStart(ctx)
	g.Go(func() error {
		return deps.Catalog.Loop(ctx, a.cfg.Catalog.RefreshInterval.Duration)
	})
}

// startHub creates and runs the WebSocket hub when the dashboard is enabled.
func (a *App) startHub(ctx context.Context, g *errgroup.Group, enabled bool) *ws.Hub {
	if !enabled {
		return nil
	}
	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	return hub
}

// buildEventChain assembles the risk-event sink the watcher publishes to:
// the S3 archiver, when configured, buffers each sweep and forwards events to
// the hub; otherwise events go to the hub directly.
func (a *App) buildEventChain(deps *Dependencies, hub *ws.Hub) (domain.EventSink, *snapshot.Archiver) {
	var sink domain.EventSink
	if hub != nil {
		sink = hub
	}
	if deps.BlobWriter == nil {
		return sink, nil
	}
	archiver := snapshot.New(deps.BlobWriter, sink, a.logger)
	return archiver, archiver
}

// startWatcher builds and runs the sweep watcher.
func (a *App) startWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies, sink domain.EventSink) *watcher.Watcher {
	w := watcher.New(
		deps.Users,
		deps.Scanners,
		deps.Notifier,
		deps.Policy,
		sink,
		a.cfg.Watch.Interval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return w.Run(ctx)
	})
	return w
}

// startBot builds and runs the Telegram command loop.
func (a *App) startBot(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	router := command.NewRouter(deps.Users, deps.Scanners, deps.Catalog, a.logger)
	bot := command.NewBot(deps.Telegram, router, a.logger)
	g.Go(func() error {
		return bot.Run(ctx)
	})
}

// startHTTPServer builds the dashboard API server, starts it, and shuts it
// down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub, w *watcher.Watcher) {
	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Status:    handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), deps.Catalog),
			Wallets:   handler.NewWalletHandler(deps.Users, a.logger),
			Positions: handler.NewPositionHandler(deps.Scanners, a.logger),
			Markets:   handler.NewMarketHandler(deps.Catalog, deps.Catalog, a.logger),
			Sweep:     handler.NewSweepHandler(w),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// flushArchive uploads any buffered sweep events before the process exits.
func (a *App) flushArchive(archiver *snapshot.Archiver) {
	if archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	archiver.Flush(ctx)
}
