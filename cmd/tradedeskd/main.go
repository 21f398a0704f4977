// tradedeskd is the development backend: it simulates a market feed (or
// replays a recorded one), persists portfolio state in SQLite, and serves
// the REST + WebSocket API the dashboard client consumes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradedesk/internal/config"
	"tradedesk/internal/server"
	"tradedesk/internal/util"
)

const snapshotInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	store, err := server.OpenStore(cfg.Storage.SQLitePath, cfg.Sim.SeedCash)
	if err != nil {
		logger.Error("opening store", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cache := server.NewPriceCache()
	interval := time.Duration(cfg.Sim.UpdateIntervalMs) * time.Millisecond

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var journal *server.TickJournal
	if cfg.Sim.ReplayPath != "" {
		replayer, err := server.NewReplayer(cache, cfg.Sim.ReplayPath, interval, logger)
		if err != nil {
			logger.Error("loading replay journal", "path", cfg.Sim.ReplayPath, "error", err)
			os.Exit(1)
		}
		go replayer.Run(ctx)
	} else {
		if cfg.Storage.TickLogPath != "" {
			journal = server.NewTickJournal(cfg.Storage.TickLogPath)
		}
		sim := server.NewSimulator(cache, journal, interval, logger)
		sim.Seed()
		go sim.Run(ctx)
	}

	srv := server.New(store, cache, interval, logger)
	go srv.RunSnapshots(ctx, snapshotInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}

	if journal != nil {
		if err := journal.Flush(); err != nil {
			logger.Warn("flushing tick journal", "error", err)
		} else {
			logger.Info("tick journal written", "path", cfg.Storage.TickLogPath, "ticks", journal.Len())
		}
	}
	logger.Info("shutdown complete")
}
