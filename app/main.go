package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bupcache/bupcache/app/api"
	"github.com/bupcache/bupcache/app/cfg"
	"github.com/bupcache/bupcache/app/comment"
	"github.com/bupcache/bupcache/app/download"
	"github.com/bupcache/bupcache/app/feed"
	"github.com/bupcache/bupcache/app/history"
	"github.com/bupcache/bupcache/app/ledger"
	"github.com/bupcache/bupcache/app/media"
	"github.com/bupcache/bupcache/app/producer"
	"github.com/bupcache/bupcache/app/relocate"
	"github.com/bupcache/bupcache/app/session"
	"github.com/bupcache/bupcache/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting bupcache", "version", appCfg.Version)

	sess, err := session.New(appCfg.SessionFile, appCfg.UserAgent)
	if err != nil {
		slog.Error("Failed to load session", "file", appCfg.SessionFile, "error", err)
		os.Exit(1)
	}

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sess.Check(checkCtx); err != nil {
		cancelCheck()
		slog.Error("Session check failed, refusing to start with stale credentials", "error", err)
		os.Exit(1)
	}
	cancelCheck()
	slog.Info("Session verified")

	configCache := producer.NewConfigCache(appCfg.ProducersDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load producer configurations", "dir", appCfg.ProducersDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Producer configurations loaded", "count", configCache.GetConfigCount())

	db, err := history.Open(appCfg.HistoryDB)
	if err != nil {
		slog.Error("Failed to open history database", "file", appCfg.HistoryDB, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := history.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run history migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("History database ready", "migration_version", version, "dirty", dirty)
	runRepo := history.NewRunRepository(db)

	ledgerStore := ledger.New(appCfg.DataDir)
	for _, producerConfig := range configCache.GetConfigs() {
		if err := ledgerStore.Load(producerConfig.UID); err != nil {
			slog.Error("Failed to load ledger", "producer", producerConfig.UID, "error", err)
			os.Exit(1)
		}
	}

	relocateEnabled := appCfg.MoveAfterCombine && appCfg.FinalDir != ""
	mover := relocate.NewMover(appCfg.DataDir, appCfg.FinalDir)

	fetcher := download.NewFetcher(sess, 30*time.Second)
	muxer := media.NewFFmpegMuxer(appCfg.FFmpegPath)
	assembler := media.NewAssembler(sess, fetcher, muxer, mover, appCfg.DataDir, relocateEnabled)
	commenter := comment.NewClient(sess)

	walker := feed.NewWalker(feed.WalkerOpts{
		Client:      feed.NewClient(sess),
		Classifier:  feed.NewClassifier(),
		Ledger:      ledgerStore,
		Images:      fetcher,
		Videos:      assembler,
		Relocator:   mover,
		Commenter:   commenter,
		SessionCtl:  sess,
		DataDir:     appCfg.DataDir,
		Relocate:    relocateEnabled,
		PageSpacing: time.Duration(appCfg.PageSpacing) * time.Second,
	})

	scheduler := tasks.NewScheduler(configCache, walker, runRepo, walker)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "interval_sec", appCfg.IntervalSec)

	apiHandler := api.NewHandler(configCache, runRepo, walker, runRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
