package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"

	"vektor/apps/embedder/internal/app"
	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/logger"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(jsonHandler)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("failed to bootstrap dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	application, err := app.New(ctx, cfg, deps)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Coordinator.Start()

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = cfg.BatchSize * 2
	consumer, err := nsq.NewConsumer(config.TopicEmbedRequest, cfg.NSQChannel, nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ consumer", "error", err)
		os.Exit(1)
	}
	consumer.AddHandler(application.Consumer)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect to nsqlookupd", "error", err)
		os.Exit(1)
	}
	slog.Info("NSQ consumer connected", "topic", config.TopicEmbedRequest, "channel", cfg.NSQChannel)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: application.Handler,
	}

	go func() {
		slog.Info("starting embedder server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down...")

	// Stop intake first so in-flight work can drain.
	consumer.Stop()
	<-consumer.StopChan

	application.Coordinator.Stop()
	deps.NSQProducer.Stop()
	deps.Cache.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("embedder stopped")
}
