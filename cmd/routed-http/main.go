package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

import (
	"github.com/nanjiek/readmostly/internal/api"
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/repo"
	"github.com/nanjiek/readmostly/internal/rules"
	"github.com/nanjiek/readmostly/internal/rules/source"
)

func main() {
	confPath := flag.String("c", "configs/routed.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*confPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	rdb, err := repo.NewRedis(cfg, logger)
	if err != nil {
		logger.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	ruleCache := rules.NewCache(cfg, rdb)
	defer ruleCache.Close()

	if cfg.Source.Enabled() {
		centerSource, err := source.NewCenterSource(cfg.Source)
		if err != nil {
			logger.Error("failed to init rules source", "error", err)
			os.Exit(1)
		}
		poller, err := rules.NewPoller(centerSource, ruleCache, rules.PollerConfig{
			Interval:   time.Duration(cfg.Source.PollIntervalMs) * time.Millisecond,
			FailPolicy: cfg.Source.FailPolicy,
			Breaker:    cfg.Source.Breaker,
		})
		if err != nil {
			logger.Error("failed to init poller", "error", err)
			os.Exit(1)
		}
		if err := poller.SyncOnce(rootCtx); err != nil {
			if strings.EqualFold(cfg.Source.FailPolicy, "fail-closed") {
				logger.Error("failed to load rules from source", "error", err)
				os.Exit(1)
			}
			logger.Warn("source pull failed, using last-good rules", "error", err)
		}
		go poller.Start(rootCtx)
	} else {
		if err := ruleCache.Bootstrap(rootCtx); err != nil {
			logger.Error("failed to bootstrap rules", "error", err)
			os.Exit(1)
		}
		go ruleCache.StartWatcher(rootCtx)
	}

	httpServer := api.NewServer(cfg.Server, ruleCache)

	go func() {
		logger.Info("server is running", "addr", cfg.Server.HTTPAddr, "pid", os.Getpid())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancelRoot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited properly")
}
