package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GozaMadrid/internal/app"
	"github.com/LJTian/GozaMadrid/internal/config"
	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.Config{Level: cfg.LogLevel, Development: cfg.Debug})
	defer func() { _ = log.Sync() }()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{WithLeads: true})
	if err != nil {
		log.Fatal("init app failed", logger.Error(err))
	}

	// 定时预热列表缓存，WARM_CRON 为空时关闭
	var sched *scheduler.Scheduler
	if cfg.WarmCron != "" {
		sched, err = scheduler.New(cfg.WarmCron, a.Lists, log.With(logger.String("component", "scheduler")))
		if err != nil {
			log.Fatal("init scheduler failed", logger.Error(err), logger.String("spec", cfg.WarmCron))
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.Server().Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting api server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server exit", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("warm job did not stop in time")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logger.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("release resources failed", logger.Error(err))
	}
}
