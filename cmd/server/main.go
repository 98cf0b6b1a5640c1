package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"

	"github.com/decorly-io/decorly/internal/bootstrap"
	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/modules/handler"
	"github.com/decorly-io/decorly/internal/router"
	"github.com/decorly-io/decorly/internal/telemetry"
)

func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer log.Sync()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Warn("tracing setup failed", zap.Error(err))
	}
	if _, err := telemetry.SetupMetrics(cfg); err != nil {
		log.Warn("metrics setup failed", zap.Error(err))
	}
	if err := telemetry.InitGenerationMetrics(); err != nil {
		log.Warn("metrics init failed", zap.Error(err))
	}

	r := router.NewRouter(router.RouterDeps{
		Config:            cfg,
		Log:               log,
		AuthClient:        do.MustInvoke[auth.Client](inj),
		GenerationHandler: do.MustInvoke[*handler.GenerationHandler](inj),
		ProjectHandler:    do.MustInvoke[*handler.ProjectHandler](inj),
		UserObjectHandler: do.MustInvoke[*handler.UserObjectHandler](inj),
		CreditHandler:     do.MustInvoke[*handler.CreditHandler](inj),
		WebhookHandler:    do.MustInvoke[*handler.WebhookHandler](inj),
	})

	srv := &http.Server{
		Addr:    cfg.App.Addr,
		Handler: r,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.App.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
	if err := telemetry.ShutdownMetrics(ctx); err != nil {
		log.Error("meter shutdown failed", zap.Error(err))
	}
	if err := inj.Shutdown(); err != nil {
		log.Error("container shutdown failed", zap.Error(err))
	}
}
