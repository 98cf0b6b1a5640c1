package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/samber/do"
	"go.uber.org/zap"

	"github.com/decorly-io/decorly/internal/bootstrap"
	"github.com/decorly-io/decorly/internal/config"
	mq "github.com/decorly-io/decorly/internal/infra/queue"
	"github.com/decorly-io/decorly/internal/modules/service"
	"github.com/decorly-io/decorly/internal/telemetry"
)

func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer log.Sync()

	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Warn("tracing setup failed", zap.Error(err))
	}
	if _, err := telemetry.SetupMetrics(cfg); err != nil {
		log.Warn("metrics setup failed", zap.Error(err))
	}
	if err := telemetry.InitGenerationMetrics(); err != nil {
		log.Warn("metrics init failed", zap.Error(err))
	}

	gen := do.MustInvoke[service.GenerationService](inj)
	consumer := do.MustInvoke[*mq.Consumer](inj)

	ctx, cancel := context.WithCancel(context.Background())

	// periodic sweep of pending projects stuck past their deadline
	go func() {
		interval := time.Duration(cfg.Generation.SweepIntervalSec) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := gen.SweepOverdue(ctx); err != nil {
					log.Error("overdue sweep failed", zap.Error(err))
				}
			}
		}
	}()

	go func() {
		log.Info("worker consuming", zap.String("queue", cfg.RabbitMQ.QueueName.Generation))
		err := consumer.Handle(ctx, func(msgCtx context.Context, body []byte) error {
			var task service.GenerationRunMQ
			if err := sonic.Unmarshal(body, &task); err != nil {
				log.Error("malformed generation message", zap.Error(err))
				// not retryable, drop it
				return nil
			}
			if _, err := gen.Run(msgCtx, task.ProjectID); err != nil {
				// the run already settled the project and the credits;
				// the error is logged for the failure itself
				return err
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("consumer stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
	if err := telemetry.ShutdownMetrics(shutdownCtx); err != nil {
		log.Error("meter shutdown failed", zap.Error(err))
	}
	if err := inj.Shutdown(); err != nil {
		log.Error("container shutdown failed", zap.Error(err))
	}
}
