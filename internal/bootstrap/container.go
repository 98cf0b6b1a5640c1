package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/infra/blob"
	"github.com/decorly-io/decorly/internal/infra/cache"
	"github.com/decorly-io/decorly/internal/infra/db"
	"github.com/decorly-io/decorly/internal/infra/imageclient"
	"github.com/decorly-io/decorly/internal/infra/logger"
	mq "github.com/decorly-io/decorly/internal/infra/queue"
	"github.com/decorly-io/decorly/internal/modules/handler"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/modules/repo"
	"github.com/decorly-io/decorly/internal/modules/service"
	"github.com/decorly-io/decorly/internal/pkg/gemini"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			_ = d.AutoMigrate(
				&model.Project{},
				&model.UserObject{},
				&model.CreditBalance{},
			)
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg)
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)

		dialFn := func() (*amqp.Connection, error) {
			useTLS := cfg.RabbitMQ.EnableTLS || strings.HasPrefix(cfg.RabbitMQ.URL, "amqps://")

			if useTLS {
				tlsConfig := &tls.Config{
					MinVersion: tls.VersionTLS12,
				}
				url := cfg.RabbitMQ.URL
				if strings.HasPrefix(url, "amqp://") {
					url = strings.Replace(url, "amqp://", "amqps://", 1)
				}
				return amqp.DialTLS(url, tlsConfig)
			}

			return amqp.Dial(cfg.RabbitMQ.URL)
		}

		return dialFn, nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		dialFn := do.MustInvoke[mq.DialFunc](i)
		return dialFn()
	})

	// RabbitMQ Publisher
	do.Provide(inj, func(i *do.Injector) (*mq.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		log := do.MustInvoke[*zap.Logger](i)
		return mq.NewPublisher(conn, log, cfg)
	})

	// RabbitMQ Consumer, used by the worker binary only
	do.Provide(inj, func(i *do.Injector) (*mq.Consumer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		log := do.MustInvoke[*zap.Logger](i)
		return mq.NewConsumer(conn, log, cfg)
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})

	// outbound image fetcher
	do.Provide(inj, func(i *do.Injector) (*imageclient.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		return imageclient.New(cfg, log), nil
	})

	// Gemini
	do.Provide(inj, func(i *do.Injector) (gemini.Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		client, err := gemini.NewClient(context.Background(), cfg, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	// Supabase auth
	do.Provide(inj, func(i *do.Injector) (auth.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return auth.New(cfg.Auth.ProjectRef, cfg.Auth.APIKey), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.UserObjectRepo, error) {
		return repo.NewUserObjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.CreditRepo, error) {
		return repo.NewCreditRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.CreditService, error) {
		return service.NewCreditService(
			do.MustInvoke[repo.CreditRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ProjectService, error) {
		return service.NewProjectService(do.MustInvoke[repo.ProjectRepo](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.GenerationService, error) {
		return service.NewGenerationService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[repo.UserObjectRepo](i),
			do.MustInvoke[service.CreditService](i),
			do.MustInvoke[gemini.Provider](i),
			do.MustInvoke[*imageclient.Client](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*mq.Publisher](i),
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.UserObjectService, error) {
		return service.NewUserObjectService(
			do.MustInvoke[repo.UserObjectRepo](i),
			do.MustInvoke[gemini.Provider](i),
			do.MustInvoke[*imageclient.Client](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.GenerationHandler, error) {
		return handler.NewGenerationHandler(do.MustInvoke[service.GenerationService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ProjectHandler, error) {
		return handler.NewProjectHandler(do.MustInvoke[service.ProjectService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.UserObjectHandler, error) {
		return handler.NewUserObjectHandler(do.MustInvoke[service.UserObjectService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.CreditHandler, error) {
		return handler.NewCreditHandler(do.MustInvoke[service.CreditService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.WebhookHandler, error) {
		return handler.NewWebhookHandler(
			do.MustInvoke[service.CreditService](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	return inj
}
