package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zhaocg/app-download-center/internal/config"
	"github.com/zhaocg/app-download-center/internal/infra/database"
	"github.com/zhaocg/app-download-center/internal/infra/logger"
	"github.com/zhaocg/app-download-center/internal/infra/notify"
	"github.com/zhaocg/app-download-center/internal/infra/observability"
	mq "github.com/zhaocg/app-download-center/internal/infra/queue"
	"github.com/zhaocg/app-download-center/internal/infra/storage"
	"github.com/zhaocg/app-download-center/internal/modules/handler"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
	"github.com/zhaocg/app-download-center/internal/modules/service"
	"github.com/zhaocg/app-download-center/internal/server"
)

var debug = flag.Bool("debug", false, "enable debug logging")

// buildInjector registers one long-lived provider per infra handle and one
// per service; everything downstream resolves its dependencies from here.
func buildInjector(cfg *config.Config, zl *zap.Logger) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, zl)

	do.Provide(injector, func(i *do.Injector) (*gorm.DB, error) {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	})

	do.Provide(injector, func(i *do.Injector) (*storage.LocalStore, error) {
		return storage.NewLocalStore(cfg.Storage.Root, cfg.Storage.EmptyDirTTL, zl)
	})

	if cfg.Queue.URL != "" {
		do.Provide(injector, func(i *do.Injector) (*mq.Publisher, error) {
			conn, err := amqp.Dial(cfg.Queue.URL)
			if err != nil {
				return nil, err
			}
			return mq.NewPublisher(conn, zl, cfg, func() (*amqp.Connection, error) {
				return amqp.Dial(cfg.Queue.URL)
			})
		})
	}

	do.Provide(injector, func(i *do.Injector) (*notify.Dispatcher, error) {
		var notifiers []notify.Notifier
		if cfg.Notify.WebhookURL != "" {
			notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
		}
		if cfg.Queue.URL != "" {
			pub, err := do.Invoke[*mq.Publisher](i)
			if err != nil {
				return nil, err
			}
			notifiers = append(notifiers, notify.NewQueueNotifier(pub))
		}
		return notify.NewDispatcher(zl, cfg.Notify.Timeout, notifiers...), nil
	})

	do.Provide(injector, func(i *do.Injector) (repo.FileRepo, error) {
		db, err := do.Invoke[*gorm.DB](i)
		if err != nil {
			return nil, err
		}
		return repo.NewFileRepo(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.UploadService, error) {
		r, err := do.Invoke[repo.FileRepo](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*storage.LocalStore](i)
		if err != nil {
			return nil, err
		}
		dispatcher, err := do.Invoke[*notify.Dispatcher](i)
		if err != nil {
			return nil, err
		}
		return service.NewUploadService(r, store, dispatcher, cfg.App.BaseURL, cfg.Storage.CanonicalNaming), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.FileService, error) {
		r, err := do.Invoke[repo.FileRepo](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*storage.LocalStore](i)
		if err != nil {
			return nil, err
		}
		return service.NewFileService(r, store, service.NoopExtractor{}), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.BrowseService, error) {
		r, err := do.Invoke[repo.FileRepo](i)
		if err != nil {
			return nil, err
		}
		return service.NewBrowseService(r), nil
	})

	do.Provide(injector, func(i *do.Injector) (service.MaintenanceService, error) {
		r, err := do.Invoke[repo.FileRepo](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*storage.LocalStore](i)
		if err != nil {
			return nil, err
		}
		return service.NewMaintenanceService(r, store, zl), nil
	})

	return injector
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(*debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		zl.Fatal("setup tracing", zap.Error(err))
	}

	injector := buildInjector(cfg, zl)

	dispatcher, err := do.Invoke[*notify.Dispatcher](injector)
	if err != nil {
		zl.Fatal("init notification dispatcher", zap.Error(err))
	}
	go dispatcher.LogErrors()

	uploadSvc, err := do.Invoke[service.UploadService](injector)
	if err != nil {
		zl.Fatal("init upload service", zap.Error(err))
	}
	fileSvc, err := do.Invoke[service.FileService](injector)
	if err != nil {
		zl.Fatal("init file service", zap.Error(err))
	}
	browseSvc, err := do.Invoke[service.BrowseService](injector)
	if err != nil {
		zl.Fatal("init browse service", zap.Error(err))
	}
	maintSvc, err := do.Invoke[service.MaintenanceService](injector)
	if err != nil {
		zl.Fatal("init maintenance service", zap.Error(err))
	}

	router := server.NewRouter(cfg, zl, server.Handlers{
		Upload:      handler.NewUploadHandler(uploadSvc),
		File:        handler.NewFileHandler(fileSvc, cfg.App.BaseURL),
		Browse:      handler.NewBrowseHandler(browseSvc, fileSvc),
		Maintenance: handler.NewMaintenanceHandler(maintSvc),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	if cfg.Queue.URL != "" {
		if pub, err := do.Invoke[*mq.Publisher](injector); err == nil {
			if err := pub.Close(); err != nil {
				zl.Error("close publisher", zap.Error(err))
			}
		}
	}
	if db, err := do.Invoke[*gorm.DB](injector); err == nil {
		if err := database.Close(db); err != nil {
			zl.Error("close database", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Error("shutdown tracing", zap.Error(err))
	}
}
