package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/locker/memory"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/sqldb"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/config"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/usecase"
	"github.com/vadimbarashkov/expiring-url-shortener/pkg/database"
	"github.com/vadimbarashkov/expiring-url-shortener/pkg/ratelimit"
	"github.com/vadimbarashkov/expiring-url-shortener/pkg/redis"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/delivery/http"
	redislocker "github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/locker/redis"
)

func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("url-shortener", httplog.Options{
		JSON:             cfg.Env == config.EnvProd,
		LogLevel:         cfg.LogLevel,
		Concise:          cfg.Env != config.EnvProd,
		RequestHeaders:   cfg.Env != config.EnvProd,
		MessageFieldName: "message",
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	if err := database.RunMigrations(cfg.Storage.Driver, cfg.MigrationURL()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}
	logger.Info("migrations applied", slog.String("driver", cfg.Storage.Driver))

	db, err := database.New(
		ctx,
		cfg.Storage.Driver,
		cfg.DSN(),
		database.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		database.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		database.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		database.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()
	logger.Info("connected to database", slog.String("driver", cfg.Storage.Driver))

	var redisClient *goredis.Client

	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	urlRepo := sqldb.NewURLRepository(db)
	urlUseCase := usecase.New(urlRepo, newURLLocker(cfg, redisClient), usecase.Policy{
		ShortCodeLength:      cfg.ShortCodeLength,
		DefaultExpiry:        cfg.Expiry.Default,
		ResetCreatedOnRotate: cfg.Expiry.ResetCreatedOnRotate,
	})

	routerOpts := []delivery.RouterOption{
		delivery.WithDocsPath(cfg.HTTPServer.DocsPath),
	}

	if cfg.RateLimit.Enabled {
		var lim *limiter.Limiter

		lim, err = ratelimit.New(cfg.RateLimit.Rate, redisClient)
		if err != nil {
			return fmt.Errorf("%s: failed to create rate limiter: %w", op, err)
		}
		routerOpts = append(routerOpts, delivery.WithRateLimiter(lim))
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, urlUseCase, routerOpts...),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

type urlLocker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// newURLLocker returns nil when locking is disabled, which the use case
// treats as no locking.
func newURLLocker(cfg *config.Config, client *goredis.Client) urlLocker {
	switch cfg.Locking.Driver {
	case config.LockingDriverRedis:
		return redislocker.NewURLLocker(client,
			redislocker.WithTTL(cfg.Locking.TTL),
			redislocker.WithRetryInterval(cfg.Locking.RetryInterval),
		)
	case config.LockingDriverMemory:
		return memory.NewURLLocker()
	default:
		return nil
	}
}
