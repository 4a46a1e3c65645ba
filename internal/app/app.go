package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffeeshop/internal/auth"
	"coffeeshop/internal/config"
	"coffeeshop/internal/core"
	"coffeeshop/internal/modules/drinks"
	"coffeeshop/internal/modules/host"
	"coffeeshop/internal/storage"
	"coffeeshop/internal/storage/postgres"
	"coffeeshop/internal/storage/sqlite"
	"coffeeshop/internal/transports/web"
)

// App агрегирует зависимости сервиса.
type App struct {
	Store  storage.Store
	Drinks *drinks.Service
	Web    *web.Adapter
	Config config.Config

	logger *slog.Logger
}

// OpenStore открывает хранилище выбранного драйвера и применяет миграции.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, "":
		st, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// NewVerifier строит проверку JWT по секции auth.
// Статический PEM-ключ имеет приоритет над JWKS.
func NewVerifier(ctx context.Context, cfg config.Config) (*auth.Verifier, error) {
	var (
		keyfunc jwt.Keyfunc
		err     error
	)
	switch {
	case cfg.Auth.PublicKeyPath != "":
		keyfunc, err = auth.NewStaticKeyfunc(cfg.Auth.PublicKeyPath)
	case cfg.Auth.JWKSURL != "":
		keyfunc, err = auth.NewJWKSKeyfunc(ctx, cfg.Auth.JWKSURL)
	case cfg.Auth.Domain != "":
		keyfunc, err = auth.NewJWKSKeyfunc(ctx, auth.JWKSURL(cfg.Auth.Domain))
	default:
		return nil, errors.New("auth: one of public_key_path, jwks_url or domain is required")
	}
	if err != nil {
		return nil, fmt.Errorf("auth keys: %w", err)
	}

	issuer := cfg.Auth.Issuer
	if issuer == "" && cfg.Auth.Domain != "" {
		issuer = auth.IssuerURL(cfg.Auth.Domain)
	}
	return auth.NewVerifier(keyfunc, auth.Config{
		Issuer:     issuer,
		Audience:   cfg.Auth.Audience,
		Algorithms: cfg.Auth.Algorithms,
		Leeway:     time.Duration(cfg.Auth.LeewaySeconds) * time.Second,
	})
}

// NewApp строит приложение: хранилище, проверку токенов и HTTP-транспорт.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	verifier, err := NewVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	svc := drinks.NewService(st)
	webAdapter := web.NewAdapter(svc, verifier, core.NewClaimsAuthorizer(), st, host.NewProbe(), logger, web.Config{
		ListenAddr:      cfg.Web.ListenAddr,
		ReadTimeout:     time.Duration(cfg.Web.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:    time.Duration(cfg.Web.WriteTimeoutMS) * time.Millisecond,
		RequestTimeout:  time.Duration(cfg.Web.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout: time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
		MaxRequestBody:  cfg.Web.MaxBodyBytes,
		RateLimitRPS:    cfg.Web.RateLimitRPS,
		RateLimitBurst:  cfg.Web.RateLimitBurst,
	})

	return &App{
		Store:  st,
		Drinks: svc,
		Web:    webAdapter,
		Config: cfg,
		logger: logger,
	}, nil
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Reset пересоздает таблицу напитков с начальной записью.
func (a *App) Reset(ctx context.Context) error {
	if err := a.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	a.logger.Warn("drinks table reset", "seed", storage.SeedDrink.Title)
	return nil
}

// Serve запускает HTTP-транспорт и планировщик до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Web.Start(ctx); err != nil {
		return fmt.Errorf("start %s transport: %w", a.Web.Name(), err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Web.Stop(stopCtx)
	}()

	interval := time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	sched := core.NewScheduler(interval, a.logger)
	if days := a.Config.Storage.AuditRetentionDays; days > 0 {
		if err := sched.Add(core.Job{Name: "audit-prune", Run: a.pruneAudit(days)}); err != nil {
			return err
		}
	}

	sched.Start(ctx)
	return ctx.Err()
}

func (a *App) pruneAudit(days int) func(context.Context) error {
	return func(jobCtx context.Context) error {
		runCtx, cancel := context.WithTimeout(jobCtx, 10*time.Second)
		defer cancel()

		before := time.Now().AddDate(0, 0, -days)
		n, err := a.Store.PruneAudit(runCtx, before)
		if err != nil {
			return err
		}
		if n > 0 {
			a.logger.Info("audit pruned", "deleted", n, "before", before.Format(time.RFC3339))
		}
		return nil
	}
}
