package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/praxis-lms/praxis/internal/app"
	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/auth"
	"github.com/praxis-lms/praxis/internal/courses"
	"github.com/praxis-lms/praxis/internal/guard"
	"github.com/praxis-lms/praxis/internal/platform/cache"
	"github.com/praxis-lms/praxis/internal/platform/db"
	"github.com/praxis-lms/praxis/internal/rbac"
	"github.com/praxis-lms/praxis/internal/roles"
	"github.com/praxis-lms/praxis/internal/session"
	"github.com/praxis-lms/praxis/internal/store"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec := session.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL)

	scoped := store.NewScopedStore(store.NewPGStore(pool), logger, cfg.StrictTenancy(), true)
	sink := audit.NewSink(scoped.Unscoped(), logger, cfg.IsProduction())

	permCache := rbac.NewPermissionCache(60 * time.Second)
	resolver := rbac.NewResolver(rbac.NewDirectory(pool), rbac.NewCatalog(pool), permCache, logger, cfg.IsProduction())
	rbacService := rbac.NewService(pool, permCache, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	limiter := auth.NewLoginLimiter(redisClient, logger, cfg.LoginRateLimit, cfg.LoginRateWindow)

	g := guard.New(logger, codec, resolver, sink, authRepo, cfg.IsProduction())

	authHandler := auth.NewHandler(authService, codec, limiter, sink, permCache, logger, cfg.IsProduction())
	coursesHandler := courses.NewHandler(courses.NewService(scoped, resolver), logger)
	rolesHandler := roles.NewHandler(rbacService, sink, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Codec:          codec,
		Guard:          g,
		AuthHandler:    authHandler,
		CoursesHandler: coursesHandler,
		RolesHandler:   rolesHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
