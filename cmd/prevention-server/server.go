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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clearpath/prevention/internal/config"
	"github.com/clearpath/prevention/internal/domain/appointment"
	"github.com/clearpath/prevention/internal/domain/survey"
	"github.com/clearpath/prevention/internal/platform/auth"
	"github.com/clearpath/prevention/internal/platform/cache"
	"github.com/clearpath/prevention/internal/platform/db"
	"github.com/clearpath/prevention/internal/platform/middleware"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func appointmentSettings(cfg *config.Config) appointment.Settings {
	s := appointment.DefaultSettings()
	s.CheckIn = appointment.CheckInWindow{OpensBefore: cfg.CheckInOpensBefore, ClosesAfter: cfg.CheckInClosesAfter}
	s.ExpiryGrace = cfg.ExpiryGrace
	s.SweepBatchSize = cfg.SweepBatchSize
	return s
}

// newSessionStore picks Redis when REDIS_URL is set and falls back to an
// in-process store otherwise. The returned check is nil for the fallback.
func newSessionStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (survey.SessionStore, *db.Check, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, survey sessions are kept in memory")
		return survey.NewMemorySessionStore(cfg.SurveySessionTTL), nil, func() {}, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	check := db.Check{Name: "redis", Ping: cache.Ping(rdb)}
	return survey.NewRedisSessionStore(rdb, cfg.SurveySessionTTL), &check, func() { _ = rdb.Close() }, nil
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// newRouter builds the echo instance with the global middleware chain,
// health endpoints and every API handler mounted under /api/v1.
func newRouter(cfg *config.Config, logger zerolog.Logger, health echo.HandlerFunc, handlers ...routeRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	e.GET("/health", health)
	e.GET("/health/db", health)

	// Rate limiting middleware
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg), middleware.RequestTimeout(requestTimeout))
	for _, h := range handlers {
		h.RegisterRoutes(apiV1)
	}
	return e
}

func runServer(ctx context.Context) error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Survey sessions
	sessions, redisCheck, closeSessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer closeSessions()

	checks := []db.Check{db.PoolCheck(pool)}
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}
	health := db.HealthHandler(func() *db.PoolStats { return db.GetPoolStats(pool) }, checks...)

	// Domain services
	surveySvc := survey.NewService(survey.NewSurveyRepoPG(pool), survey.NewSubmissionRepoPG(pool), sessions)
	if sv, err := surveySvc.EnsureBuiltin(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not store the built-in CRAFFT survey")
	} else {
		logger.Info().Str("survey_id", sv.ID.String()).Msg("built-in CRAFFT survey available")
	}

	apptSvc := appointment.NewService(
		appointment.NewScheduleRepoPG(pool),
		appointment.NewAppointmentRepoPG(pool),
		appointment.RoomLinkProvider{BaseURL: cfg.MeetingBaseURL},
		appointmentSettings(cfg),
		logger,
	)
	sweeper, err := appointment.NewSweeper(apptSvc, cfg.SweepSchedule, logger)
	if err != nil {
		return err
	}

	e := newRouter(cfg, logger, health, survey.NewHandler(surveySvc), appointment.NewHandler(apptSvc))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx)
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
