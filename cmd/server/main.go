// Command server runs the template service HTTP API.
//
//	@title			Template Service API
//	@version		1.0
//	@description	Versioned message templates with per-language activation and rendering.
//	@BasePath		/api/v1
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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/template-service/internal/cache"
	"github.com/tbourn/template-service/internal/config"
	"github.com/tbourn/template-service/internal/events"
	httpapi "github.com/tbourn/template-service/internal/http"
	"github.com/tbourn/template-service/internal/observability"
	"github.com/tbourn/template-service/internal/render"
	"github.com/tbourn/template-service/internal/repo"
	"github.com/tbourn/template-service/internal/seed"
	"github.com/tbourn/template-service/internal/services"
	"github.com/tbourn/template-service/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	engine := render.MustNew()
	svc := services.NewTemplateService(repo.NewTemplateStore(db), engine)
	svc.MaxRetries = cfg.VersionMaxRetries
	svc.IdempotencyTTL = cfg.IdempotencyTTL

	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(cfg.Redis)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; reads fall through to the database")
		}
		svc.Cache = rc
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer pub.Close()
		svc.Events = pub
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher initialized")
	}

	if cfg.SeedFile != "" {
		res, err := seed.LoadAndApply(ctx, svc, cfg.SeedFile)
		if err != nil {
			return err
		}
		log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Str("file", cfg.SeedFile).Msg("seed applied")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Templates: svc,
		Renderer:  services.NewRenderService(svc, engine),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
