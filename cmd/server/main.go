package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/chain"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/database"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/handler"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/jobs"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/middleware"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/redis"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	credentialRepo := repository.NewSessionCredentialRepository(db.DB)
	validationRepo := repository.NewValidationResultRepository(db.DB)
	feedbackRepo := repository.NewFeedbackAuthorizationRepository(db.DB)

	chains := chain.NewRegistry(chain.RegistryConfig{
		RPCEndpoints:          cfg.RPCEndpoints,
		AssociationRegistries: cfg.AssociationRegistries,
		ValidationRegistries:  cfg.ValidationRegistries,
		IdentityRegistries:    cfg.IdentityRegistries,
	})

	trustProvider := func(chainID int64) (service.TrustReader, error) {
		reader, err := chains.Trust(chainID)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
	identityProvider := func(chainID int64) (service.IdentityReader, error) {
		reader, err := chains.Identity(chainID)
		if err != nil {
			return nil, err
		}
		return service.NewCachedIdentityReader(reader, redisClient, chainID), nil
	}

	builder := delegation.NewContextBuilder(chains)
	submitter := service.NewSubmitter()
	associationService := service.NewAssociationService(trustProvider, submitter)
	processor := service.NewValidationProcessor(trustProvider, identityProvider, submitter, validationRepo)
	feedbackService := service.NewFeedbackService(identityProvider, associationService, feedbackRepo, cfg.FeedbackAuthTTL())

	authMiddleware := middleware.NewAuthMiddleware(cfg.APITokenHash)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)

	operationsHandler := handler.NewOperationsHandler(
		credentialRepo, builder, associationService, feedbackService, processor, validationRepo, feedbackRepo,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", operationsHandler.Routes())
	})

	validationJob := jobs.NewValidationJob(
		credentialRepo, feedbackRepo, validationRepo, builder, processor, cfg.ProcessorInterval(),
	)
	validationJob.Start()
	defer validationJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
