package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meditrack/adherence-api/internal/config"
	"github.com/meditrack/adherence-api/internal/handler"
	authHandler "github.com/meditrack/adherence-api/internal/handler/auth"
	medicationHandler "github.com/meditrack/adherence-api/internal/handler/medication"
	"github.com/meditrack/adherence-api/internal/middleware"
	"github.com/meditrack/adherence-api/internal/repository/postgres"
	"github.com/meditrack/adherence-api/internal/router"
	authService "github.com/meditrack/adherence-api/internal/service/auth"
	medicationService "github.com/meditrack/adherence-api/internal/service/medication"
	"github.com/meditrack/adherence-api/pkg/auth"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Initialize services
	jwtSvc := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
	)
	authSvc := authService.NewService(userRepo, jwtSvc)
	medicationSvc := medicationService.NewService(medicationRepo)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	// Initialize handlers
	handler.RegisterValidators()
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	medicationH := medicationHandler.NewHandler(medicationSvc, outboxRepo)

	// Setup router
	r := router.NewRouter(
		authMiddleware,
		authH,
		medicationH,
		h,
		router.RouterConfig{
			RateLimit:     float64(cfg.Server.RateLimit),
			RateBurst:     cfg.Server.RateBurst,
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "meditrack_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
