package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge/internal/config"
	"github.com/carebridge/carebridge/internal/domain/appointment"
	"github.com/carebridge/carebridge/internal/domain/conversation"
	"github.com/carebridge/carebridge/internal/domain/document"
	"github.com/carebridge/carebridge/internal/domain/identity"
	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/blobstore"
	"github.com/carebridge/carebridge/internal/platform/calendar"
	"github.com/carebridge/carebridge/internal/platform/db"
	"github.com/carebridge/carebridge/internal/platform/llm"
	"github.com/carebridge/carebridge/internal/platform/middleware"
	"github.com/carebridge/carebridge/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carebridge",
		Short: "CareBridge appointment and patient-messaging backend",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate("up")
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate("status")
			},
		},
	)
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Platform collaborators
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), "carebridge", cfg.TokenTTL)
	revoked := auth.NewTokenRevocationStore()
	defer revoked.Close()

	hub := websocket.NewHub()
	signer := blobstore.NewURLSigner([]byte(cfg.JWTSecret), cfg.SignedURLTTL)
	blobs := blobstore.NewInMemoryBlobStore()
	assistant := llm.NewOpenAIClient(cfg.AssistantAPIKey, cfg.AssistantBaseURL, cfg.AssistantModel)

	var cal calendar.Client = calendar.NopClient{}
	if cfg.CalendarBaseURL != "" {
		cal = calendar.NewHTTPClient(cfg.CalendarBaseURL, cfg.CalendarAPIKey)
	}

	// Domain services
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewProfileRepoPG(pool),
		db.NewTxRunner(pool),
		issuer, revoked, cfg.TokenTTL,
	)
	appointmentSvc := appointment.NewService(
		appointment.NewRepoPG(pool),
		identity.NewDoctorDirectory(identitySvc),
		cal, hub, logger,
	)
	documentSvc := document.NewService(document.NewRepoPG(pool), blobs, signer, cfg.PublicBaseURL, assistant, logger)
	conversationSvc := conversation.NewService(
		conversation.NewConversationRepoPG(pool),
		conversation.NewMessageRepoPG(pool),
		document.NewConversationSource(documentSvc),
		conversation.NewHTTPTextFetcher(nil),
		assistant, hub,
		cfg.DocFetchTimeout, cfg.DocFetchConcurrency,
		logger,
	)

	// HTTP wiring
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.BodyLimit("1M", "30M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	public := e.Group("/api")
	api := e.Group("/api", auth.Middleware(issuer, revoked))

	identity.NewHandler(identitySvc).RegisterRoutes(public, api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	document.NewHandler(documentSvc).RegisterRoutes(public, api)
	conversation.NewHandler(conversationSvc).RegisterRoutes(api)
	websocket.NewWebSocketHandler(hub).RegisterRoutes(e.Group(""))

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runMigrate(action string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrator := db.NewMigrator(pool, "migrations")

	switch action {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("migrations complete")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
		}
	}
	return nil
}
