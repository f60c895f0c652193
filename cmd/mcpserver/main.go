package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freshmart/catalog-mcp/internal/config"
	"github.com/freshmart/catalog-mcp/internal/database"
	"github.com/freshmart/catalog-mcp/internal/handler"
	"github.com/freshmart/catalog-mcp/internal/mcp"
	"github.com/freshmart/catalog-mcp/internal/middleware"
	"github.com/freshmart/catalog-mcp/internal/repository"
	"github.com/freshmart/catalog-mcp/internal/service"
	"github.com/freshmart/catalog-mcp/internal/store"
	"github.com/freshmart/catalog-mcp/internal/transport"
)

const (
	serverName    = "freshmart-catalog"
	serverVersion = "1.0.0"
)

// main is the application entrypoint for the catalog MCP server.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger. Always stderr: with the stdio transport, stdout
	// belongs to the JSON-RPC stream and must stay clean.
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("transport", cfg.Transport).Str("store", cfg.StoreBackend).Msg("starting catalog mcp server")

	// 3. Connect the document store
	st, err := newStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("store connection failed")
		fmt.Fprintf(os.Stderr, "store connection failed: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	log.Info().Msg("document store connected")

	// 4. Wire the catalog engine and dispatcher
	repo := repository.NewCatalogRepository(st)
	catalogSvc := service.NewCatalogService(repo, cfg.StoreTimeout)
	info := mcp.ServerInfo{Name: serverName, Version: serverVersion}
	dispatcher := mcp.NewDispatcher(catalogSvc, info)

	// 5. Serve on the selected transport
	switch cfg.Transport {
	case config.TransportStdio:
		runStdio(dispatcher)
	case config.TransportHTTP:
		runHTTP(cfg, dispatcher, st, info)
	}
}

// newStore builds the configured document-store backend. The postgres path
// runs migrations before handing the handle over.
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Connect(&cfg.DB)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info().Msg("migrations completed successfully")
		return store.NewPostgresStore(db), nil
	default:
		return store.NewRedisStore(&cfg.Redis)
	}
}

// runStdio serves line-delimited JSON-RPC on stdin/stdout until EOF or a
// termination signal.
func runStdio(dispatcher *mcp.Dispatcher) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := transport.NewStdio(dispatcher, os.Stdin, os.Stdout, log.Logger)
	if err := t.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("stdio transport failed")
		os.Exit(1)
	}
	log.Info().Msg("stdio transport exited")
}

// runHTTP serves the HTTP transport with graceful shutdown.
func runHTTP(cfg *config.Config, dispatcher *mcp.Dispatcher, st store.Store, info mcp.ServerInfo) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())

	h := handler.NewMCPHandler(dispatcher, st, info)
	setupRoutes(router, h)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, h *handler.MCPHandler) {
	router.GET("/", h.GetRoot)
	router.GET("/health", h.GetHealth)

	// Direct REST surface
	router.GET("/tools", h.ListTools)
	router.POST("/tools/:name", h.CallTool)

	// JSON-RPC surface
	mcpGroup := router.Group("/mcp")
	{
		mcpGroup.POST("/server/initialize", h.RPCInitialize)
		mcpGroup.POST("/tools/list", h.RPCToolsList)
		mcpGroup.POST("/tools/call", h.RPCToolsCall)
		mcpGroup.POST("/request", h.RPCRequest)
		mcpGroup.POST("/notification", h.RPCNotification)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
