// Command server exposes the scored listings and market price brackets over
// a read-only HTTP API.
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

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/handlers"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting kakaku API", logger.Fields{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, logger.Fields{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to apply schema", err, nil)
	}

	log.Info("Database connection established", logger.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	query := services.NewQueryService(
		repository.NewListingRepository(db),
		repository.NewMarketPriceRepository(db),
		cfg.Pipeline.MinSampleCount,
		log,
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		DB:          db,
		Query:       query,
		Log:         log,
		Env:         cfg.Server.Env,
		CORSOrigins: cfg.CORS.Origins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("Server listening", logger.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, logger.Fields{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
