//go:build !lambda
// +build !lambda

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// A missing .env is fine when variables are set directly.
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := server.LoadConfig()

	// Initialize logger first
	logger.InitLogger(cfg.Stage)
	defer func() { _ = logger.Sync() }()

	deps, err := server.InitializeHandlers(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize handlers", zap.Error(err))
	}
	defer deps.Close()

	router := gin.New()
	server.InitializeRoutes(router, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// A bulk batch with the default stagger finishes within a few seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
