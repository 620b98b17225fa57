package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/cart"
	"github.com/vasiliy-maslov/gamestore-backend/internal/config"
	"github.com/vasiliy-maslov/gamestore-backend/internal/db"
	"github.com/vasiliy-maslov/gamestore-backend/internal/handler"
	"github.com/vasiliy-maslov/gamestore-backend/internal/order"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "gamestore").Logger()

	log.Info().Msg("Gamestore backend starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	cartRepo := cart.NewRepository(dbConn.Pool)
	cartService := cart.NewService(cartRepo)
	cartHandler := handler.NewCartHandler(cartService)

	orderRepo := order.NewRepository(dbConn.Pool)
	orderService := order.NewService(orderRepo)
	orderHandler := handler.NewOrderHandler(orderService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	cartHandler.RegisterRoutes(router)
	orderHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
