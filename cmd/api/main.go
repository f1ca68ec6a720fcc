package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"quoteflow/auth"
	"quoteflow/db"
	"quoteflow/garage"
	"quoteflow/httpapi"
	"quoteflow/quote"
	"quoteflow/request"
)

const defaultSweepInterval = time.Minute

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	authService := auth.NewService(auth.NewRepository(pool), jwtSecret)
	garageService := garage.NewService(garage.NewRepository(pool))

	quoteStore := quote.NewStore(pool)
	quoteService := quote.NewService(pool, quoteStore, nil)

	requestRepo := request.NewRepository(pool)
	requestService := request.NewService(pool, requestRepo)
	projection := request.NewProjection(requestRepo, quoteStore, quoteService.ExpiryConfig())
	sweeper := request.NewSweeper(pool)

	handler := httpapi.NewHandler(quoteService, requestService, projection, authService, garageService)
	router := httpapi.NewRouter(handler, authService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("api listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := sweeper.Run(ctx, sweepInterval(), func(n int64) {
			log.Printf("expired %d lapsed quote requests", n)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("api: %v", err)
	}
}

func sweepInterval() time.Duration {
	raw := os.Getenv("SWEEP_INTERVAL")
	if raw == "" {
		return defaultSweepInterval
	}
	interval, err := time.ParseDuration(raw)
	if err != nil || interval <= 0 {
		log.Printf("invalid SWEEP_INTERVAL %q, using %s", raw, defaultSweepInterval)
		return defaultSweepInterval
	}
	return interval
}
