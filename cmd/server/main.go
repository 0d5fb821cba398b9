package main // Entry point package

import (
	"context"   // Cancels the background consumer on shutdown
	"errors"    // Distinguishes a clean server close
	"log"       // Logging library
	"net/http"  // http.ErrServerClosed
	"os"        // Signal handling
	"os/signal" // Graceful shutdown on SIGINT/SIGTERM
	"syscall"   // SIGTERM
	"time"      // Shutdown timeout

	"github.com/labstack/echo/v4"                    // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo request logger and recovery

	"github.com/iliyamo/smart-seat-booking/internal/config"     // Internal config loader
	"github.com/iliyamo/smart-seat-booking/internal/database"   // MySQL connection
	"github.com/iliyamo/smart-seat-booking/internal/handler"    // Booking handlers
	"github.com/iliyamo/smart-seat-booking/internal/middleware" // Rate limiter and cache
	"github.com/iliyamo/smart-seat-booking/internal/queue"      // Allocation event consumer
	"github.com/iliyamo/smart-seat-booking/internal/repository" // Allocation audit trail
	"github.com/iliyamo/smart-seat-booking/internal/router"     // Internal router setup
	queue_publisher "github.com/iliyamo/smart-seat-booking/internal/service"
	"github.com/iliyamo/smart-seat-booking/internal/session" // In-memory seating charts
)

func main() {
	cfg := config.Load() // Load environment config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewStore(time.Duration(cfg.SessionTTLMin) * time.Minute)

	// Audit trail is optional; the chart API works without it.
	var allocationLog handler.AllocationLog
	if cfg.DatabaseEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo := repository.NewAllocationRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("database schema: %v", err)
		}
		allocationLog = repo
	} else {
		log.Printf("DB_HOST not set; allocation history disabled")
	}

	var events handler.EventPublisher
	if cfg.EventsEnabled {
		events = queue_publisher.NewPublisher(cfg.RabbitURL)
		go func() {
			if err := queue.StartAllocationConsumer(ctx, cfg.RabbitURL); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("allocation-consumer: %v", err)
			}
		}()
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and chart cache disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb).WithSessionCheck(sessions.Alive)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	h := handler.NewBookingHandler(sessions, allocationLog, events, cfg.JWTSecret, cfg.TokenTTLMin)
	router.RegisterRoutes(e, sessions) // Register application routes
	router.RegisterBooking(e, h, cfg.JWTSecret, limiter, cache)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
