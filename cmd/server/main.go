package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/callpulse/call-engine/internal/calls"
	"github.com/callpulse/call-engine/internal/metrics"
	"github.com/callpulse/call-engine/internal/poller"
	"github.com/callpulse/call-engine/internal/quote"
	"github.com/callpulse/call-engine/internal/store"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote source ---
	quoteURL := os.Getenv("QUOTE_API_URL")
	if quoteURL == "" {
		quoteURL = "http://localhost:9000"
		slog.Warn("QUOTE_API_URL not set, using default", "url", quoteURL)
	}
	provider := quote.NewHTTPProvider(quoteURL, 10*time.Second)

	maxJump := decimal.NewFromFloat(0.5)
	if raw := os.Getenv("MAX_PRICE_JUMP"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			slog.Error("invalid MAX_PRICE_JUMP", "value", raw, "err", err)
			os.Exit(1)
		}
		maxJump = v
	}
	guard := quote.NewGuard(maxJump)

	// --- WebSocket hub ---
	wsHub := calls.NewWSHub()
	go wsHub.Run()

	// --- Background poller ---
	pollInterval := time.Minute
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil {
			slog.Error("invalid POLL_INTERVAL", "value", raw, "err", err)
			os.Exit(1)
		}
		pollInterval = v
	}
	p := poller.New(st, provider, guard, wsHub, pollInterval)

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go p.Start(pollCtx)

	// Nightly maintenance: repair legacy inconsistencies and age out stale
	// swing calls.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if n, err := p.RunRepair(pollCtx); err != nil {
					slog.Error("repair pass failed", "err", err)
				} else if n > 0 {
					slog.Info("repair pass complete", "repaired", n)
				}
				if n, err := p.RunExpiry(pollCtx, time.Now().UTC()); err != nil {
					slog.Error("expiry pass failed", "err", err)
				} else if n > 0 {
					slog.Info("expiry pass complete", "expired", n)
				}
			}
		}
	}()

	// --- Call service ---
	callSvc := calls.NewService(st, p, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"call-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time call state updates.
		r.Get("/ws", wsHub.HandleWS)

		// Call management.
		r.Get("/calls", callSvc.ListCalls)
		r.Post("/calls", callSvc.CreateCall)
		r.Get("/calls/{callID}", callSvc.GetCall)
		r.Post("/calls/{callID}/check", callSvc.CheckCall)
		r.Post("/calls/{callID}/publish", callSvc.PublishCall)

		// Evaluation and maintenance.
		r.Post("/poll", callSvc.RunPoll)
		r.Post("/maintenance/repair", callSvc.RunRepair)
		r.Post("/maintenance/expire", callSvc.RunExpiry)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("call-engine listening", "port", port, "poll_interval", pollInterval.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down call-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("call-engine stopped")
}
