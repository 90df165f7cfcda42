// main.go
// PetSOS Dispatch API
// Serves the SOS case engine over HTTP, backed by Firestore or memory

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"petsos/barcode"
	"petsos/config"
	"petsos/db"
	"petsos/handlers"
	"petsos/metrics"
	"petsos/middleware"
	"petsos/notify"
	"petsos/sos"
)

const version = "1.0.0"

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := cfg.NewLogger()
	if envErr != nil {
		logger.Info("⚠️  No .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("❌ Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
	}).Info("🚀 Starting PetSOS API Server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Case service
	svc, closeBackend, err := newCaseService(ctx, cfg, logger, collector)
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to initialize SOS service")
	}
	defer closeBackend()
	defer svc.Close()

	// Optional Redis mirror of every snapshot
	if cfg.Redis.Addr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("❌ Failed to connect to Redis")
		}
		defer client.Close()

		sub, err := notify.NewRedisPublisher(client, cfg.Redis.Channel, logger).Attach(ctx, svc)
		if err != nil {
			logger.WithError(err).Fatal("❌ Failed to attach Redis publisher")
		}
		defer sub.Cancel()
		logger.WithField("channel", cfg.Redis.Channel).Info("📡 Publishing snapshots to Redis")
	}

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	rateLimiter.CleanupOldLimiters(ctx, time.Hour)
	logger.WithFields(logrus.Fields{
		"requests": cfg.RateLimit.Requests,
		"window":   cfg.RateLimit.Window.String(),
	}).Info("🛡️  Rate limiter initialized")

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	apiRoutes := handlers.Register(mux,
		handlers.NewSOSHandler(svc, logger),
		handlers.NewLiveHandler(svc, cfg.CORS.AllowedOrigins, logger),
		handlers.NewBarcodeHandler(barcode.NewGenerator(), logger),
	)
	collector.TrackRoutes(append(apiRoutes, "/health", "/metrics")...)

	// Global middleware
	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)
	handler = middleware.RequestLogger(logger, collector)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("✅ Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("❌ Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("❌ Server forced to shutdown")
	}

	logger.Info("✅ Server stopped gracefully")
}

// newCaseService picks the Firestore-backed service when credentials are
// configured and falls back to memory otherwise. The returned func releases
// the backend after the service has been closed.
func newCaseService(ctx context.Context, cfg *config.Config, logger *logrus.Logger, rec sos.Recorder) (*sos.Service, func(), error) {
	opts := []sos.Option{sos.WithLogger(logger), sos.WithRecorder(rec)}

	if !cfg.Firebase.Enabled() {
		logger.Warn("⚠️  Firestore not configured, cases are kept in memory only")
		return sos.NewMemoryService(opts...), func() {}, nil
	}

	firestoreDB, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := sos.NewRemoteService(ctx, firestoreDB, opts...)
	if err != nil {
		firestoreDB.Close()
		return nil, nil, err
	}
	return svc, func() { firestoreDB.Close() }, nil
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   version,
	})
}
