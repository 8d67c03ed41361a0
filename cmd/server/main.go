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

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/config"
	"sala-situacao/internal/handlers"
	"sala-situacao/internal/repository"
	"sala-situacao/internal/services"
	"sala-situacao/pkg/database"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

const version = "1.0.0"

// panicLogger routes gorilla's recovery output into the structured log
type panicLogger struct {
	logger *logging.StructuredLogger
}

func (p panicLogger) Println(v ...interface{}) {
	p.logger.Error(context.Background(), "[PANIC] Recovered from handler panic", logging.Fields{
		"panic": fmt.Sprint(v...),
	}, nil)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("sala-situacao-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting situation room API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"timezone":    cfg.Location().String(),
	})

	metricsCollector := metrics.NewCollector("sala_situacao", prometheus.DefaultRegisterer)

	db, err := database.NewPostgresDB(&database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	seriesRepo := repository.NewSeriesRepository(db, logger, metricsCollector)
	normalizer := aggregation.NewNormalizer(cfg.Location())

	aggregationService := services.NewAggregationService(seriesRepo, normalizer, logger, metricsCollector)
	comparativeService := services.NewComparativeService(seriesRepo, normalizer, logger, metricsCollector)
	exportService := services.NewExportService(logger, metricsCollector)

	dashboardHandler := handlers.NewDashboardHandler(
		aggregationService,
		comparativeService,
		exportService,
		seriesRepo,
		cfg.Location(),
		logger,
		metricsCollector,
	)

	router := mux.NewRouter()
	dashboardHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = router
	handler = gorillahandlers.CompressHandler(handler)
	handler = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", handlers.RequestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{handlers.RequestIDHeader, "Content-Disposition"}),
	)(handler)
	handler = gorillahandlers.RecoveryHandler(gorillahandlers.RecoveryLogger(panicLogger{logger}))(handler)
	handler = gorillahandlers.LoggingHandler(os.Stdout, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
