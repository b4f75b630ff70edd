package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-curator/internal/app"
	"media-curator/internal/handlers"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/middleware"
	"media-curator/internal/startup"
)

// collectInterval is how often index gauges are refreshed.
const collectInterval = time.Minute

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig(os.Getenv(startup.EnvPrefix + "_CONFIG"))
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)
	metrics.InitializeMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, config)
	if err != nil {
		startup.LogFatal("Initialization error: %v", err)
	}

	a.Start(ctx)

	collector := metrics.NewCollector(a.DB, collectInterval)
	collector.Start()

	h := handlers.New(a.DB, a.Bin, a.Indexer, a.Rotator, a.Repairer, config)
	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	var handler http.Handler = router
	handler = middleware.Recover(handler)
	handler = middleware.Logger(middleware.DefaultLoggingConfig())(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go handleShutdown(srv, a, collector, cancel)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	<-shutdownDone
}

var shutdownDone = make(chan struct{})

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	h.Register(r)
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

func handleShutdown(srv *http.Server, a *app.App, collector *metrics.Collector, cancel context.CancelFunc) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Waiting for background tasks")
	cancel()
	if err := a.Close(ctx); err != nil {
		logging.Warn("Shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Tasks finished and stores closed")
	}

	startup.LogShutdownComplete()
}
