package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Core synchronization primitives
	initOnce    sync.Once
	serverMutex sync.Mutex
	modeMutex   sync.Mutex
	currentSrv  *http.Server
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initRunMetrics()
		initAPIMetrics()

		registerRunMetrics()
		registerAPIMetrics()

		// Initialize metrics with default values so they appear in /metrics immediately
		LastRunTimestamp.Set(0)
		for _, kind := range errorKinds() {
			ErrorsTotal.WithLabelValues(kind)
		}
	})
}

// StartServer exposes /metrics and /health on addr. The listener is bound
// before returning so address errors surface to the caller.
func StartServer(addr string, logger zerolog.Logger) error {
	Init()

	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Debug().Str("addr", currentSrv.Addr).Msg("metrics server already running")
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", instrument("metrics", promhttp.Handler()))
	mux.Handle("/health", instrument("health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","healthy":true}`))
	})))

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: mux,
	}
	currentSrv = srv

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("metrics server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address of the running server, or "" if none
func Addr() string {
	serverMutex.Lock()
	defer serverMutex.Unlock()
	if currentSrv == nil {
		return ""
	}
	return currentSrv.Addr
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger zerolog.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}
	currentSrv = nil
}
