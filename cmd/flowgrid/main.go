// Command flowgrid runs the flow execution service: compile and run
// endpoints over the dispatcher, the SSE and WebSocket event bridges, and
// the Prometheus metrics handler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgrid/flowgrid/config"
	"github.com/flowgrid/flowgrid/core/admission"
	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/dispatch"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/server/sse"
	"github.com/flowgrid/flowgrid/server/ws"
	"github.com/flowgrid/flowgrid/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := nodes.Builtin()
	adapters := handle.NewAdapterRegistry()
	slots := admission.NewMemorySlots(cfg.MaxSlotsPerUser)

	var stream events.Stream
	var runs dispatch.RunStore

	switch cfg.StreamBackend {
	case config.StreamPostgres:
		db := storage.Open(cfg.PostgresDSN)
		defer func() { _ = db.Close() }()

		if err := storage.Ping(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("postgres unreachable")
		}

		postgresStream := events.NewPostgresStream(db)
		if err := postgresStream.CreateTable(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to create event table")
		}
		stream = postgresStream

		caseRuns := storage.NewTestCaseRuns(db)
		if err := caseRuns.CreateTable(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to create test case run table")
		}
		runs = caseRuns
	default:
		stream = events.NewMemoryStream()
		runs = storage.NewMemoryTestCaseRuns()
	}

	dispatcher := dispatch.NewDispatcher(registry, adapters, stream, slots, runs, logger,
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithLimits(cfg.SoftLimit, cfg.HardLimit),
	)

	secret := []byte(cfg.JWTSecret)
	api := newAPI(dispatcher, secret, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /flows/{flow_id}/compile", api.handleCompile)
	mux.HandleFunc("POST /flows/{flow_id}/run", api.handleRun)
	mux.HandleFunc("POST /flows/{flow_id}/run-test", api.handleRunTest)
	mux.Handle("GET /user-events/stream/{user_id}/events", sse.NewHandler(stream, secret, logger))
	mux.Handle("GET /user-events/stream/{user_id}/ws", ws.NewHandler(stream, secret, logger))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Str("stream_backend", cfg.StreamBackend).Msg("flowgrid listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
