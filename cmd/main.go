package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcvats/arodha/breaker"
	"github.com/arcvats/arodha/config"
	"github.com/arcvats/arodha/internal/guard"
	"github.com/arcvats/arodha/internal/httpserver"
	"github.com/arcvats/arodha/internal/metrics"
	"github.com/arcvats/arodha/internal/upstream"
	"github.com/arcvats/arodha/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	cb, err := buildBreaker(cfg, log, collector)
	if err != nil {
		log.Error("Failed to build circuit breaker", slog.Any("err", err))
		os.Exit(1)
	}

	up, err := buildUpstream(cfg)
	if err != nil {
		log.Error("Failed to initialize upstream",
			slog.String("url", cfg.Upstream.URL),
			slog.Any("err", err))
		os.Exit(1)
	}

	guardHandler := guard.NewHandler(log, cb, up, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(guardHandler, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Guarded proxy listening",
		slog.String("address", cfg.Server.Address),
		slog.String("upstream", cfg.Upstream.URL),
		slog.String("breaker", cb.Name()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting guarded proxy", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildBreaker turns the breaker config section into a CircuitBreaker whose
// transitions are logged and fed to the metrics collector.
func buildBreaker(cfg *config.Config, log *slog.Logger, collector *metrics.Collector) (*breaker.CircuitBreaker, error) {
	settings, err := cfg.Breaker.Settings()
	if err != nil {
		return nil, err
	}

	settings.OnStateChange = func(name string, from, to breaker.State) {
		log.Warn("Circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))

		if collector != nil {
			collector.Emit(metrics.Event{
				Type:    metrics.EventStateChanged,
				Breaker: name,
				From:    from,
				To:      to,
			})
		}
	}

	return breaker.New(settings)
}

func buildUpstream(cfg *config.Config) (*upstream.Upstream, error) {
	u, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, err
	}

	return upstream.New(u), nil
}
