package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arcvats/arodha/breaker"
	"github.com/arcvats/arodha/internal/metrics"
	"github.com/arcvats/arodha/internal/upstream"
)

// Handler proxies requests to a single upstream under circuit breaker
// protection. Requests denied by the breaker are answered with 503 without
// touching the upstream; admitted requests report their outcome back, with
// any 5xx response counted as a failure.
type Handler struct {
	logger    *slog.Logger
	breaker   *breaker.CircuitBreaker
	upstream  *upstream.Upstream
	collector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func NewHandler(logger *slog.Logger, cb *breaker.CircuitBreaker, up *upstream.Upstream, collector *metrics.Collector) *Handler {
	return &Handler{
		logger:    logger,
		breaker:   cb,
		upstream:  up,
		collector: collector,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	h.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("upstream", h.upstream.URL().String()))

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("Request denied by circuit breaker",
			slog.String("client", clientIP),
			slog.String("breaker", h.breaker.Name()),
			slog.String("state", h.breaker.State().String()),
			slog.Any("err", err))

		h.emitEvent(metrics.Event{
			Type:      metrics.EventRejected,
			Timestamp: time.Now(),
			Breaker:   h.breaker.Name(),
			Reason:    denialReason(err),
		})

		w.Header().Set("Retry-After", "1")
		http.Error(w, "Upstream unavailable", http.StatusServiceUnavailable)
		return
	}

	h.emitEvent(metrics.Event{
		Type:      metrics.EventAdmitted,
		Timestamp: time.Now(),
		Breaker:   h.breaker.Name(),
	})

	w.Header().Set("X-Upstream-Server", h.upstream.URL().String())

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	// The reverse proxy panics with http.ErrAbortHandler when the client
	// disconnects mid-response; net/http recovers that above us, so the
	// outcome must be recorded before the panic escapes or the admitted slot
	// is never paired and a half-open quota leaks.
	defer func() {
		duration := time.Since(start)

		outcome := outcomeFromStatus(wrapped.statusCode)
		if rec := recover(); rec != nil {
			outcome = errAborted
			defer panic(rec)
		}

		h.breaker.Record(outcome)
		h.upstream.RecordResponse(duration)

		h.emitEvent(metrics.Event{
			Type:       metrics.EventOutcome,
			Timestamp:  time.Now(),
			Breaker:    h.breaker.Name(),
			Success:    outcome == nil,
			Duration:   duration,
			StatusCode: wrapped.statusCode,
		})
	}()

	h.upstream.ReverseProxy().ServeHTTP(wrapped, r)
}

// errAborted is the outcome reported when the proxy aborts mid-response.
var errAborted = errors.New("proxying aborted")

// outcomeFromStatus maps an upstream response to the outcome reported to the
// breaker. Server errors count as failures; everything below 500, including
// client errors, is the upstream working as intended.
func outcomeFromStatus(statusCode int) error {
	if statusCode >= http.StatusInternalServerError {
		return fmt.Errorf("upstream returned %d", statusCode)
	}
	return nil
}

func denialReason(err error) string {
	switch {
	case breaker.IsOpen(err):
		return "open_circuit"
	case breaker.IsTooManyRequests(err):
		return "too_many_requests"
	default:
		return "unknown"
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (h *Handler) emitEvent(event metrics.Event) {
	if h.collector == nil {
		return
	}

	h.collector.Emit(event)
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
