package main

import (
	"net/http"

	"github.com/arcvats/arodha/internal/guard"
	"github.com/arcvats/arodha/internal/metrics"
)

func setupRouter(guardHandler *guard.Handler, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", guardHandler.ServeHTTP)
	mux.HandleFunc("/metrics", metricsCollector.Handler())

	return mux
}
