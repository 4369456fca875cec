//go:build ignore

// Upstream is a simple test HTTP origin used for exercising the guarded
// proxy. Its failure rate can be set at startup and changed at runtime, which
// makes it easy to watch the circuit breaker trip and recover.
//
// Usage:
//
//	go run upstream.go -port 8081 -failure-rate 0.0
//
// Endpoints:
//
//	GET  /          returns 200, or 500 at the configured failure rate
//	GET  /health    always returns 200
//	POST /control?rate=0.8   changes the failure rate
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
)

type flakyOrigin struct {
	mutex       sync.Mutex
	failureRate float64
}

func (o *flakyOrigin) rate() float64 {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.failureRate
}

func (o *flakyOrigin) setRate(rate float64) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.failureRate = rate
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failureRate := flag.Float64("failure-rate", 0.0, "fraction of requests answered with 500")
	flag.Parse()

	origin := &flakyOrigin{failureRate: *failureRate}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < origin.rate() {
			log.Printf("%s %s -> 500", r.Method, r.URL.Path)
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}

		log.Printf("%s %s -> 200", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"port":   *port,
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/control", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		rate, err := strconv.ParseFloat(r.URL.Query().Get("rate"), 64)
		if err != nil || rate < 0 || rate > 1 {
			http.Error(w, "rate must be between 0 and 1", http.StatusBadRequest)
			return
		}

		origin.setRate(rate)
		log.Printf("failure rate set to %.2f", rate)
		fmt.Fprintf(w, "failure rate set to %.2f\n", rate)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("flaky origin listening on %s (failure rate %.2f)", addr, *failureRate)
	log.Fatal(http.ListenAndServe(addr, mux))
}
