//go:build ignore

// cbtest is a tool to verify circuit breaker behavior in the guarded proxy
// by driving a flaky upstream through failure and recovery.
//
// Run the flaky origin and the proxy first:
//
//	go run scripts/upstream.go -port 8081
//	go run ./cmd
//
// Then:
//
//	go run cbtest.go -proxy http://localhost:8080 -origin http://localhost:8081
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	var (
		proxyURL  = flag.String("proxy", "http://localhost:8080", "Guarded proxy URL")
		originURL = flag.String("origin", "http://localhost:8081", "Flaky origin control URL")
		requests  = flag.Int("requests", 20, "Requests per phase")
		cooldown  = flag.Duration("cooldown", 60*time.Second, "Breaker timeout configured on the proxy")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "━━━ CIRCUIT BREAKER TEST ━━━" + colorReset)

	// PHASE 1: Verify normal operation
	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	ok, _, _ := sendBatch(client, *proxyURL, *requests)
	if ok == 0 {
		fmt.Println(colorRed + "  ✗ No responses! Are the proxy and origin running?" + colorReset)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ %d/%d requests succeeded\n"+colorReset, ok, *requests)

	// PHASE 2: Break the origin and watch the circuit open
	fmt.Println(colorBlue + "━━━ PHASE 2: Origin Failure ━━━" + colorReset)
	if err := setFailureRate(client, *originURL, 1.0); err != nil {
		fmt.Println(colorRed+"  ✗ could not set failure rate:"+colorReset, err)
		os.Exit(1)
	}

	_, failed, denied := sendBatch(client, *proxyURL, *requests)
	fmt.Printf("  %d upstream errors, %d denied by the breaker\n", failed, denied)
	if denied == 0 {
		fmt.Println(colorRed + "  ✗ Breaker never opened" + colorReset)
		os.Exit(1)
	}
	fmt.Println(colorGreen + "  ✓ Breaker opened and fast-failed requests" + colorReset)

	// PHASE 3: Heal the origin and watch the circuit close again
	fmt.Println(colorBlue + "━━━ PHASE 3: Recovery ━━━" + colorReset)
	if err := setFailureRate(client, *originURL, 0.0); err != nil {
		fmt.Println(colorRed+"  ✗ could not reset failure rate:"+colorReset, err)
		os.Exit(1)
	}

	fmt.Printf("  Waiting %s for the cooldown to elapse...\n", *cooldown)
	time.Sleep(*cooldown + time.Second)

	ok, _, denied = sendBatch(client, *proxyURL, *requests)
	if ok == 0 || denied == *requests {
		fmt.Println(colorRed + "  ✗ Breaker never recovered" + colorReset)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ %d/%d requests succeeded after recovery\n"+colorReset, ok, *requests)
}

// sendBatch fires n requests and buckets the responses: 2xx, upstream 5xx,
// and breaker denials (503 from the proxy itself).
func sendBatch(client *http.Client, proxyURL string, n int) (ok, failed, denied int) {
	for i := 0; i < n; i++ {
		resp, err := client.Get(proxyURL)
		if err != nil {
			failed++
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			ok++
		case resp.StatusCode == http.StatusServiceUnavailable:
			denied++
		default:
			failed++
		}
	}
	return ok, failed, denied
}

func setFailureRate(client *http.Client, originURL string, rate float64) error {
	url := fmt.Sprintf("%s/control?rate=%.2f", originURL, rate)
	resp, err := client.Post(url, "text/plain", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control endpoint returned %d", resp.StatusCode)
	}
	return nil
}
