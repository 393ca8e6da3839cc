// Command load-test fires concurrent POST /webhook/{source} requests
// at a running relay and reports throughput and latency percentiles
// (scripts/load_test_webhook.py equivalent).
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

var sources = []string{"ocp", "confluent"}

var ocpPayloads = []map[string]any{
	{
		"status":      "firing",
		"labels":      map[string]any{"severity": "critical", "alertname": "HighCPU", "instance": "node-1"},
		"annotations": map[string]any{"summary": "CPU above 90%", "description": "Node node-1 CPU high"},
		"startsAt":    "2025-02-02T10:00:00Z",
	},
	{
		"status":      "firing",
		"labels":      map[string]any{"severity": "warning", "alertname": "DiskSpace", "job": "node"},
		"annotations": map[string]any{"summary": "Disk usage > 80%"},
		"startsAt":    "2025-02-02T10:05:00Z",
	},
}

var confluentPayloads = []map[string]any{
	{"alertId": "a1", "description": "Broker down", "severity": "high"},
	{"alertId": "a2", "description": "Under replicated partitions", "severity": "medium"},
}

func randomPayload(source string) map[string]any {
	if source == "ocp" {
		p := ocpPayloads[rand.Intn(len(ocpPayloads))]
		return p
	}
	return confluentPayloads[rand.Intn(len(confluentPayloads))]
}

type result struct {
	latency time.Duration
	status  int
}

func main() {
	var baseURL string
	var duration time.Duration
	var concurrency int
	var insecure bool
	var apiKey string

	cmd := &cobra.Command{
		Use:           "load-test",
		Short:         "Simulate webhook load against a running relay",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(baseURL, duration, concurrency, insecure, apiKey)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8080", "relay base URL")
	cmd.Flags().DurationVar(&duration, "duration", 15*time.Second, "run duration")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "concurrent workers")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS verification")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "X-API-Key header value, if required")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLoadTest(baseURL string, duration time.Duration, concurrency int, insecure bool, apiKey string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	if insecure {
		client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	healthReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("building health check request: %w", err)
	}
	resp, err := client.Do(healthReq)
	cancel()
	if err != nil || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay not reachable at %s/healthz: %v", baseURL, err)
	}
	resp.Body.Close()

	fmt.Printf("Target: %s (webhook: POST %s/webhook/{ocp|confluent})\n", baseURL, baseURL)

	var mu sync.Mutex
	var results []result
	var wg sync.WaitGroup

	deadline := time.Now().Add(duration)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				source := sources[rand.Intn(len(sources))]
				r := sendOne(client, baseURL, source, apiKey)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	report(results, duration, concurrency, baseURL)
	return nil
}

func sendOne(client *http.Client, baseURL, source, apiKey string) result {
	payload, _ := json.Marshal(randomPayload(source))
	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, baseURL+"/webhook/"+source, bytes.NewReader(payload))
	if err != nil {
		return result{latency: time.Since(start), status: 0}
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return result{latency: time.Since(start), status: 0}
	}
	defer resp.Body.Close()
	return result{latency: time.Since(start), status: resp.StatusCode}
}

func report(results []result, duration time.Duration, concurrency int, baseURL string) {
	total := len(results)
	if total == 0 {
		fmt.Println("No requests completed.")
		return
	}

	ok, accepted, e401, e404, eOther := 0, 0, 0, 0, 0
	latencies := make([]time.Duration, 0, total)
	for _, r := range results {
		latencies = append(latencies, r.latency)
		switch {
		case r.status >= 200 && r.status < 300:
			ok++
		case r.status == 401:
			e401++
		case r.status == 404:
			e404++
		case r.status >= 400:
			eOther++
		}
		if r.status == 200 || r.status == 202 {
			accepted++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	pct := func(p float64) time.Duration {
		idx := int(float64(len(latencies)) * p)
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	fmt.Println("\n--- Load test result ---")
	fmt.Printf("Base URL:       %s\n", baseURL)
	fmt.Printf("Duration:       %.1fs  Concurrency: %d\n", duration.Seconds(), concurrency)
	fmt.Printf("Total requests: %d\n", total)
	fmt.Printf("2xx (ok):       %d  (200/202 accepted: %d)\n", ok, accepted)
	fmt.Printf("Errors:         %d\n", total-ok)
	if e401 > 0 {
		fmt.Printf("  401 Unauthorized: %d\n", e401)
	}
	if e404 > 0 {
		fmt.Printf("  404 Not Found: %d\n", e404)
	}
	if eOther > 0 {
		fmt.Printf("  Other 4xx/5xx: %d\n", eOther)
	}
	fmt.Printf("RPS:            %.1f\n", float64(total)/duration.Seconds())
	fmt.Printf("Latency p50:    %s\n", pct(0.50))
	fmt.Printf("Latency p95:    %s\n", pct(0.95))
	fmt.Printf("Latency p99:    %s\n", pct(0.99))
	fmt.Println("------------------------")
}
