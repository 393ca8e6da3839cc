// Command mock-receiver is a throwaway HTTP(S) target for exercising
// the forwarder's retry, circuit-breaker, and TLS-trust logic in
// integration tests (scripts/mock_receiver.py equivalent). It accepts
// any POST and answers with a configurable status code and delay.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/certwatcher"

	"github.com/spf13/cobra"
)

func main() {
	var addr, status, delay, certPath, keyPath string

	cmd := &cobra.Command{
		Use:           "mock-receiver",
		Short:         "Run a throwaway webhook target for load/integration testing",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), addr, status, delay, certPath, keyPath)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")
	cmd.Flags().StringVar(&status, "status", "200", "response status code to return, or a cycling list like 500,500,200")
	cmd.Flags().StringVar(&delay, "delay", "0s", "artificial response latency")
	cmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate path (enables HTTPS, hot-reloaded on change)")
	cmd.Flags().StringVar(&keyPath, "key", "", "TLS private key path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, statusSpec, delaySpec, certPath, keyPath string) error {
	statuses, err := parseStatusCycle(statusSpec)
	if err != nil {
		return err
	}
	latency, err := time.ParseDuration(delaySpec)
	if err != nil {
		return fmt.Errorf("parsing --delay: %w", err)
	}

	h := &cyclingHandler{statuses: statuses, latency: latency}
	srv := &http.Server{Addr: addr, Handler: h}

	if certPath == "" {
		log.Printf("mock-receiver listening on %s (http)", addr)
		return srv.ListenAndServe()
	}

	// certwatcher hot-reloads the serving certificate from disk, so
	// rerunning gencert against the same path doesn't require a restart.
	watcher, err := certwatcher.New(certPath, keyPath)
	if err != nil {
		return fmt.Errorf("loading tls cert: %w", err)
	}
	go func() {
		if err := watcher.Start(ctx); err != nil {
			log.Printf("certwatcher stopped: %v", err)
		}
	}()
	srv.TLSConfig = &tls.Config{GetCertificate: watcher.GetCertificate}

	log.Printf("mock-receiver listening on %s (https)", addr)
	return srv.ListenAndServeTLS("", "")
}

// cyclingHandler walks through statuses in order, repeating the last
// entry once the list is exhausted, so a caller can script a target
// that fails N times before recovering (for circuit-breaker tests).
type cyclingHandler struct {
	statuses []int
	latency  time.Duration
	calls    int
}

func (h *cyclingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.latency > 0 {
		time.Sleep(h.latency)
	}
	io.Copy(io.Discard, r.Body)

	idx := h.calls
	if idx >= len(h.statuses) {
		idx = len(h.statuses) - 1
	}
	h.calls++

	w.WriteHeader(h.statuses[idx])
	fmt.Fprintf(w, `{"received":true,"call":%d}`, h.calls)
}

func parseStatusCycle(spec string) ([]int, error) {
	var out []int
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ',' {
			part := spec[start:i]
			if part != "" {
				n, err := strconv.Atoi(part)
				if err != nil {
					return nil, fmt.Errorf("parsing --status %q: %w", spec, err)
				}
				out = append(out, n)
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--status must list at least one code")
	}
	return out, nil
}
