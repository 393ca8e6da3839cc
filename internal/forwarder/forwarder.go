// Package forwarder implements the resilient outbound HTTP client
// (component C4): SSRF-safe URL resolution, per-route TLS trust,
// fixed-schedule retries, a per-route circuit breaker, and the
// two-phase target health probe.
package forwarder

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/alertbridge/relay/internal/ruleset"
)

var (
	// ErrConfigURL means the target URL could not be resolved at all
	// (neither a literal url nor a populated url_env).
	ErrConfigURL = errors.New("forwarder: target url not configured")
	// ErrUnsafeScheme means the resolved URL's scheme is not http/https.
	ErrUnsafeScheme = errors.New("forwarder: url scheme not permitted")
	// ErrCircuitOpen means the per-route breaker short-circuited the send.
	ErrCircuitOpen = errors.New("forwarder: circuit breaker open")
)

const (
	failureThreshold = 5
	resetWindow      = 60 * time.Second
	maxAttempts      = 4
)

// delaySchedule is the fixed attempt-delay schedule from spec.md §4.4 /
// §6: the Nth retry (0-indexed) sleeps delaySchedule[N] before firing.
var delaySchedule = []time.Duration{0, 1 * time.Second, 2 * time.Second, 4 * time.Second}

// Result is the outcome of one Send call, including a send to an
// unrolled sub-payload.
type Result struct {
	OK       bool
	Status   int
	Attempts int
	Err      error
}

// Forwarder owns the shared outbound HTTP client and the per-route
// circuit breaker table. One Forwarder is built per process and shared
// across all inbound requests; it is safe for concurrent use.
type Forwarder struct {
	shared   *http.Client
	breakers *breakerTable
	logger   *zap.Logger
}

// New builds a Forwarder with a shared client suitable for routes using
// the default (system) TLS trust mode. Routes that opt into a custom CA
// or insecure trust get a transient client built per send instead.
func New(logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		shared: &http.Client{
			Timeout: 30 * time.Second,
		},
		breakers: newBreakerTable(),
		logger:   logger,
	}
}

// Send forwards one JSON payload to route's target, honoring the
// circuit breaker, TLS trust mode, and retry schedule. It never panics
// and reports every failure through Result: Err carries the
// configuration, unsafe-scheme or breaker-open error, or, when the
// target could not be reached or answered with an error status, the
// last attempt's error.
func (f *Forwarder) Send(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults, requestID string, payload []byte) Result {
	breaker := f.breakers.get(route.Name)
	if !breaker.allow() {
		return Result{OK: false, Err: ErrCircuitOpen}
	}

	targetURL, err := resolveURL(route.Target)
	if err != nil {
		return Result{OK: false, Err: err}
	}
	if err := guardScheme(targetURL); err != nil {
		return Result{OK: false, Err: err}
	}

	client, transient, err := f.clientFor(route.Target, defaults)
	if err != nil {
		return Result{OK: false, Err: err}
	}
	if transient {
		defer client.CloseIdleConnections()
	}

	headers := sendHeaders(route.Target, requestID)

	var lastStatus int
	attempts := 0
	err = retry.Do(
		func() error {
			attempts++
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("forwarder: building request: %w", err))
			}
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			resp, err := client.Do(req)
			if err != nil {
				return err // network/connect failure: retryable
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			lastStatus = resp.StatusCode

			if resp.StatusCode >= 500 {
				return fmt.Errorf("forwarder: target returned %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("forwarder: target returned %d", resp.StatusCode))
			}
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Context(ctx),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if int(n) < len(delaySchedule) {
				return delaySchedule[n]
			}
			return delaySchedule[len(delaySchedule)-1]
		}),
		retry.LastErrorOnly(true),
	)

	if err != nil {
		breaker.recordFailure()
		f.logger.Warn("forward failed",
			zap.String("route", route.Name),
			zap.Int("attempts", attempts),
			zap.Int("status", lastStatus),
			zap.Error(err),
		)
		return Result{OK: false, Status: lastStatus, Attempts: attempts, Err: err}
	}

	breaker.recordSuccess()
	return Result{OK: true, Status: lastStatus, Attempts: attempts}
}

// resolveURL applies the url / url_env precedence from spec.md §4.4.
func resolveURL(t ruleset.Target) (string, error) {
	if t.URL != "" {
		return t.URL, nil
	}
	if t.URLEnv != "" {
		if v := os.Getenv(t.URLEnv); v != "" {
			return v, nil
		}
	}
	return "", ErrConfigURL
}

func guardScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeScheme, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return ErrUnsafeScheme
	}
}

// sendHeaders builds the per-send header set per spec.md §4.4, including
// the Bearer-prefix special case for an api_key_header that is literally
// "Authorization".
func sendHeaders(t ruleset.Target, requestID string) map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"X-Request-ID":  requestID,
	}
	if t.AuthHeaderEnv != "" {
		if v := os.Getenv(t.AuthHeaderEnv); v != "" {
			headers["Authorization"] = v
		}
	}
	if t.APIKeyHeader != "" {
		key := t.APIKey
		if t.APIKeyEnv != "" {
			if v := os.Getenv(t.APIKeyEnv); v != "" {
				key = v
			}
		}
		if key != "" {
			if strings.EqualFold(t.APIKeyHeader, "authorization") && !strings.HasPrefix(strings.ToLower(key), "bearer ") {
				key = "Bearer " + key
			}
			headers[t.APIKeyHeader] = key
		}
	}
	return headers
}

// clientFor returns the client to use for one send and whether it is a
// transient, per-send client that the caller must close afterwards.
func (f *Forwarder) clientFor(t ruleset.Target, defaults ruleset.Defaults) (*http.Client, bool, error) {
	if t.VerifyTLS != nil && !*t.VerifyTLS {
		return transientClient(defaults, &tls.Config{InsecureSkipVerify: true}), true, nil
	}
	if t.CACert != "" || t.CACertEnv != "" {
		path := t.CACert
		if path == "" {
			path = os.Getenv(t.CACertEnv)
		}
		if path == "" {
			return nil, false, fmt.Errorf("forwarder: ca_cert_env %q not set", t.CACertEnv)
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("forwarder: reading ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, false, fmt.Errorf("forwarder: no certificates found in %s", path)
		}
		return transientClient(defaults, &tls.Config{RootCAs: pool}), true, nil
	}
	return f.shared, false, nil
}

func transientClient(defaults ruleset.Defaults, tlsCfg *tls.Config) *http.Client {
	connectTimeout := time.Duration(defaults.TargetTimeoutConnectSec) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	readTimeout := time.Duration(defaults.TargetTimeoutReadSec) * time.Second
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: connectTimeout + readTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
		},
	}
}
