package forwarder

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/alertbridge/relay/internal/ruleset"
)

// Probe is the result of a two-phase target health check (spec.md
// §4.4). It is independent of the circuit breaker: calling
// CheckTargetStatus never reads or mutates breaker state.
type Probe struct {
	Route     string
	TargetURL string
	Phase1OK  bool
	Phase2OK  bool
	Error     string
}

// CheckTargetStatus runs the origin-reachability probe (GET the
// scheme://host origin, 2s timeout) followed by the API handshake probe
// (POST "{}" with the route's configured headers and timeouts).
func (f *Forwarder) CheckTargetStatus(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults) Probe {
	p := Probe{Route: route.Name}

	targetURL, err := resolveURL(route.Target)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.TargetURL = targetURL

	if err := guardScheme(targetURL); err != nil {
		p.Error = err.Error()
		return p
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	origin := u.Scheme + "://" + u.Host

	phase1Client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, nil)
	if err == nil {
		resp, err := phase1Client.Do(req)
		if err == nil {
			resp.Body.Close()
			p.Phase1OK = true
		}
	}
	if !p.Phase1OK {
		return p
	}

	client, transient, err := f.clientFor(route.Target, defaults)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	if transient {
		defer client.CloseIdleConnections()
	} else {
		// Reuse the shared transport, but with the route defaults'
		// timeout instead of the shared client's fixed one.
		probeClient := *client
		probeClient.Timeout = transientClient(defaults, nil).Timeout
		client = &probeClient
	}

	req2, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		p.Error = err.Error()
		return p
	}
	for k, v := range sendHeaders(route.Target, "probe") {
		req2.Header.Set(k, v)
	}
	resp, err := client.Do(req2)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	defer resp.Body.Close()
	p.Phase2OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	return p
}
