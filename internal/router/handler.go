package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alertbridge/relay/internal/forwarder"
	"github.com/alertbridge/relay/internal/logging"
	"github.com/alertbridge/relay/internal/metrics"
	"github.com/alertbridge/relay/internal/ruleset"
	"github.com/alertbridge/relay/internal/transform"
)

const (
	maxWebhookBody = 1 << 20   // 1 MiB
	maxAdminBody   = 512 << 10 // 512 KiB
)

// Forwarder is the subset of *forwarder.Forwarder the router depends
// on, narrowed so handler tests can substitute a stub sender.
type Forwarder interface {
	Send(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults, requestID string, payload []byte) forwarder.Result
}

// Store is the subset of *ruleset.Store the router reads from.
type Store interface {
	GetRules() (*ruleset.RuleSet, error)
}

// Router wires the rule store, transform engine, and forwarder into the
// webhook HTTP surface (spec.md §4.3, §6).
type Router struct {
	store    Store
	forward  Forwarder
	metrics  metrics.Recorder
	logger   *zap.Logger
	nowReqID func() string
}

// Option configures a Router at construction time.
type Option func(*Router)

func WithMetrics(m metrics.Recorder) Option { return func(r *Router) { r.metrics = m } }
func WithLogger(l *zap.Logger) Option       { return func(r *Router) { r.logger = l } }

// New builds a Router over the given rule store and forwarder.
func New(store Store, fwd Forwarder, opts ...Option) *Router {
	r := &Router{
		store:    store,
		forward:  fwd,
		metrics:  metrics.NewRecorder(),
		logger:   logging.New("router"),
		nowReqID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type webhookResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Forwarded int    `json:"forwarded"`
}

// ServeWebhook handles POST /webhook/{source}: size-bounded read, route
// resolution, HMAC and API-key checks, optional unroll, transform, and
// forward — reporting the aggregate outcome per spec.md §4.3.
func (rt *Router) ServeWebhook(w http.ResponseWriter, r *http.Request, source string) {
	start := time.Now()
	requestID := rt.nowReqID()

	rs, err := rt.store.GetRules()
	if err != nil {
		rt.fail(w, requestID, source, "", newError(KindValidation, "rules unavailable", err), start)
		return
	}

	route, ok := ResolveRoute(rs.Routes, source)
	if !ok {
		rt.fail(w, requestID, source, "", newError(KindRouting, "no route for source", nil), start)
		return
	}

	body, err := readLimited(r.Body, maxWebhookBody)
	if err != nil {
		rt.fail(w, requestID, source, route.Name, newError(KindSize, "request body too large", err), start)
		return
	}

	if route.VerifyHMAC != nil {
		sigHeader := r.Header.Get(route.VerifyHMAC.HeaderOrDefault())
		if err := verifyHMAC(*route.VerifyHMAC, sigHeader, body); err != nil {
			rt.metrics.HMACVerify(route.Name, "failure")
			rt.fail(w, requestID, source, route.Name, err, start)
			return
		}
		rt.metrics.HMACVerify(route.Name, "success")
	}

	if rs.Auth != nil && rs.Auth.APIKeys != nil {
		if err := verifyAPIKey(rs.Auth.APIKeys, r); err != nil {
			rt.metrics.APIKeyAuth(route.Name, "failure")
			rt.fail(w, requestID, source, route.Name, err, start)
			return
		}
		rt.metrics.APIKeyAuth(route.Name, "success")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		rt.fail(w, requestID, source, route.Name, newError(KindValidation, "malformed json", err), start)
		return
	}

	var docs []any
	if route.UnrollAlerts {
		docs, err = unroll(doc)
		if err != nil {
			rt.fail(w, requestID, source, route.Name, err, start)
			return
		}
	} else {
		docs = []any{doc}
	}

	pipeline := transform.Compile(route.Transform)
	succeeded := 0
	for _, d := range docs {
		out := pipeline.Apply(d)
		payload, err := json.Marshal(out)
		if err != nil {
			rt.logger.Error("marshal transformed payload", zap.Error(err))
			continue
		}
		res := rt.forward.Send(r.Context(), *route, rs.Defaults, requestID, payload)
		if res.OK {
			succeeded++
			rt.metrics.Forward(route.Name, "success")
		} else {
			rt.metrics.Forward(route.Name, "failure")
		}
	}

	status := http.StatusOK
	forwardResult := "success"
	if succeeded < len(docs) {
		status = http.StatusAccepted
		forwardResult = "partial"
		if succeeded == 0 {
			forwardResult = "failure"
		}
	}

	rt.logger.Info("webhook forwarded",
		logging.RequestFields(requestID, source, route.Name, forwardResult, status, time.Since(start))...)

	writeJSON(w, status, webhookResponse{Status: forwardResult, RequestID: requestID, Forwarded: succeeded})
}

// PreviewTransform handles POST /api/transform/{source}: apply the
// route's transform and echo the result without forwarding.
func (rt *Router) PreviewTransform(w http.ResponseWriter, r *http.Request, source string) {
	rs, err := rt.store.GetRules()
	if err != nil {
		writeError(w, newError(KindValidation, "rules unavailable", err))
		return
	}
	route, ok := ResolveRoute(rs.Routes, source)
	if !ok {
		writeError(w, newError(KindRouting, "no route for source", nil))
		return
	}
	body, err := readLimited(r.Body, maxAdminBody)
	if err != nil {
		writeError(w, newError(KindSize, "request body too large", err))
		return
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, newError(KindValidation, "malformed json", err))
		return
	}
	out := transform.Compile(route.Transform).Apply(doc)
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) fail(w http.ResponseWriter, requestID, source, routeName string, err error, start time.Time) {
	kind := KindValidation
	if e, ok := err.(*Error); ok {
		kind = e.Kind
	}
	status := statusFor(kind)

	fields := logging.RequestFields(requestID, source, routeName, "failure", status, time.Since(start))
	fields = append(fields, logging.ErrorFields(kind.typeName(), status, nil)...)
	rt.logger.Warn("webhook rejected", append(fields, zap.Error(err))...)

	writeJSON(w, status, map[string]any{
		"status":     "error",
		"request_id": requestID,
		"error":      reasonFor(kind, err),
	})
}

// reasonFor renders a short, safe reason string — spec.md §7 requires
// AuthError responses never carry the expected digest or secret.
func reasonFor(kind Kind, err error) string {
	if e, ok := err.(*Error); ok {
		return e.Message
	}
	if kind == KindAuth {
		return "unauthorized"
	}
	return err.Error()
}

func readLimited(body io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(body, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := KindValidation
	if e, ok := err.(*Error); ok {
		kind = e.Kind
	}
	writeJSON(w, statusFor(kind), map[string]string{"error": reasonFor(kind, err)})
}

// SourceFromPath extracts the {source} suffix from a /webhook/{source}
// or /api/transform/{source} style path.
func SourceFromPath(path, prefix string) (string, bool) {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path || trimmed == "" {
		return "", false
	}
	return trimmed, true
}
