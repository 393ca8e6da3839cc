package router

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbridge/relay/internal/forwarder"
	"github.com/alertbridge/relay/internal/ruleset"
)

type stubStore struct {
	rs  *ruleset.RuleSet
	err error
}

func (s *stubStore) GetRules() (*ruleset.RuleSet, error) { return s.rs, s.err }

type stubForwarder struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *stubForwarder) Send(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults, requestID string, payload []byte) forwarder.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(payload))
	if f.fail {
		return forwarder.Result{OK: false}
	}
	return forwarder.Result{OK: true, Status: 200}
}

func newRouter(t *testing.T, rs *ruleset.RuleSet, fwd *stubForwarder) *Router {
	t.Helper()
	return New(&stubStore{rs: rs}, fwd)
}

func webhookRequest(body string, source string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+source, strings.NewReader(body))
	return req
}

func TestServeWebhookForwardsSuccessfully(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{Name: "ocp", Match: ruleset.Match{Source: "ocp"}, Target: ruleset.Target{URL: "https://example.invalid"}},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(`{"a":"v"}`, "ocp"), "ocp")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fwd.calls, 1)
}

func TestServeWebhookUnknownSourceIs404(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{Name: "ocp", Match: ruleset.Match{Source: "ocp"}, Target: ruleset.Target{URL: "https://example.invalid"}},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(`{}`, "missing"), "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeWebhookMalformedJSONIs400(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{Name: "ocp", Match: ruleset.Match{Source: "ocp"}, Target: ruleset.Target{URL: "https://example.invalid"}},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(`{not json`, "ocp"), "ocp")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeWebhookHMACRejectsWrongSignature(t *testing.T) {
	t.Setenv("TEST_HMAC_SECRET", "s3cret")
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{
			Name:   "ocp",
			Match:  ruleset.Match{Source: "ocp"},
			Target: ruleset.Target{URL: "https://example.invalid"},
			VerifyHMAC: &ruleset.Hmac{SecretEnv: "TEST_HMAC_SECRET"},
		},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	req := webhookRequest(`{"a":"v"}`, "ocp")
	req.Header.Set("X-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, req, "ocp")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fwd.calls)
}

func TestServeWebhookHMACAcceptsCorrectSignature(t *testing.T) {
	t.Setenv("TEST_HMAC_SECRET", "s3cret")
	body := `{"a":"v"}`
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte(body))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{
			Name:   "ocp",
			Match:  ruleset.Match{Source: "ocp"},
			Target: ruleset.Target{URL: "https://example.invalid"},
			VerifyHMAC: &ruleset.Hmac{SecretEnv: "TEST_HMAC_SECRET"},
		},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	req := webhookRequest(body, "ocp")
	req.Header.Set("X-Signature-256", sig)
	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, req, "ocp")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fwd.calls, 1)
}

func TestServeWebhookUnrollSendsOnePerAlert(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{
			Name:         "ocp",
			Match:        ruleset.Match{Source: "ocp"},
			Target:       ruleset.Target{URL: "https://example.invalid"},
			UnrollAlerts: true,
		},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	body := `{"alerts":[{"id":1},{"id":2}]}`
	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(body, "ocp"), "ocp")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fwd.calls, 2)
}

func TestServeWebhookForwardFailureIs202(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{Name: "ocp", Match: ruleset.Match{Source: "ocp"}, Target: ruleset.Target{URL: "https://example.invalid"}},
	}}
	fwd := &stubForwarder{fail: true}
	rt := newRouter(t, rs, fwd)

	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(`{"a":1}`, "ocp"), "ocp")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Forwarded)
}

func TestServeWebhookAliasRouteMatchesPrefixBeforeHyphen(t *testing.T) {
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{Name: "ocp", Match: ruleset.Match{Source: "ocp"}, Target: ruleset.Target{URL: "https://example.invalid"}},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	rec := httptest.NewRecorder()
	rt.ServeWebhook(rec, webhookRequest(`{}`, "ocp-alertmanager"), "ocp-alertmanager")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fwd.calls, 1)
}

func TestPreviewTransformAppliesPipelineWithoutForwarding(t *testing.T) {
	rename := ruleset.OrderedStringMap{}
	rename.Set("a", "b")
	rs := &ruleset.RuleSet{Routes: []ruleset.Route{
		{
			Name:   "ocp",
			Match:  ruleset.Match{Source: "ocp"},
			Target: ruleset.Target{URL: "https://example.invalid"},
			Transform: ruleset.Transform{Rename: rename},
		},
	}}
	fwd := &stubForwarder{}
	rt := newRouter(t, rs, fwd)

	req := httptest.NewRequest(http.MethodPost, "/api/transform/ocp", strings.NewReader(`{"a":"v"}`))
	rec := httptest.NewRecorder()
	rt.PreviewTransform(rec, req, "ocp")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fwd.calls)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "v", out["b"])
}
