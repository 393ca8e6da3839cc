package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbridge/relay/internal/forwarder"
	"github.com/alertbridge/relay/internal/router"
	"github.com/alertbridge/relay/internal/ruleset"
)

type stubStore struct {
	rs        *ruleset.RuleSet
	err       error
	persisted *ruleset.RuleSet
}

func (s *stubStore) GetRules() (*ruleset.RuleSet, error) { return s.rs, s.err }
func (s *stubStore) SetRules(rs *ruleset.RuleSet)        { s.rs = rs }
func (s *stubStore) Persist(ctx context.Context, rs *ruleset.RuleSet) error {
	s.persisted = rs
	return nil
}

type stubForwarder struct{}

func (stubForwarder) Send(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults, requestID string, payload []byte) forwarder.Result {
	return forwarder.Result{OK: true, Status: 200}
}

type stubProber struct{ probe forwarder.Probe }

func (p stubProber) CheckTargetStatus(ctx context.Context, route ruleset.Route, defaults ruleset.Defaults) forwarder.Probe {
	return p.probe
}

func testRuleSet() *ruleset.RuleSet {
	return &ruleset.RuleSet{
		Version: 1,
		Routes: []ruleset.Route{
			{Name: "datadog", Match: ruleset.Match{Source: "datadog"}, Target: ruleset.Target{URL: "https://example.test/hook"}},
		},
	}
}

func newTestServer(store *stubStore) *Server {
	rt := router.New(store, stubForwarder{})
	return New(store, rt, stubProber{probe: forwarder.Probe{Route: "datadog", Phase1OK: true, Phase2OK: true}})
}

func TestHealthzAlwaysOK(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsStoreState(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rules_loaded":true`)
}

func TestWebhookRouteForwardsThroughRouter(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	body := bytes.NewBufferString(`{"text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/datadog", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRulesOpenWithoutConfiguredUsers(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRulesRejectsMissingCredentialsWhenFallbackConfigured(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{}, WithBasicAuthFallback("admin", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRulesAcceptsFallbackCredentials(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{}, WithBasicAuthFallback("admin", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRulesRejectsWrongFallbackPassword(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{}, WithBasicAuthFallback("admin", "s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRulesPutValidatesAndPersists(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{})

	newDoc := `{"version":1,"routes":[{"name":"pagerduty","match":{"source":"pagerduty"},"target":{"url":"https://pd.example/hook"}}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/rules", bytes.NewBufferString(newDoc))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.persisted)
	assert.Equal(t, "pagerduty", store.persisted.Routes[0].Name)
	assert.Equal(t, "pagerduty", store.rs.Routes[0].Name)
}

func TestAdminRulesPutRejectsInvalidDocument(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{})

	dup := `{"version":1,"routes":[{"name":"a","match":{"source":"x"}},{"name":"a","match":{"source":"y"}}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/rules", bytes.NewBufferString(dup))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.persisted)
}

func TestTargetStatusRunsProbeForNamedRoute(t *testing.T) {
	store := &stubStore{rs: testRuleSet()}
	rt := router.New(store, stubForwarder{})
	srv := New(store, rt, stubProber{probe: forwarder.Probe{Route: "datadog", Phase1OK: true, Phase2OK: true}})

	req := httptest.NewRequest(http.MethodGet, "/api/target-status?route=datadog", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Phase2OK":true`)
}

func TestTargetStatusUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	req := httptest.NewRequest(http.MethodGet, "/api/target-status?route=nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatternsSuggestReturnsMappings(t *testing.T) {
	srv := newTestServer(&stubStore{rs: testRuleSet()})
	sample := `{"labels":{"severity":"critical"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/patterns/suggest", bytes.NewBufferString(sample))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labels.severity")
}
