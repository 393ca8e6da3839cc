package router

import "net/http"

// Healthz answers GET /healthz: a liveness check with no dependency on
// the rule store, so it stays green even while rules fail to load.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Readyz answers GET /readyz: reports whether the rule store has a
// loaded RuleSet, the signal spec.md §6 calls rules_loaded.
func (rt *Router) Readyz(w http.ResponseWriter, r *http.Request) {
	_, err := rt.store.GetRules()
	ready := err == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":            ready,
		"rules_loaded":     ready,
		"http_client_ready": true,
	})
}
