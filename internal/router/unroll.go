package router

import "github.com/alertbridge/relay/internal/pathdoc"

// unroll implements spec.md §4.3's alert-unrolling stage: when a route
// has unroll_alerts set and the payload has a non-empty "alerts" array,
// fan the payload out into one document per alert, each a deep copy of
// the original with "alerts" replaced by the single-element array
// [alert]. A non-object alert element is undefined behavior in the
// source system; the spec's Open Question resolves this to a 400
// (spec.md §9).
func unroll(doc any) ([]any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return []any{doc}, nil
	}
	alertsVal, found := root["alerts"]
	if !found {
		return []any{doc}, nil
	}
	alerts, ok := alertsVal.([]any)
	if !ok || len(alerts) == 0 {
		return []any{doc}, nil
	}

	out := make([]any, 0, len(alerts))
	for _, alert := range alerts {
		if _, ok := alert.(map[string]any); !ok {
			return nil, newError(KindValidation, "unroll_alerts: alert element is not an object", nil)
		}
		copyDoc := pathdoc.Clone(doc).(map[string]any)
		copyDoc["alerts"] = []any{pathdoc.Clone(alert)}
		out = append(out, copyDoc)
	}
	return out, nil
}
