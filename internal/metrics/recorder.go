package metrics

// Recorder is the set of counters the router updates as a side effect
// of handling requests; the forwarder does not use it. It is an interface so tests can
// substitute a no-op or counting stub without touching the real
// Prometheus registry.
type Recorder interface {
	HMACVerify(route, result string)
	APIKeyAuth(route, result string)
	Forward(route, result string)
	CircuitState(route, state string)
}

type promRecorder struct{}

// NewRecorder builds the process-wide Prometheus-backed Recorder. It
// registers HMAC_VERIFY_TOTAL{route,result} (spec.md §4.3) alongside
// the forwarder and circuit-breaker counters.
func NewRecorder() Recorder {
	return promRecorder{}
}

var (
	hmacVerifyTotal = NewCounter(CounterOpts{
		Subsystem: "hmac",
		Name:      "verify_total",
		Help:      "HMAC verification attempts by route and result",
	}, []string{"route", "result"})

	apiKeyAuthTotal = NewCounter(CounterOpts{
		Subsystem: "auth",
		Name:      "api_key_total",
		Help:      "API key validation attempts by route and result",
	}, []string{"route", "result"})

	forwardTotal = NewCounter(CounterOpts{
		Subsystem: "forwarder",
		Name:      "sends_total",
		Help:      "Outbound forward attempts by route and result",
	}, []string{"route", "result"})

	circuitStateGauge = NewGauge(GaugeOpts{
		Subsystem: "forwarder",
		Name:      "circuit_state",
		Help:      "Circuit breaker state per route; the series labelled with a reported state is set to 1",
	}, []string{"route", "state"})
)

func (promRecorder) HMACVerify(route, result string) {
	hmacVerifyTotal.WithLabelValues(route, result).Inc()
}

func (promRecorder) APIKeyAuth(route, result string) {
	apiKeyAuthTotal.WithLabelValues(route, result).Inc()
}

func (promRecorder) Forward(route, result string) {
	forwardTotal.WithLabelValues(route, result).Inc()
}

func (promRecorder) CircuitState(route, state string) {
	circuitStateGauge.WithLabelValues(route, state).Set(1)
}
