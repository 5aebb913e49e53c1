package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the dashboard. A nil *Metrics
// records nothing.
type Metrics struct {
	GatewayDecisions *prometheus.CounterVec
	CallbackOutcomes *prometheus.CounterVec
	SessionRefreshes *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GatewayDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_gateway_decisions_total",
			Help: "Requests seen by the navigation gateway, by what it did with them",
		}, []string{"decision"}),
		CallbackOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_callback_outcomes_total",
			Help: "Resolved sign in callbacks, by final state and credential kind",
		}, []string{"state", "kind"}),
		SessionRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_session_refreshes_total",
			Help: "Attempts to refresh an expired cookie session",
		}, []string{"result"}),
	}
}

func (m *Metrics) GatewayDecision(decision string) {
	if m == nil {
		return
	}
	m.GatewayDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) CallbackOutcome(state, kind string) {
	if m == nil {
		return
	}
	m.CallbackOutcomes.WithLabelValues(state, kind).Inc()
}

func (m *Metrics) SessionRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.SessionRefreshes.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
