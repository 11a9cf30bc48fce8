package sink

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry     *prometheus.Registry
	WorkflowRuns *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		WorkflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "github_actions_workflow_runs_total",
			Help: "Total number of workflow_run webhook events received.",
		}, []string{"repository", "workflow", "action", "conclusion"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipecheck_sink_deliveries_total",
			Help: "Webhook deliveries by event type and result.",
		}, []string{"event", "result"}),
	}
	m.Registry.MustRegister(m.WorkflowRuns, m.Deliveries)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
