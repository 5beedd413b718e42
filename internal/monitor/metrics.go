package monitor

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	state    *prometheus.GaugeVec
	polls    *prometheus.CounterVec
	failures prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensehub_monitor_state",
			Help: "1 for the monitor's current state, 0 otherwise.",
		}, []string{"state"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "licensehub_monitor_polls_total",
			Help: "License checks by result.",
		}, []string{"result"}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensehub_monitor_consecutive_failures",
			Help: "Consecutive failed license checks.",
		}),
	}
	reg.MustRegister(m.state, m.polls, m.failures)
	return m
}

func (m *metrics) observe(s Snapshot, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "ok"
	}
	m.polls.WithLabelValues(result).Inc()
	m.failures.Set(float64(s.Failures))
	for _, st := range States {
		v := 0.0
		if st == s.State {
			v = 1
		}
		m.state.WithLabelValues(string(st)).Set(v)
	}
}
