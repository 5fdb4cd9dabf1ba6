package infra

import (
	"context"

	"admission-gateway/middleware/admission/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore exporta as decisões como métricas.
//
// Os labels são outcome e service; path e client key ficam de fora por causa
// da cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer, namespace string) (*PrometheusStatsStore, error) {
	s := &PrometheusStatsStore{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Admission decisions by outcome and upstream service.",
		}, []string{"outcome", "service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decision_duration_seconds",
			Help:      "Time spent deciding whether to admit a request.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	service := ev.Service
	if service == "" {
		service = "none"
	}
	s.decisions.WithLabelValues(string(ev.Outcome), service).Inc()
	s.duration.WithLabelValues(string(ev.Outcome)).Observe(ev.Duration.Seconds())
	return nil
}

// RegisterClientsGauge expõe o número de buckets rastreados (count é chamado a cada scrape).
func RegisterClientsGauge(reg prometheus.Registerer, namespace string, count func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "tracked_clients",
		Help:      "Number of client token buckets currently tracked.",
	}, func() float64 { return float64(count()) }))
}
