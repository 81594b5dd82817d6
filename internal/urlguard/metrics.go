package urlguard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records verdicts. A nil *Metrics is valid and records nothing.
type Metrics struct {
	verdicts *prometheus.CounterVec
	duration prometheus.Histogram
	hops     prometheus.Histogram
}

// NewMetrics registers the urlguard collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckguard",
			Name:      "url_verdicts_total",
			Help:      "Image URL validation verdicts, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deckguard",
			Name:      "url_validation_seconds",
			Help:      "Time to validate one image URL including redirect probes.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		hops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deckguard",
			Name:      "url_redirect_hops",
			Help:      "Number of hops walked per validated URL.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
	}
	reg.MustRegister(m.verdicts, m.duration, m.hops)
	// Pre-create every series so dashboards see zeros.
	m.verdicts.WithLabelValues("valid")
	for _, r := range Reasons() {
		m.verdicts.WithLabelValues(string(r))
	}
	return m
}

func (m *Metrics) observe(v Verdict, hops int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(v.Label()).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.hops.Observe(float64(hops))
}
