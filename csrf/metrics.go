package csrf

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks CSRF check outcomes. Rejections are labeled by reason:
// missing_cookie, missing_header, mismatch, bad_origin.
type Metrics struct {
	Issued   prometheus.Counter
	Accepted prometheus.Counter
	Rejected *prometheus.CounterVec
}

// NewMetrics creates the CSRF counters and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csrf_tokens_issued_total",
			Help: "Number of CSRF token pairs issued.",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csrf_validations_accepted_total",
			Help: "Number of state-changing requests that passed CSRF validation.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csrf_validations_rejected_total",
			Help: "Number of state-changing requests rejected by CSRF validation.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Issued, m.Accepted, m.Rejected)
	return m
}
