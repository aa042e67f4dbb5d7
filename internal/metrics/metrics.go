// Package metrics records fetch and render statistics with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements wiki.Observer and the session's render hook.
type Recorder struct {
	fetches    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	candidates prometheus.Gauge
	ranked     prometheus.Gauge
	topProfit  prometheus.Gauge
	renders    prometheus.Counter
	inputErrs  *prometheus.CounterVec
}

// New registers the recorder's collectors with reg. A nil reg means the
// default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osrsflip_fetches_total",
				Help: "Wiki API fetches by resource and result",
			},
			[]string{"resource", "result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "osrsflip_fetch_duration_seconds",
				Help:    "Wiki API fetch duration in seconds, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"resource"},
		),
		candidates: f.NewGauge(prometheus.GaugeOpts{
			Name: "osrsflip_candidates",
			Help: "Items joined across catalog, prices and volumes in the last render",
		}),
		ranked: f.NewGauge(prometheus.GaugeOpts{
			Name: "osrsflip_ranked_rows",
			Help: "Rows shown in the last render",
		}),
		topProfit: f.NewGauge(prometheus.GaugeOpts{
			Name: "osrsflip_top_profit",
			Help: "Potential profit of the best row in the last render",
		}),
		renders: f.NewCounter(prometheus.CounterOpts{
			Name: "osrsflip_renders_total",
			Help: "Completed render passes",
		}),
		inputErrs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osrsflip_input_errors_total",
				Help: "Rejected user inputs by field",
			},
			[]string{"field"},
		),
	}
}

// ObserveFetch records one wiki fetch.
func (r *Recorder) ObserveFetch(resource string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.fetches.WithLabelValues(resource, result).Inc()
	r.latency.WithLabelValues(resource).Observe(d.Seconds())
}

// ObserveRender records a completed render pass.
func (r *Recorder) ObserveRender(candidates, ranked int, topProfit int64) {
	r.renders.Inc()
	r.candidates.Set(float64(candidates))
	r.ranked.Set(float64(ranked))
	r.topProfit.Set(float64(topProfit))
}

// ObserveInputError counts a rejected input.
func (r *Recorder) ObserveInputError(field string) {
	r.inputErrs.WithLabelValues(field).Inc()
}
