package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

// Metrics exposes run progress to prometheus on its own registry
type Metrics struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	meanFitness *prometheus.GaugeVec
	perfect     *prometheus.GaugeVec
	stepSeconds prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelga_generations_total",
			Help: "Completed generations per run.",
		}, []string{"run_id"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pixelga_mean_best_fitness",
			Help: "Mean best-of-population fitness over all pixels.",
		}, []string{"run_id"}),
		perfect: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pixelga_perfect_match_ratio",
			Help: "Fraction of pixels matching the target exactly.",
		}, []string{"run_id"}),
		stepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelga_generation_seconds",
			Help:    "Wall time of one grid generation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	m.registry.MustRegister(m.generations, m.meanFitness, m.perfect, m.stepSeconds)
	return m
}

func (m *Metrics) Observe(runID string, stats ai.GenerationStats) {
	labels := prometheus.Labels{"run_id": runID}
	m.generations.With(labels).Inc()
	m.meanFitness.With(labels).Set(stats.MeanFitness)
	m.perfect.With(labels).Set(stats.PerfectRatio())
	m.stepSeconds.Observe(stats.Duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
