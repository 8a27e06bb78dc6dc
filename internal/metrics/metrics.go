// Package metrics: счётчики Prometheus, отдаются на /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultCached = "cached"
)

var (
	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidecraft_conversions_total",
			Help: "Markdown to PPTX conversions",
		},
		[]string{"result"},
	)
	conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slidecraft_conversion_duration_seconds",
			Help:    "Time spent in the external converter",
			Buckets: prometheus.DefBuckets,
		},
	)
	thumbnails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidecraft_thumbnails_total",
			Help: "Template thumbnail generation outcomes",
		},
		[]string{"result"},
	)
	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidecraft_logins_total",
			Help: "Login attempts",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(conversions, conversionDuration, thumbnails, logins)
}

func ConversionDone(result string, seconds float64) {
	conversions.WithLabelValues(result).Inc()
	if result == ResultOK {
		conversionDuration.Observe(seconds)
	}
}

func Thumbnail(result string) { thumbnails.WithLabelValues(result).Inc() }

func Login(ok bool) {
	if ok {
		logins.WithLabelValues(ResultOK).Inc()
		return
	}
	logins.WithLabelValues(ResultFailed).Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler { return promhttp.Handler() }
