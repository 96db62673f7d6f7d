package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "captchamodal_descriptor_fetch_duration_ms",
	Help:    "Time taken to fetch a challenge descriptor, by outcome",
	Buckets: prometheus.ExponentialBucketsRange(1, 30_000, 12),
}, []string{"outcome"})
