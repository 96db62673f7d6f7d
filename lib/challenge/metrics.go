package challenge

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TimeTaken is how long users take from the dialog opening to confirming it.
var TimeTaken = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "captchamodal_time_taken",
	Help:    "The time taken for a user to complete a challenge (milliseconds)",
	Buckets: prometheus.ExponentialBucketsRange(1, math.Pow(2, 20), 20),
}, []string{"type"})
