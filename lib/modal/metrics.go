package modal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchamodal_sessions_opened",
		Help: "The total number of dialogs opened, by challenge type",
	}, []string{"type"})

	sessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchamodal_sessions_resolved",
		Help: "The total number of dialog sessions resolved, by outcome",
	}, []string{"outcome"})

	staleFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captchamodal_stale_fetches",
		Help: "Descriptor fetches that finished after their session had ended",
	})
)
