package widgethost

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captchamodal_widgethost_requests",
	Help: "Requests served by the widget host, by route",
}, []string{"route"})
