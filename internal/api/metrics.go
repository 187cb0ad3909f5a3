package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorlix_backend_requests_total",
		Help: "Calls made to the LMS API, by method and response status.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorlix_backend_request_duration_seconds",
		Help:    "Latency of calls made to the LMS API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
