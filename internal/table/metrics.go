package table

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tutorlix_table_query_failures_total",
	Help: "List queries that degraded to an empty result because the API call failed.",
}, []string{"resource"})
