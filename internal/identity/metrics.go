package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hydrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tutorlix_identity_hydrations_total",
	Help: "Caller identification attempts by outcome.",
}, []string{"outcome"})
