package attestation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relayer_attestations_ingested_total",
	Help: "Attestation submissions by result.",
}, []string{"result"})
