package keystore

import "github.com/prometheus/client_golang/prometheus"

const resultOK = "ok"

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gorc",
		Subsystem: "keystore",
		Name:      "operations_total",
		Help:      "Keystore operations by backend, operation and result code.",
	},
	[]string{"backend", "operation", "result"},
)

// Collectors returns the keystore metrics for registration by the host process.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{operationsTotal}
}
