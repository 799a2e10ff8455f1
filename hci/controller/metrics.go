package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blesim_accept_list_commands_total",
		Help: "Total number of filter accept list commands by command and status",
	}, []string{"command", "status"})
	acceptListEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blesim_accept_list_entries",
		Help: "Number of entries currently in the filter accept list",
	}, []string{"controller"})
)

// RegisterMetrics registers the controller collectors with r. Registering
// the same collectors twice is not an error, so every controller may call it.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{commandsTotal, acceptListEntries} {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
