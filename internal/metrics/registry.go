package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

const namespace = "vault"

// RegisterMetrics registers the go, process, deposit flow and http
// collectors on the default registry.
func RegisterMetrics() {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector")
	registerIfNotExists(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector",
	)

	registerIfNotExists(depositStepTransitionsTotal, "deposit_step_transitions_total")
	registerIfNotExists(depositFailuresTotal, "deposit_failures_total")
	registerIfNotExists(depositsCompletedTotal, "deposits_completed_total")
	registerIfNotExists(depositsActive, "deposits_active")
	registerIfNotExists(depositDuration, "deposit_duration_seconds")
	registerIfNotExists(pollingAttemptsTotal, "polling_attempts_total")

	registerIfNotExists(httpRequestsTotal, "http_requests_total")
	registerIfNotExists(httpRequestDuration, "http_request_duration_seconds")
}

func registerIfNotExists(collector prometheus.Collector, name string) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			log.Debugf("%s already registered", name)
			return
		}
		log.WithError(err).Errorf("failed to register %s", name)
	}
}
