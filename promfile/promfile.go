// Package promfile writes the outcome of a run as a Prometheus textfile, for
// node_exporter's textfile collector on CI machines.
package promfile

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robotraconteur/svcharness/harness"
)

const namespace = "svcharness"

type metrics struct {
	success         prometheus.Gauge
	harnessExitCode prometheus.Gauge
	serviceExitCode prometheus.Gauge
	forced          prometheus.Gauge
	phaseDuration   *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer, runID string) *metrics {
	labels := prometheus.Labels{"run_id": runID}
	f := promauto.With(reg)
	return &metrics{
		success: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_success",
			Help:        "1 if the run succeeded, 0 otherwise",
			ConstLabels: labels,
		}),
		harnessExitCode: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "harness_exit_code",
			Help:        "Exit code of the harness itself",
			ConstLabels: labels,
		}),
		serviceExitCode: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "service_exit_code",
			Help:        "Exit code of the service, negative when ended by a signal",
			ConstLabels: labels,
		}),
		forced: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "service_forced_kill",
			Help:        "1 if the service had to be killed",
			ConstLabels: labels,
		}),
		phaseDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "phase_duration_seconds",
			Help:        "Time spent in each phase of the run",
			ConstLabels: labels,
		}, []string{"phase", "result"}),
	}
}

// Write replaces the file at path with the metrics for res and runErr.
func Write(path string, res *harness.Result, runErr error) error {
	if res == nil {
		res = &harness.Result{}
	}

	reg := prometheus.NewRegistry()
	m := newMetrics(reg, res.RunID)

	code := harness.ExitCode(runErr)
	m.harnessExitCode.Set(float64(code))
	if code == harness.ExitOK {
		m.success.Set(1)
	}
	if res.Forced {
		m.forced.Set(1)
	}

	// a service that never exited has no code worth exporting
	if res.ServiceExited {
		m.serviceExitCode.Set(float64(res.ServiceExitCode))
	} else {
		reg.Unregister(m.serviceExitCode)
	}

	for _, p := range res.Phases {
		m.phaseDuration.WithLabelValues(p.Name, p.Result).Set(p.Duration.Seconds())
	}

	err := prometheus.WriteToTextfile(path, reg)
	if err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
