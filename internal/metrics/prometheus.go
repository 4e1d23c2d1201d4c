package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/mdrun/internal/reporters"
)

const namespace = "mdrun"

// Recorder owns the Prometheus collectors of one process. It uses its own
// registry so tests and repeated runs do not collide.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	stepsTotal      prometheus.Counter
	framesTotal     prometheus.Counter
	phaseDuration   *prometheus.HistogramVec
	potentialEnergy prometheus.Gauge
	temperature     prometheus.Gauge
	engineRebuilds  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome",
		}, []string{"status"}),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Integration steps taken",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_analyzed_total",
			Help:      "Trajectory frames reduced to descriptors",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time per run phase",
			Buckets:   []float64{0.01, 0.1, 1, 10, 60, 600, 3600},
		}, []string{"phase"}),
		potentialEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "potential_energy_kj_per_mol",
			Help:      "Potential energy at the latest report",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_kelvin",
			Help:      "Instantaneous temperature at the latest report",
		}),
		engineRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_initializations_total",
			Help:      "Lifecycle initializations by start condition",
		}, []string{"start"}),
	}
	r.registry.MustRegister(
		r.runsTotal, r.stepsTotal, r.framesTotal, r.phaseDuration,
		r.potentialEnergy, r.temperature, r.engineRebuilds,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RunFinished(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.runsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) Steps(n int)  { r.stepsTotal.Add(float64(n)) }
func (r *Recorder) Frames(n int) { r.framesTotal.Add(float64(n)) }

func (r *Recorder) Initialized(start string) { r.engineRebuilds.WithLabelValues(start).Inc() }

// Phase starts timing a named phase; call the returned func when it ends.
func (r *Recorder) Phase(name string) func() {
	start := time.Now()
	return func() {
		r.phaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// Snapshot is a progress sink updating the energy and temperature gauges.
func (r *Recorder) Snapshot(s reporters.Snapshot) {
	r.potentialEnergy.Set(s.PotentialEnergy)
	r.temperature.Set(s.Temperature)
}

// WriteTextfile writes the current values in the text exposition format,
// for node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
