package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evogen/internal/model"
)

// Recorder exports generation diagnostics as Prometheus series labeled by
// problem. Gauges hold the latest generation observed for the problem, so
// the series count is bounded by the registered problems, not by runs.
type Recorder struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	stddev      *prometheus.GaugeVec
	diversity   *prometheus.GaugeVec
	runs        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evogen_generations_total",
			Help: "Generations evaluated.",
		}, []string{"problem"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evogen_best_fitness",
			Help: "Best fitness of the latest generation.",
		}, []string{"problem"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evogen_mean_fitness",
			Help: "Mean fitness of the latest generation.",
		}, []string{"problem"}),
		stddev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evogen_fitness_stddev",
			Help: "Fitness standard deviation of the latest generation.",
		}, []string{"problem"}),
		diversity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evogen_mean_genome_distance",
			Help: "Mean pairwise genome distance of the latest generation.",
		}, []string{"problem"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evogen_runs_total",
			Help: "Finished runs by problem and stop reason.",
		}, []string{"problem", "stop_reason"}),
	}
	r.registry.MustRegister(r.generations, r.best, r.mean, r.stddev, r.diversity, r.runs)
	return r
}

// Observer returns an observer that records into the problem's series.
func (r *Recorder) Observer(problem string) *RunObserver {
	return &RunObserver{recorder: r, labels: prometheus.Labels{"problem": problem}}
}

func (r *Recorder) RunFinished(problem, stopReason string) {
	r.runs.With(prometheus.Labels{"problem": problem, "stop_reason": stopReason}).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

type RunObserver struct {
	recorder *Recorder
	labels   prometheus.Labels
}

func (o *RunObserver) ObserveGeneration(d model.GenerationDiagnostics) {
	o.recorder.generations.With(o.labels).Inc()
	o.recorder.best.With(o.labels).Set(d.BestFitness)
	o.recorder.mean.With(o.labels).Set(d.MeanFitness)
	o.recorder.stddev.With(o.labels).Set(d.StdDevFitness)
	o.recorder.diversity.With(o.labels).Set(d.MeanDistance)
}
