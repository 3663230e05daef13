// Package metrics records command history steps and document reloads as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/territorium/servertools/internal/command"
	"github.com/territorium/servertools/internal/history"
	"github.com/territorium/servertools/internal/logging"
)

const namespace = "servertools"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder counts and times command steps. It implements history.Observer.
type Recorder struct {
	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec

	total  atomic.Uint64
	failed atomic.Uint64
	maxNs  atomic.Int64
}

var _ history.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "steps_total",
			Help:      "Command steps run through the history, by operation, kind and result.",
		}, []string{"op", "kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "step_seconds",
			Help:      "Duration of command steps.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"op", "kind"}),
	}
	for _, c := range []prometheus.Collector{r.steps, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveStep implements history.Observer.
func (r *Recorder) ObserveStep(op command.Op, kind command.Kind, d time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
		r.failed.Add(1)
	}
	r.total.Add(1)
	r.steps.WithLabelValues(string(op), kind.String(), result).Inc()
	r.duration.WithLabelValues(string(op), kind.String()).Observe(d.Seconds())

	ns := d.Nanoseconds()
	for {
		old := r.maxNs.Load()
		if ns <= old || r.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}


// Snapshot is a point-in-time summary of a Recorder.
type Snapshot struct {
	Steps   uint64
	Failed  uint64
	MaxStep time.Duration
}

// Snapshot returns the totals recorded so far.
func (r *Recorder) Snapshot() Snapshot {
	return Snapshot{
		Steps:   r.total.Load(),
		Failed:  r.failed.Load(),
		MaxStep: time.Duration(r.maxNs.Load()),
	}
}

// Reloads counts reloads of watched documents.
type Reloads struct {
	total *prometheus.CounterVec
}

// NewReloads creates the reload counter and registers it on reg.
func NewReloads(reg prometheus.Registerer) (*Reloads, error) {
	r := &Reloads{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "reloads_total",
			Help:      "Documents reloaded after a change on disk, by result.",
		}, []string{"result"}),
	}
	if err := reg.Register(r.total); err != nil {
		return nil, err
	}
	return r, nil
}

// Observe counts one reload that ended with err.
func (r *Reloads) Observe(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.total.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("metrics listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
