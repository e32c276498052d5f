package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	registry     *prom.Registry
	stepDuration *prom.HistogramVec
	stepResults  *prom.CounterVec
	runDuration  prom.Histogram
	runOutcome   *prom.CounterVec
	exitCode     prom.Gauge
	copiedBytes  prom.Gauge
	lastRun      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docrun",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docrun",
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"step", "result"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docrun",
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docrun",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.exitCode = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docrun",
			Name:      "generator_exit_code",
			Help:      "Exit code of the last generator invocation (-1 if it did not exit)",
		})
		pr.copiedBytes = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docrun",
			Name:      "config_copied_bytes",
			Help:      "Size of the config file copied by the last run",
		})
		pr.lastRun = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docrun",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		})
		reg.MustRegister(pr.stepDuration, pr.stepResults, pr.runDuration, pr.runOutcome, pr.exitCode, pr.copiedBytes, pr.lastRun)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) SetCommandExitCode(code int) {
	if p == nil || p.exitCode == nil {
		return
	}
	p.exitCode.Set(float64(code))
}

func (p *PrometheusRecorder) SetCopiedBytes(n int64) {
	if p == nil || p.copiedBytes == nil {
		return
	}
	p.copiedBytes.Set(float64(n))
}

// WriteTextfile writes the recorder's registry to path in the Prometheus text
// format. The parent directory is created if needed; the write is atomic.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil || p.registry == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
