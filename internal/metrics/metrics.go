// Package metrics exposes partition and item counters as Prometheus metrics.
//
// Array tasks are short-lived batch processes, so nothing is served over HTTP.
// Each process keeps its own registry and writes it out in the text exposition
// format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrison/annobatch/internal/executor"
	"github.com/harrison/annobatch/internal/models"
)

// Metrics holds the collectors for one process. It implements executor.Observer.
type Metrics struct {
	registry *prometheus.Registry
	stage    string

	items          *prometheus.CounterVec
	itemDuration   *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	partitionItems *prometheus.GaugeVec
	failureRate    *prometheus.GaugeVec
	breached       *prometheus.GaugeVec
	lastCompletion *prometheus.GaugeVec
}

// New creates the collectors for stage on a fresh registry.
func New(stage string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stage:    stage,
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annobatch_items_total",
				Help: "Work items finished, by stage and status.",
			},
			[]string{"stage", "status"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annobatch_item_duration_seconds",
				Help:    "Wall time of a single work item, in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "annobatch_items_in_flight",
				Help: "Work items currently running.",
			},
		),
		partitionItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "annobatch_partition_items",
				Help: "Items in the partition handled by this array task.",
			},
			[]string{"stage", "task_id"},
		),
		failureRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "annobatch_partition_failure_rate",
				Help: "Share of failed, timed out and errored items in the partition.",
			},
			[]string{"stage", "task_id"},
		),
		breached: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "annobatch_partition_gate_breached",
				Help: "1 when the partition failure rate exceeded the threshold.",
			},
			[]string{"stage", "task_id"},
		),
		lastCompletion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "annobatch_partition_last_completion_timestamp_seconds",
				Help: "Unix time the partition summary was written.",
			},
			[]string{"stage", "task_id"},
		),
	}

	m.registry.MustRegister(m.items, m.itemDuration, m.inFlight,
		m.partitionItems, m.failureRate, m.breached, m.lastCompletion)

	// Pre-initialize every status so the series exist with value 0.
	for _, st := range models.AllStatuses() {
		m.items.WithLabelValues(stage, string(st))
	}
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ItemStarted implements executor.Observer.
func (m *Metrics) ItemStarted() {
	m.inFlight.Inc()
}

// ItemFinished implements executor.Observer.
func (m *Metrics) ItemFinished(r models.TaskResult) {
	m.inFlight.Dec()
	status := string(r.Status)
	m.items.WithLabelValues(m.stage, status).Inc()
	m.itemDuration.WithLabelValues(m.stage, status).Observe(r.Duration.Seconds())
}

// ObserveSummary records the partition-level gauges once its summary is written.
func (m *Metrics) ObserveSummary(s *models.TaskSummary, threshold float64) {
	id := strconv.Itoa(s.TaskID)
	m.partitionItems.WithLabelValues(m.stage, id).Set(float64(s.TotalItems))
	m.failureRate.WithLabelValues(m.stage, id).Set(executor.FailureRate(s.Statistics))
	breached := 0.0
	if executor.Breaches(s.Statistics, threshold) {
		breached = 1
	}
	m.breached.WithLabelValues(m.stage, id).Set(breached)
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	m.lastCompletion.WithLabelValues(m.stage, id).Set(float64(end.Unix()))
}

// TextfilePath expands "{task_id}" and "{stage}" in a configured textfile path.
func TextfilePath(tmpl string, stage string, taskID int) string {
	if stage == "" {
		stage = "default"
	}
	r := strings.NewReplacer("{task_id}", strconv.Itoa(taskID), "{stage}", stage)
	return r.Replace(tmpl)
}

// WriteTextfile writes the registry to path in the text exposition format.
// The write goes through a temporary file and rename, so a collector never
// reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ executor.Observer = (*Metrics)(nil)
