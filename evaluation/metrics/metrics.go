//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metrics exposes evaluation reports as Prometheus gauges and
// writes them to node exporter textfiles for batch scraping.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
)

const namespace = "foundry_evaluation"

// Collector holds the evaluation gauges on a private registry.
type Collector struct {
	registry     *prometheus.Registry
	score        *prometheus.GaugeVec
	passRate     *prometheus.GaugeVec
	notEvaluated *prometheus.GaugeVec
	records      prometheus.Gauge
	lastRun      prometheus.Gauge
}

// NewCollector creates a Collector with every gauge registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		score: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "score",
				Help:      "Mean evaluator score of the last evaluation.",
			},
			[]string{"evaluator"},
		),
		passRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pass_rate",
				Help:      "Share of records that passed the evaluator threshold.",
			},
			[]string{"evaluator"},
		),
		notEvaluated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "not_evaluated",
				Help:      "1 when the evaluator scored no record.",
			},
			[]string{"evaluator"},
		),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Number of records in the last evaluation.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last evaluation.",
		}),
	}
	c.registry.MustRegister(c.score, c.passRate, c.notEvaluated, c.records, c.lastRun)
	return c
}

// Registry returns the registry holding the gauges.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe replaces the gauges with the values of report.
func (c *Collector) Observe(report *evaluation.Report) {
	c.score.Reset()
	c.passRate.Reset()
	c.notEvaluated.Reset()
	for _, key := range report.MetricNames() {
		name, metric, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		m := report.Metrics[key]
		if m.Status == status.EvalStatusNotEvaluated || m.Value == nil {
			c.notEvaluated.WithLabelValues(name).Set(1)
			continue
		}
		c.notEvaluated.WithLabelValues(name).Set(0)
		switch metric {
		case name:
			c.score.WithLabelValues(name).Set(*m.Value)
		case evaluation.BinaryAggregate:
			c.passRate.WithLabelValues(name).Set(*m.Value)
		}
	}
	c.records.Set(float64(len(report.Rows)))
	if !report.CreatedAt.IsZero() {
		c.lastRun.Set(float64(report.CreatedAt.Unix()))
	}
}

// WriteTextfile writes the gauges to path in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// WriteReport observes report on a fresh collector and writes it to path.
func WriteReport(path string, report *evaluation.Report) error {
	c := NewCollector()
	c.Observe(report)
	return c.WriteTextfile(path)
}
