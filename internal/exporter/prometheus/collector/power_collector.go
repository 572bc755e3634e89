// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pvetools/ryzenmon/internal/monitor"
)

type PowerDataProvider = monitor.PowerDataProvider

// PowerCollector exposes the most recent sampling cycle as gauges plus
// cumulative cycle and failure counters. All values for one scrape come
// from a single snapshot so per-CPU watts and their total stay consistent.
type PowerCollector struct {
	pm     PowerDataProvider
	logger *slog.Logger

	cpuWattsDesc     *prometheus.Desc
	cpuWattsTotal    *prometheus.Desc
	packageWattsDesc *prometheus.Desc

	cyclesDesc          *prometheus.Desc
	sampleFailuresDesc  *prometheus.Desc
	publishFailuresDesc *prometheus.Desc
}

func NewPowerCollector(pm PowerDataProvider, logger *slog.Logger) *PowerCollector {
	return &PowerCollector{
		pm:     pm,
		logger: logger.With("collector", "power"),

		cpuWattsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "cpu_watts"),
			"Average power of one sampled CPU over the last sampling window in watts",
			[]string{"cpu"}, nil),
		cpuWattsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "core_watts"),
			"Sum of per-CPU average power over the last sampling window in watts",
			nil, nil),
		packageWattsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "package_watts"),
			"Average package power over the last sampling window in watts",
			[]string{"package"}, nil),

		cyclesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "sample_cycles_total"),
			"Number of sampling cycles attempted",
			nil, nil),
		sampleFailuresDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "sample_failures_total"),
			"Number of sampling cycles that produced no metrics",
			nil, nil),
		publishFailuresDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ryzenmonNS, "", "publish_failures_total"),
			"Number of failed sink writes",
			nil, nil),
	}
}

func (c *PowerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuWattsDesc
	ch <- c.cpuWattsTotal
	ch <- c.packageWattsDesc
	ch <- c.cyclesDesc
	ch <- c.sampleFailuresDesc
	ch <- c.publishFailuresDesc
}

func (c *PowerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pm.Stats()
	ch <- prometheus.MustNewConstMetric(c.cyclesDesc, prometheus.CounterValue, float64(stats.Cycles))
	ch <- prometheus.MustNewConstMetric(c.sampleFailuresDesc, prometheus.CounterValue, float64(stats.SampleFailures))
	ch <- prometheus.MustNewConstMetric(c.publishFailuresDesc, prometheus.CounterValue, float64(stats.PublishFailures))

	snapshot := c.pm.Latest()
	if snapshot == nil {
		c.logger.Debug("no sampling cycle has completed yet")
		return
	}

	for i, cpu := range snapshot.CPUs {
		ch <- prometheus.MustNewConstMetric(c.cpuWattsDesc, prometheus.GaugeValue,
			snapshot.CoreWatts[i].Watts(), strconv.Itoa(cpu))
	}
	ch <- prometheus.MustNewConstMetric(c.cpuWattsTotal, prometheus.GaugeValue, snapshot.CoreTotal.Watts())

	for pkg, watts := range snapshot.PerPackage {
		ch <- prometheus.MustNewConstMetric(c.packageWattsDesc, prometheus.GaugeValue,
			watts.Watts(), strconv.Itoa(pkg))
	}
}
