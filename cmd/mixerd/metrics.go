// metrics.go - Metrics collection for the mixer daemon
package main

import (
	"fmt"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

// Metric represents a single metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricsCollector manages metrics collection
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*Metric
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter increments a counter metric
func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := mc.makeKey(name, labels)
	mc.counters[key]++
	mc.updateMetric(name, Counter, float64(mc.counters[key]), labels)
}

// SetGauge sets a gauge metric value
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := mc.makeKey(name, labels)
	mc.gauges[key] = value
	mc.updateMetric(name, Gauge, value, labels)
}

// RecordHistogram records a value in a histogram
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := mc.makeKey(name, labels)
	mc.histograms[key] = append(mc.histograms[key], value)

	// Keep only the last 1000 values
	if len(mc.histograms[key]) > 1000 {
		mc.histograms[key] = mc.histograms[key][len(mc.histograms[key])-1000:]
	}

	mc.updateMetric(name, Histogram, value, labels)
}

// GetMetric retrieves a metric by name and labels
func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) *Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.metrics[mc.makeKey(name, labels)]
}

// GetMetricsSummary returns a summary of all metrics
func (mc *MetricsCollector) GetMetricsSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := make(map[string]interface{})

	counters := make(map[string]int64, len(mc.counters))
	for key, counter := range mc.counters {
		counters[key] = counter
	}
	summary["counters"] = counters

	gauges := make(map[string]float64, len(mc.gauges))
	for key, gauge := range mc.gauges {
		gauges[key] = gauge
	}
	summary["gauges"] = gauges

	histograms := make(map[string]map[string]float64)
	for key, values := range mc.histograms {
		if len(values) == 0 {
			continue
		}
		h := map[string]float64{
			"count": float64(len(values)),
			"min":   values[0],
			"max":   values[0],
			"sum":   0,
		}
		for _, v := range values {
			if v < h["min"] {
				h["min"] = v
			}
			if v > h["max"] {
				h["max"] = v
			}
			h["sum"] += v
		}
		h["avg"] = h["sum"] / h["count"]
		histograms[key] = h
	}
	summary["histograms"] = histograms

	return summary
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics = make(map[string]*Metric)
	mc.counters = make(map[string]int64)
	mc.gauges = make(map[string]float64)
	mc.histograms = make(map[string][]float64)
}

// makeKey creates a unique key for a metric name and labels
func (mc *MetricsCollector) makeKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	key := name
	for k, v := range labels {
		key += fmt.Sprintf("_%s_%s", k, v)
	}
	return key
}

// updateMetric updates or creates a metric
func (mc *MetricsCollector) updateMetric(name string, metricType MetricType, value float64, labels map[string]string) {
	mc.metrics[mc.makeKey(name, labels)] = &Metric{
		Name:      name,
		Type:      metricType,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// Predefined metric names
const (
	MetricDepositCount        = "deposit_count"
	MetricWithdrawalCount     = "withdrawal_count"
	MetricRejectedCount       = "rejected_count"
	MetricProofGenerationTime = "proof_generation_time"
	MetricProofVerifyTime     = "proof_verify_time"
	MetricCircuitCompileTime  = "circuit_compile_time"
	MetricTreeLeaves          = "tree_leaves"
	MetricErrorCount          = "error_count"
)

// Convenience methods for common metrics
func (mc *MetricsCollector) RecordDeposit(leaves uint64) {
	mc.IncrementCounter(MetricDepositCount, nil)
	mc.SetGauge(MetricTreeLeaves, float64(leaves), nil)
}

func (mc *MetricsCollector) RecordWithdrawal(leaves uint64) {
	mc.IncrementCounter(MetricWithdrawalCount, nil)
	mc.SetGauge(MetricTreeLeaves, float64(leaves), nil)
}

func (mc *MetricsCollector) RecordRejected(reason string) {
	mc.IncrementCounter(MetricRejectedCount, map[string]string{"reason": reason})
}

func (mc *MetricsCollector) RecordProofGeneration(duration time.Duration) {
	mc.RecordHistogram(MetricProofGenerationTime, duration.Seconds(), nil)
}

func (mc *MetricsCollector) RecordProofVerify(duration time.Duration) {
	mc.RecordHistogram(MetricProofVerifyTime, duration.Seconds(), nil)
}

func (mc *MetricsCollector) RecordCircuitCompile(duration time.Duration) {
	mc.RecordHistogram(MetricCircuitCompileTime, duration.Seconds(), nil)
}

func (mc *MetricsCollector) RecordError(errorType string) {
	mc.IncrementCounter(MetricErrorCount, map[string]string{"type": errorType})
}
