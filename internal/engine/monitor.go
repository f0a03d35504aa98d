package engine

import (
	"fmt"
	"sync"
	"time"
)

// Operation names a tracked operation category.
type Operation string

const (
	OpMemoryProcessing Operation = "memory_processing"
	OpPromptGeneration Operation = "prompt_generation"
	OpDeduplication    Operation = "deduplication"
	OpRetrieval        Operation = "retrieval"
)

// allOperations fixes the report iteration order.
var allOperations = []Operation{
	OpMemoryProcessing,
	OpPromptGeneration,
	OpDeduplication,
	OpRetrieval,
}

// latencyTargets holds the per-operation average-latency targets used to
// derive recommendations. Reference defaults, tuned empirically.
var latencyTargets = map[Operation]time.Duration{
	OpMemoryProcessing: 500 * time.Millisecond,
	OpPromptGeneration: 100 * time.Millisecond,
	OpDeduplication:    5 * time.Second,
	OpRetrieval:        200 * time.Millisecond,
}

// successRateAlertFloor is the success rate below which an alert is raised.
const successRateAlertFloor = 0.9

// OperationStats aggregates samples for one operation category.
type OperationStats struct {
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// PerformanceReport is the aggregate view returned by Report.
type PerformanceReport struct {
	Summary         map[Operation]OperationStats `json:"summary"`
	Recommendations []string                     `json:"recommendations"`
	Alerts          []string                     `json:"alerts"`
	Timestamp       time.Time                    `json:"timestamp"`
}

// PerformanceMonitor records latency/success samples for memory operations
// and produces aggregate reports. Pure aggregation: no side effects beyond
// internal counters, and a report over zero samples returns sensible
// defaults instead of failing.
type PerformanceMonitor struct {
	mu    sync.Mutex
	stats map[Operation]*operationAccumulator
}

type operationAccumulator struct {
	count    int
	failures int
	total    time.Duration
	max      time.Duration
}

// NewPerformanceMonitor creates an empty monitor.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		stats: make(map[Operation]*operationAccumulator),
	}
}

// Track records one sample for the given operation category.
func (m *PerformanceMonitor) Track(op Operation, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.stats[op]
	if acc == nil {
		acc = &operationAccumulator{}
		m.stats[op] = acc
	}

	acc.count++
	acc.total += duration
	if duration > acc.max {
		acc.max = duration
	}
	if !success {
		acc.failures++
	}
}

// Report aggregates the recorded samples into a snapshot with
// threshold-derived recommendations and alerts.
func (m *PerformanceMonitor) Report() PerformanceReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := PerformanceReport{
		Summary:   make(map[Operation]OperationStats, len(allOperations)),
		Timestamp: time.Now(),
	}

	for _, op := range allOperations {
		acc := m.stats[op]
		if acc == nil || acc.count == 0 {
			report.Summary[op] = OperationStats{SuccessRate: 1.0}
			continue
		}

		stats := OperationStats{
			Count:       acc.count,
			Failures:    acc.failures,
			SuccessRate: float64(acc.count-acc.failures) / float64(acc.count),
			AvgDuration: acc.total / time.Duration(acc.count),
			MaxDuration: acc.max,
		}
		report.Summary[op] = stats

		if target := latencyTargets[op]; target > 0 && stats.AvgDuration > target {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%s average %s exceeds target %s; consider reducing candidate pool size or worker load",
					op, stats.AvgDuration.Round(time.Millisecond), target))
		}
		if stats.SuccessRate < successRateAlertFloor {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("%s success rate %.0f%% below %.0f%%",
					op, stats.SuccessRate*100, successRateAlertFloor*100))
		}
	}

	return report
}
