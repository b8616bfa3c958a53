package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/docuflow/docuflow/pkg/models"
)

// Analytics accumulates completion statistics from terminal instances. All
// aggregates are incremental so recording stays O(steps) regardless of how
// many instances have finished.
type Analytics struct {
	mu sync.Mutex

	total     int
	completed int
	failed    int
	cancelled int

	// Mean completion time over completed instances only.
	meanDuration time.Duration

	// Per workflow, per step: observed duration sum and sample count.
	stepStats map[string]map[string]*stepAccumulator
}

type stepAccumulator struct {
	total time.Duration
	count int
}

// AnalyticsSnapshot is a point-in-time copy of the aggregate counters.
type AnalyticsSnapshot struct {
	TotalWorkflows     int           `json:"total_workflows"`
	CompletedWorkflows int           `json:"completed_workflows"`
	FailedWorkflows    int           `json:"failed_workflows"`
	CancelledWorkflows int           `json:"cancelled_workflows"`
	CompletionRate     float64       `json:"completion_rate"`
	AverageDuration    time.Duration `json:"average_duration"`
}

// StepLatency reports the average observed duration for one step of a
// workflow definition.
type StepLatency struct {
	StepID          string        `json:"step_id"`
	AverageDuration time.Duration `json:"average_duration"`
	Samples         int           `json:"samples"`
}

func NewAnalytics() *Analytics {
	return &Analytics{
		stepStats: make(map[string]map[string]*stepAccumulator),
	}
}

// Record folds a terminal instance into the aggregates. Non-terminal
// instances are ignored so callers can pass whatever UpdateInstance returned.
func (a *Analytics) Record(instance *models.WorkflowInstance) {
	if instance == nil || !instance.Status.Terminal() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++

	switch instance.Status {
	case models.InstanceCompleted:
		a.completed++
		// Incremental mean avoids retaining every duration.
		a.meanDuration += (instance.Metrics.TotalDuration - a.meanDuration) / time.Duration(a.completed)
	case models.InstanceFailed:
		a.failed++
	case models.InstanceCancelled:
		a.cancelled++
	}

	if len(instance.Metrics.StepDurations) == 0 {
		return
	}

	steps, ok := a.stepStats[instance.WorkflowID]
	if !ok {
		steps = make(map[string]*stepAccumulator)
		a.stepStats[instance.WorkflowID] = steps
	}

	for stepID, duration := range instance.Metrics.StepDurations {
		acc, ok := steps[stepID]
		if !ok {
			acc = &stepAccumulator{}
			steps[stepID] = acc
		}

		acc.total += duration
		acc.count++
	}
}

func (a *Analytics) Snapshot() AnalyticsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := AnalyticsSnapshot{
		TotalWorkflows:     a.total,
		CompletedWorkflows: a.completed,
		FailedWorkflows:    a.failed,
		CancelledWorkflows: a.cancelled,
		AverageDuration:    a.meanDuration,
	}

	if a.total > 0 {
		snapshot.CompletionRate = float64(a.completed) / float64(a.total)
	}

	return snapshot
}

// Bottlenecks returns the steps of a workflow ordered by average duration,
// slowest first.
func (a *Analytics) Bottlenecks(workflowID string) []StepLatency {
	a.mu.Lock()
	defer a.mu.Unlock()

	steps, ok := a.stepStats[workflowID]
	if !ok {
		return nil
	}

	latencies := make([]StepLatency, 0, len(steps))

	for stepID, acc := range steps {
		latencies = append(latencies, StepLatency{
			StepID:          stepID,
			AverageDuration: acc.total / time.Duration(acc.count),
			Samples:         acc.count,
		})
	}

	sort.Slice(latencies, func(i, j int) bool {
		if latencies[i].AverageDuration != latencies[j].AverageDuration {
			return latencies[i].AverageDuration > latencies[j].AverageDuration
		}

		return latencies[i].StepID < latencies[j].StepID
	})

	return latencies
}
