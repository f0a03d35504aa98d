package types

import (
	"fmt"
	"time"
)

// TaskPriority orders background task dequeue. Higher Rank() dequeues first;
// within a priority, tasks are FIFO.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// Rank returns the numeric ordering of the priority (critical highest).
// Unknown values rank below low so that malformed input never jumps the queue.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p.Rank() > 0
}

// ParsePriority converts a raw string into a TaskPriority.
// An empty string maps to PriorityMedium, the enqueue default.
func ParsePriority(s string) (TaskPriority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := TaskPriority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown task priority %q", s)
	}
	return p, nil
}

// TaskState tracks a background task through its lifecycle:
// queued -> processing -> {completed, failed, skipped}.
type TaskState string

const (
	TaskQueued     TaskState = "queued"
	TaskProcessing TaskState = "processing"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"

	// TaskSkipped marks a task short-circuited by an open circuit breaker.
	// It is a degraded outcome, not a failure.
	TaskSkipped TaskState = "skipped"
)

// ProcessingTask is a queued unit of background memory-processing work.
// Tasks live in memory only: the queue is best-effort and accepts
// at-most-once semantics across restarts.
type ProcessingTask struct {
	ID             string       `json:"id"`
	UserID         int          `json:"user_id"`
	Message        string       `json:"message"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Priority       TaskPriority `json:"priority"`

	// MemoryID optionally pins the task to a specific memory entry. When
	// empty the worker resolves the newest active memory for the user.
	MemoryID string `json:"memory_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}
