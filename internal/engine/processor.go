package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/pkg/types"
)

// FeatureGate controls per-user enablement of memory behaviors. A nil gate
// enables everything.
type FeatureGate interface {
	AtomicFactsEnabled(userID int) bool
	RelationshipDetectionEnabled(userID int) bool
}

// TaskOutcome reports how a task left the processor.
type TaskOutcome struct {
	Task     *types.ProcessingTask
	State    types.TaskState
	Duration time.Duration
	Err      error
}

// ProcessorMetrics is a snapshot of cumulative processor counters.
type ProcessorMetrics struct {
	Processed         uint64        `json:"processed"`
	Failed            uint64        `json:"failed"`
	Skipped           uint64        `json:"skipped"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	BreakerTrips      uint64        `json:"breaker_trips"`
	QueueDepth        int           `json:"queue_depth"`
}

// BatchResult aggregates a batch processing run.
type BatchResult struct {
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	SkippedCount   int           `json:"skipped_count"`
	ProcessingTime time.Duration `json:"processing_time"`
	UserGroups     int           `json:"user_groups"`
}

// Processor is the background memory-processing pipeline: a priority queue
// consumed by a worker pool, with every attempt wrapped by the circuit
// breaker and timed by the performance monitor.
//
// It is an explicit, constructed object. Queue, breaker and metrics state
// all live here and are shared by handle, not by global variables. One
// processor exists per downstream dependency.
type Processor struct {
	cfg           config.ProcessorConfig
	store         storage.Store
	extractor     *FactExtractor
	relationships *RelationshipEngine
	breaker       *CircuitBreaker
	monitor       *PerformanceMonitor
	gate          FeatureGate
	maxPool       int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  taskHeap
	seq    uint64
	closed bool

	started bool
	wg      sync.WaitGroup

	processed     uint64
	failed        uint64
	skipped       uint64
	totalDuration time.Duration

	// onTaskDone, when set, receives every task outcome (used for event push).
	onTaskDone func(TaskOutcome)
}

// NewProcessor wires a processor from its collaborators. The gate may be nil.
func NewProcessor(
	store storage.Store,
	relationships *RelationshipEngine,
	breaker *CircuitBreaker,
	monitor *PerformanceMonitor,
	gate FeatureGate,
	procCfg config.ProcessorConfig,
	engCfg config.EngineConfig,
) *Processor {
	p := &Processor{
		cfg:           procCfg,
		store:         store,
		extractor:     NewFactExtractor(),
		relationships: relationships,
		breaker:       breaker,
		monitor:       monitor,
		gate:          gate,
		maxPool:       engCfg.MaxCandidatePool,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetOnTaskDone registers a callback fired after every task attempt.
func (p *Processor) SetOnTaskDone(fn func(TaskOutcome)) {
	p.mu.Lock()
	p.onTaskDone = fn
	p.mu.Unlock()
}

// Start launches the worker pool. It must be called before Enqueue.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	for i := 0; i < p.cfg.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.started = true

	log.Printf("Started %d processing workers (queue size %d)", p.cfg.NumWorkers, p.cfg.QueueSize)
	return nil
}

// Enqueue accepts a task immediately and never blocks the caller: the chat
// request that triggered it gets its response without waiting on processing.
// Returns false when the queue is full or the processor is shut down; the
// task is dropped (best-effort, at-most-once semantics).
func (p *Processor) Enqueue(task *types.ProcessingTask) bool {
	if task == nil {
		return false
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if !task.Priority.Valid() {
		task.Priority = types.PriorityMedium
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.started {
		return false
	}
	if p.queue.Len() >= p.cfg.QueueSize {
		log.Printf("WARNING: Processing queue full (size=%d), dropping task for user %d",
			p.cfg.QueueSize, task.UserID)
		return false
	}

	p.seq++
	heap.Push(&p.queue, &queuedTask{task: task, seq: p.seq})
	p.cond.Signal()
	return true
}

// ProcessBatch runs a list of tasks with bounded concurrency, grouped by
// user for locality, and returns aggregate counts. A failure in one task
// never fails the batch.
func (p *Processor) ProcessBatch(ctx context.Context, tasks []*types.ProcessingTask) BatchResult {
	start := time.Now()

	groups := make(map[int][]*types.ProcessingTask)
	for _, t := range tasks {
		if t == nil {
			continue
		}
		groups[t.UserID] = append(groups[t.UserID], t)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		result  BatchResult
		permits = make(chan struct{}, p.cfg.BatchConcurrency)
	)
	result.UserGroups = len(groups)

	for _, group := range groups {
		wg.Add(1)
		go func(group []*types.ProcessingTask) {
			defer wg.Done()
			permits <- struct{}{}
			defer func() { <-permits }()

			// Tasks for one user run sequentially to keep per-user ordering.
			for _, t := range group {
				outcome := p.attempt(ctx, t)
				mu.Lock()
				switch outcome.State {
				case types.TaskCompleted:
					result.SuccessCount++
				case types.TaskSkipped:
					result.SkippedCount++
				default:
					result.FailureCount++
				}
				mu.Unlock()
			}
		}(group)
	}
	wg.Wait()

	result.ProcessingTime = time.Since(start)
	return result
}

// Shutdown stops accepting tasks and waits for workers to drain, bounded by
// the configured shutdown timeout.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("processor not started")
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All processing workers finished gracefully")
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		log.Printf("WARNING: Shutdown timeout reached, %d queued tasks may be dropped", p.QueueDepth())
		return nil
	case <-ctx.Done():
		log.Printf("WARNING: Context cancelled, %d queued tasks may be dropped", p.QueueDepth())
		return ctx.Err()
	}
}

// QueueDepth returns the number of tasks currently queued.
func (p *Processor) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Metrics returns a snapshot of the processor's cumulative counters.
func (p *Processor) Metrics() ProcessorMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := ProcessorMetrics{
		Processed:    p.processed,
		Failed:       p.failed,
		Skipped:      p.skipped,
		BreakerTrips: p.breaker.Trips(),
		QueueDepth:   p.queue.Len(),
	}
	attempts := p.processed + p.failed
	if attempts > 0 {
		m.AvgProcessingTime = p.totalDuration / time.Duration(attempts)
	}
	return m
}

// worker consumes the priority queue until shutdown.
func (p *Processor) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	log.Printf("Processing worker %d started", workerID)

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.queue.Len() == 0 && p.closed {
			p.mu.Unlock()
			log.Printf("Processing worker %d stopped", workerID)
			return
		}
		qt := heap.Pop(&p.queue).(*queuedTask)
		p.mu.Unlock()

		p.attempt(ctx, qt.task)
	}
}

// attempt runs one task through the breaker, records metrics, and reports
// the outcome. A panic or error during processing is caught here and never
// crashes the worker.
func (p *Processor) attempt(ctx context.Context, task *types.ProcessingTask) TaskOutcome {
	start := time.Now()

	err := p.breaker.Execute(ctx, func() (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				retErr = fmt.Errorf("panic during processing: %v", r)
			}
		}()
		return p.runPipeline(ctx, task)
	})

	outcome := TaskOutcome{
		Task:     task,
		Duration: time.Since(start),
		Err:      err,
	}

	p.mu.Lock()
	done := p.onTaskDone
	switch {
	case err == nil:
		outcome.State = types.TaskCompleted
		p.processed++
		p.totalDuration += outcome.Duration
	case errors.Is(err, ErrCircuitOpen):
		// Deliberate degraded mode, not a failure: keep it distinguishable
		// in both logs and counters.
		outcome.State = types.TaskSkipped
		p.skipped++
	default:
		outcome.State = types.TaskFailed
		p.failed++
		p.totalDuration += outcome.Duration
	}
	p.mu.Unlock()

	switch outcome.State {
	case types.TaskCompleted:
		p.monitor.Track(OpMemoryProcessing, outcome.Duration, true)
	case types.TaskFailed:
		p.monitor.Track(OpMemoryProcessing, outcome.Duration, false)
		log.Printf("WARNING: Task %s for user %d failed: %v", task.ID, task.UserID, err)
	case types.TaskSkipped:
		log.Printf("Task %s for user %d skipped: circuit breaker open", task.ID, task.UserID)
	}

	if done != nil {
		done(outcome)
	}
	return outcome
}

// runPipeline executes the relationship/fact pipeline for one task: resolve
// the target memory, extract and store atomic facts, discover and store
// relationships against the user's candidate pool.
func (p *Processor) runPipeline(ctx context.Context, task *types.ProcessingTask) error {
	pool, err := p.store.List(ctx, storage.ListOptions{
		UserID:     task.UserID,
		ActiveOnly: true,
		Limit:      p.maxPool,
	})
	if err != nil {
		return fmt.Errorf("load candidate pool: %w", err)
	}

	target, pool := resolveTarget(task, pool)
	if target == nil {
		// Nothing to process yet for this user; the next message will
		// trigger another enqueue.
		return nil
	}

	if p.gate == nil || p.gate.AtomicFactsEnabled(task.UserID) {
		facts := p.extractor.Extract(target.ID, target.Content)
		if err := p.store.ReplaceForMemory(ctx, target.ID, facts); err != nil {
			return fmt.Errorf("store facts for %s: %w", target.ID, err)
		}
	}

	if p.gate == nil || p.gate.RelationshipDetectionEnabled(task.UserID) {
		for _, rel := range p.relationships.DiscoverRelationships(target, pool) {
			rel := rel
			if err := p.store.Create(ctx, &rel); err != nil {
				return fmt.Errorf("store relationship %s->%s: %w",
					rel.SourceMemoryID, rel.TargetMemoryID, err)
			}
		}
	}

	return nil
}

// resolveTarget picks the memory a task applies to: the pinned MemoryID when
// present, otherwise the newest active memory in the pool. The returned pool
// excludes the target.
func resolveTarget(task *types.ProcessingTask, pool []*types.MemoryEntry) (*types.MemoryEntry, []*types.MemoryEntry) {
	if len(pool) == 0 {
		return nil, nil
	}

	idx := 0
	if task.MemoryID != "" {
		idx = -1
		for i, m := range pool {
			if m.ID == task.MemoryID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil
		}
	}

	target := pool[idx]
	rest := make([]*types.MemoryEntry, 0, len(pool)-1)
	rest = append(rest, pool[:idx]...)
	rest = append(rest, pool[idx+1:]...)
	return target, rest
}

// queuedTask pairs a task with its enqueue sequence number for FIFO ordering
// within a priority level.
type queuedTask struct {
	task *types.ProcessingTask
	seq  uint64
}

// taskHeap orders tasks by priority rank descending, then enqueue order.
type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	ri, rj := h[i].task.Priority.Rank(), h[j].task.Priority.Rank()
	if ri != rj {
		return ri > rj
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*queuedTask))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
