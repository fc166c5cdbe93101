package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
)

// DefaultLogLimit is how many engine log lines a job buffers
const DefaultLogLimit = 1000

// StopTimeout bounds how long Stop waits for the engine to honour cancellation
var StopTimeout = 30 * time.Second

// Engine runs one scraping job to completion. Results go to engine-owned
// storage; the returned error is the only outcome the orchestrator records.
type Engine interface {
	Run(ctx context.Context, params Parameters, report Reporter) error
}

// EngineFunc adapts a function to Engine
type EngineFunc func(ctx context.Context, params Parameters, report Reporter) error

// Run calls f
func (f EngineFunc) Run(ctx context.Context, params Parameters, report Reporter) error {
	return f(ctx, params, report)
}

// Reporter lets a running engine publish log lines and progress
type Reporter interface {
	Logf(format string, args ...any)
	Progress(current, total int)
}

type task struct {
	id     string
	params Parameters
}

// Orchestrator launches the engine off the caller's goroutine and tracks
// the single current job
type Orchestrator struct {
	engine   Engine
	logger   *zap.SugaredLogger
	logLimit int
	newID    func() string
	memStats func() (uint64, uint64, error)

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan task
	wg     sync.WaitGroup

	mu      sync.Mutex
	job     Job
	stopped bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithLogLimit caps buffered log lines per job; older lines are dropped
func WithLogLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.logLimit = n
		}
	}
}

// WithContext derives the worker context from ctx instead of Background
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.ctx = ctx }
}

// New creates an orchestrator and starts its worker
func New(engine Engine, opts ...Option) *Orchestrator {
	o := newOrchestrator(engine, opts...)
	o.wg.Add(1)
	go o.worker()
	return o
}

func newOrchestrator(engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		logger:   zap.NewNop().Sugar(),
		logLimit: DefaultLogLimit,
		newID:    uuid.NewString,
		memStats: memoryStats,
		ctx:      context.Background(),
		tasks:    make(chan task, 1),
		job:      Job{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ctx, o.cancel = context.WithCancel(o.ctx)
	return o
}

// Launch starts a job with params and returns its initial snapshot.
// It fails with ErrInvalidParameters for params that cannot run and with
// ErrAlreadyRunning while another job is running. It never waits on the engine.
func (o *Orchestrator) Launch(params Parameters) (Job, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return Job{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return Job{}, errors.ErrStopped
	}
	if err := o.ctx.Err(); err != nil {
		// the worker has exited; nothing would ever run the job
		return Job{}, errors.WithHint(errors.Mark(errors.Wrap(err, "worker context is done"), errors.ErrStopped),
			"the process is shutting down; start a new orchestrator")
	}
	if o.job.Status == StatusRunning {
		err := errors.Wrapf(errors.ErrAlreadyRunning, "job %s started %s ago",
			o.job.ID, time.Since(*o.job.StartedAt).Round(time.Second))
		return Job{}, errors.WithHint(err, "poll the status and launch again once it has finished")
	}

	now := time.Now()
	snapshot := params.clone()
	o.job = Job{
		ID:         o.newID(),
		Status:     StatusRunning,
		Parameters: &snapshot,
		StartedAt:  &now,
	}
	// Never blocks: the worker drains the buffer before it can run a job,
	// and only one job is Running at a time.
	o.tasks <- task{id: o.job.ID, params: params.clone()}

	o.logger.Infow("Job launched",
		logger.FieldJobID, o.job.ID,
		logger.FieldCountry, params.Country,
		"categories", params.Categories,
		"languages", params.Languages)
	return o.job.snapshot(), nil
}

// Status returns the current or last job. Before any launch it is an Idle
// job with no parameters.
func (o *Orchestrator) Status() Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job.snapshot()
}

// Drain returns the current job and clears its buffered log lines, so a
// poller receives each line once
func (o *Orchestrator) Drain() Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	j := o.job.snapshot()
	o.job.Log = nil
	return j
}

// Stop cancels the worker context and waits up to StopTimeout for the
// running job to return. A job still running afterwards is recorded as Failed.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(StopTimeout):
		o.logger.Warnw("Engine did not return after cancellation", "timeout", StopTimeout)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job.Status == StatusRunning {
		o.transition(o.job.ID, errors.Wrap(context.Canceled, "orchestrator stopped before the job ran"))
	}
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			o.failPending()
			return
		case t := <-o.tasks:
			// select is random when both are ready; cancellation wins
			if o.ctx.Err() != nil {
				o.mu.Lock()
				o.transition(t.id, errors.Wrap(o.ctx.Err(), "worker stopped before the job ran"))
				o.mu.Unlock()
				return
			}
			o.execute(t)
		}
	}
}

// failPending fails a task accepted just before the context was cancelled.
// Launch checks the context and enqueues under o.mu, so once the lock is
// held here no further task can arrive.
func (o *Orchestrator) failPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case t := <-o.tasks:
		o.transition(t.id, errors.Wrap(o.ctx.Err(), "worker stopped before the job ran"))
	default:
	}
}

func (o *Orchestrator) execute(t task) {
	ctx := logger.WithJobID(o.ctx, t.id)
	log := logger.FromContext(ctx, o.logger)

	if total, avail, err := o.memStats(); err == nil && total > 0 {
		availGB := float64(avail) / gib
		log.Debugw("Host memory at job start", "available_gb", availGB, "total_gb", float64(total)/gib)
		if availGB < lowMemoryGB {
			log.Warnw("Low host memory at job start", "available_gb", availGB)
		}
	}

	start := time.Now()
	err := o.runEngine(ctx, t)

	o.mu.Lock()
	o.transition(t.id, err)
	o.mu.Unlock()

	if err != nil {
		log.Warnw("Job failed",
			logger.FieldError, err,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
		return
	}
	log.Infow("Job completed", logger.FieldDurationMS, time.Since(start).Milliseconds())
}

// runEngine is the failure boundary: engine errors and panics are returned
// as values, never propagated
func (o *Orchestrator) runEngine(ctx context.Context, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Mark(errors.Newf("engine panicked: %v", r), errPanic), errors.ErrEngineFault)
		}
	}()
	return o.engine.Run(ctx, t.params, &reporter{o: o, id: t.id})
}

// transition moves job id to its terminal state. Caller holds o.mu.
func (o *Orchestrator) transition(id string, err error) {
	if o.job.ID != id || o.job.Status != StatusRunning {
		return
	}
	now := time.Now()
	o.job.FinishedAt = &now
	if err != nil {
		o.job.Status = StatusFailed
		o.job.Error = SanitizeError(err)
		o.job.ErrorCode = ClassifyError(err)
		return
	}
	o.job.Status = StatusCompleted
	o.job.Error = ""
	o.job.ErrorCode = ""
}

type reporter struct {
	o  *Orchestrator
	id string
}

func (r *reporter) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	r.o.mu.Lock()
	defer r.o.mu.Unlock()
	if r.o.job.ID != r.id {
		return
	}
	r.o.job.Log = append(r.o.job.Log, line)
	if over := len(r.o.job.Log) - r.o.logLimit; over > 0 {
		r.o.job.Log = append(r.o.job.Log[:0:0], r.o.job.Log[over:]...)
	}
}

func (r *reporter) Progress(current, total int) {
	r.o.mu.Lock()
	defer r.o.mu.Unlock()
	if r.o.job.ID != r.id {
		return
	}
	r.o.job.Progress = Progress{Current: current, Total: total}
}
