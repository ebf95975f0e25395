// Package scheduler provides the background task plugin: a cron timetable
// feeding a bounded worker pool. Jobs carry generated IDs so log lines from
// concurrent runs can be correlated.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
)

// PluginName is the registration name of this plugin.
const PluginName = "scheduler"

// StateKey is where the scheduler handle is published in the application
// state table.
const StateKey = "scheduler.pool"

// Scheduler errors
var (
	ErrNotStarted   = errors.New("scheduler not started")
	ErrQueueFull    = errors.New("job queue is full")
	ErrJobFuncNil   = errors.New("job function is nil")
	ErrJobNameEmpty = errors.New("job name cannot be empty")
)

// JobFunc is the unit of work a job executes.
type JobFunc func(ctx context.Context) error

type job struct {
	id   string
	name string
	run  JobFunc
}

// Plugin runs scheduled and ad-hoc jobs on a worker pool.
type Plugin struct {
	cfg    config.SchedulerConfig
	logger factory.Logger

	cron  *cron.Cron
	queue chan job

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates an unloaded scheduler plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad captures configuration and publishes the handle. Workers do not
// exist yet, so submissions fail until startup.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Scheduler
	p.logger = app.Logger()
	p.cron = cron.New()
	p.queue = make(chan job, p.cfg.QueueSize)

	if err := app.AddToState(StateKey, p); err != nil {
		return fmt.Errorf("publishing scheduler handle: %w", err)
	}

	p.logger.Info("scheduler plugin loaded",
		"workers", p.cfg.WorkerCount, "queue_size", p.cfg.QueueSize)
	return nil
}

// OnStartup launches the worker pool and the cron timetable.
func (p *Plugin) OnStartup(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx)
	}
	p.cron.Start()
	p.started = true

	p.logger.Info("scheduler plugin started")
	return nil
}

// OnShutdown stops the timetable, lets queued jobs finish and waits for the
// workers to drain.
func (p *Plugin) OnShutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	// Stop returns once in-flight cron dispatches have completed.
	<-p.cron.Stop().Done()

	// Submit sends while holding the mutex, so closing under the same
	// mutex cannot race a send from a submitter that saw started=true.
	p.mu.Lock()
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()

	p.logger.Info("scheduler plugin stopped")
	return nil
}

// Submit enqueues a one-off job for the pool. It returns the generated job
// ID without waiting for execution.
func (p *Plugin) Submit(name string, fn JobFunc) (string, error) {
	if name == "" {
		return "", ErrJobNameEmpty
	}
	if fn == nil {
		return "", ErrJobFuncNil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return "", ErrNotStarted
	}

	j := job{id: newJobID(), name: name, run: fn}
	select {
	case p.queue <- j:
		return j.id, nil
	default:
		return "", fmt.Errorf("%w: dropping job %q", ErrQueueFull, name)
	}
}

// Schedule registers fn on the cron timetable. Each firing enqueues a fresh
// job; firings that find the queue full are dropped and logged.
func (p *Plugin) Schedule(spec, name string, fn JobFunc) (cron.EntryID, error) {
	if name == "" {
		return 0, ErrJobNameEmpty
	}
	if fn == nil {
		return 0, ErrJobFuncNil
	}

	entryID, err := p.cron.AddFunc(spec, func() {
		if _, err := p.Submit(name, fn); err != nil {
			p.logger.Warn("scheduled job not enqueued", "job", name, "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scheduling job %q: %w", name, err)
	}
	return entryID, nil
}

func (p *Plugin) worker(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.queue {
		if ctx.Err() != nil {
			return
		}
		if err := j.run(ctx); err != nil {
			p.logger.Error("job failed", "job", j.name, "job_id", j.id, "error", err)
			continue
		}
		p.logger.Debug("job completed", "job", j.name, "job_id", j.id)
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
