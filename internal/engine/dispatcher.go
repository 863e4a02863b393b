package engine

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 64
)

// dispatcher runs node step executions on a bounded worker pool. Each queued
// item is one attempt at one node; retries re-enter the queue after their
// adviser-imposed wait.
type dispatcher struct {
	engine *Engine

	workers     int
	queueSize   int
	synchronous bool

	queue    chan string
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	runCtx   context.Context
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

func newDispatcher(e *Engine) *dispatcher {
	return &dispatcher{
		engine:    e,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
	}
}

func (d *dispatcher) start(ctx context.Context) {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started || d.synchronous {
		d.runCtx = ctx
		d.started = true
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.runCtx = runCtx
	d.cancel = cancel
	d.queue = make(chan string, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx)
	}
	d.started = true
}

func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		d.wg.Wait()
	})
}

// enqueue schedules one execution attempt for the node. In synchronous mode
// the attempt runs inline; otherwise it blocks only when the queue is full.
func (d *dispatcher) enqueue(ctx context.Context, nodeExecutionID string) {
	if d.synchronous {
		d.engine.triggerNode(ctx, nodeExecutionID)
		return
	}
	d.startMu.Lock()
	queue := d.queue
	runCtx := d.runCtx
	d.startMu.Unlock()
	if queue == nil {
		// Not started yet: run in a free goroutine rather than losing work.
		go d.engine.triggerNode(ctx, nodeExecutionID)
		return
	}
	select {
	case queue <- nodeExecutionID:
	case <-runCtx.Done():
	}
}

// enqueueAfter schedules an attempt after a delay, used for adviser retries.
func (d *dispatcher) enqueueAfter(ctx context.Context, nodeExecutionID string, wait time.Duration) {
	if wait <= 0 {
		d.enqueue(ctx, nodeExecutionID)
		return
	}
	if d.synchronous {
		time.Sleep(wait)
		d.engine.triggerNode(ctx, nodeExecutionID)
		return
	}
	time.AfterFunc(wait, func() {
		d.enqueue(context.WithoutCancel(ctx), nodeExecutionID)
	})
}

func (d *dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.engine.triggerNode(ctx, id)
		}
	}
}
