// Package iterator implements the polling pump the perpetual task scheduler
// runs its loops on: a ticker-driven scan over a record source, feeding a
// bounded worker pool, with a wakeup nudge so fresh records do not wait a
// full interval.
package iterator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
)

// SchedulingMode controls what happens when a tick fires while the previous
// scan is still in flight.
type SchedulingMode int

const (
	// ModeSkipMissed drops ticks that fire during an in-flight scan; the
	// next scan starts fresh at the next tick.
	ModeSkipMissed SchedulingMode = iota
	// ModeRegular runs scans back to back at the configured cadence, each
	// scan completing before the loop waits for the next tick.
	ModeRegular
)

// Source lists the IDs of records currently eligible for handling.
type Source func(ctx context.Context) ([]string, error)

// Handler processes one record. It is invoked from the worker pool, so
// PoolSize bounds handler concurrency.
type Handler func(ctx context.Context, id string)

// Config sizes and paces one pump.
type Config struct {
	Name     string
	Interval time.Duration
	PoolSize int
	Mode     SchedulingMode
}

// Pump is one iterator loop instance.
type Pump struct {
	cfg     Config
	source  Source
	handler Handler
	log     fmlog.Logger

	wakeup chan struct{}
	work   chan string

	scanning atomic.Bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a pump. PoolSize defaults to 1 when non-positive.
func New(cfg Config, source Source, handler Handler, log fmlog.Logger) *Pump {
	if source == nil || handler == nil || log == nil {
		panic("iterator.New requires a source, a handler, and a logger")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Pump{
		cfg:     cfg,
		source:  source,
		handler: handler,
		log:     log.With("component", "IteratorPump", "iterator", cfg.Name),
		wakeup:  make(chan struct{}, 1),
		work:    make(chan string, cfg.PoolSize),
	}
}

// Start launches the worker pool and the tick loop. It returns immediately;
// Stop (or cancelling ctx) shuts the pump down.
func (p *Pump) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.loop(runCtx)
	p.log.Infof("Iterator started (interval=%v, pool=%d)", p.cfg.Interval, p.cfg.PoolSize)
}

// Stop cancels the loop and waits for in-flight handlers to finish.
func (p *Pump) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		p.log.Infof("Iterator stopped")
	})
}

// Wakeup nudges the loop to scan immediately. Non-blocking; a pending nudge
// coalesces with later ones.
func (p *Pump) Wakeup() {
	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

func (p *Pump) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatchScan(ctx)
		case <-p.wakeup:
			p.dispatchScan(ctx)
		}
	}
}

func (p *Pump) dispatchScan(ctx context.Context) {
	switch p.cfg.Mode {
	case ModeSkipMissed:
		// A tick that lands during an in-flight scan is dropped entirely;
		// the missed work is picked up by the next scan from scratch.
		if !p.scanning.CompareAndSwap(false, true) {
			p.log.Debugf("Skipping tick, previous scan still running")
			return
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.scanning.Store(false)
			p.scan(ctx)
		}()
	default:
		p.scan(ctx)
	}
}

func (p *Pump) scan(ctx context.Context) {
	ids, err := p.source(ctx)
	if err != nil {
		p.log.Errorf("Iterator scan failed: %v", err)
		return
	}
	for _, id := range ids {
		select {
		case p.work <- id:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pump) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.work:
			p.handler(ctx, id)
		}
	}
}
