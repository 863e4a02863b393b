// Package waiter implements the in-process wait/notify correlation engine.
// Registrants wait on a set of correlation IDs; producers resolve IDs as
// work completes. The registered callback fires exactly once, when the last
// pending ID resolves.
package waiter

import (
	"context"
	"fmt"
	"sync"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
	"github.com/prometheus/client_golang/prometheus"
)

// entry is one wait registration: the callback pair, the still-pending IDs,
// and the results collected so far.
type entry struct {
	callback waiter.NotifyCallback
	progress waiter.ProgressCallback
	pending  map[string]struct{}
	results  map[string]waiter.ResponseData
}

// Engine is the concurrent correlation table. A single mutex guards both the
// entries and the ID index; callbacks are invoked outside the lock so a slow
// consumer cannot stall producers.
type Engine struct {
	mu sync.Mutex
	// index maps a pending correlation ID to its registration.
	index map[string]*entry

	log fmlog.Logger

	// pendingGauge tracks live wait registrations; anomalyCounter counts
	// DoneWith calls for unknown or already-consumed IDs. Either may be nil.
	pendingGauge   prometheus.Gauge
	anomalyCounter prometheus.Counter
}

// NewEngine creates a wait/notify engine. Collectors may be nil when metrics
// are not wired (e.g. in tests).
func NewEngine(log fmlog.Logger, pendingGauge prometheus.Gauge, anomalyCounter prometheus.Counter) *Engine {
	if log == nil {
		panic("waiter.NewEngine requires a non-nil logger")
	}
	return &Engine{
		index:          make(map[string]*entry),
		log:            log.With("component", "WaitNotifyEngine"),
		pendingGauge:   pendingGauge,
		anomalyCounter: anomalyCounter,
	}
}

var _ waiter.Engine = (*Engine)(nil)

// WaitForAll registers callback against the given correlation IDs. The
// registration is all-or-nothing: if any ID is already pending for another
// registration, nothing is recorded and an error is returned.
func (e *Engine) WaitForAll(ctx context.Context, callback waiter.NotifyCallback, progress waiter.ProgressCallback, correlationIDs ...string) error {
	if callback == nil {
		return fmerrors.NewValidationError("wait registration requires a callback", nil)
	}
	if len(correlationIDs) == 0 {
		return fmerrors.NewValidationError("wait registration requires at least one correlation id", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range correlationIDs {
		if id == "" {
			return fmerrors.NewValidationError("correlation id must not be empty", nil)
		}
		if _, taken := e.index[id]; taken {
			return fmerrors.NewInvalidRequestError(fmt.Sprintf("correlation id '%s' is already pending", id), nil)
		}
	}

	ent := &entry{
		callback: callback,
		progress: progress,
		pending:  make(map[string]struct{}, len(correlationIDs)),
		results:  make(map[string]waiter.ResponseData, len(correlationIDs)),
	}
	for _, id := range correlationIDs {
		ent.pending[id] = struct{}{}
		e.index[id] = ent
	}
	if e.pendingGauge != nil {
		e.pendingGauge.Inc()
	}
	e.log.Debugf("Registered wait for %d correlation id(s)", len(correlationIDs))
	return nil
}

// DoneWith resolves one correlation ID. When it is the last pending ID of
// its registration, the entry is removed atomically and the callback fires
// with the full result map. A late or duplicate resolution is an anomaly:
// logged, counted, and otherwise ignored.
func (e *Engine) DoneWith(ctx context.Context, correlationID string, result waiter.ResponseData) {
	e.mu.Lock()
	ent, exists := e.index[correlationID]
	if !exists {
		e.mu.Unlock()
		e.recordAnomaly(correlationID)
		return
	}

	delete(e.index, correlationID)
	delete(ent.pending, correlationID)
	ent.results[correlationID] = result

	if len(ent.pending) > 0 {
		e.mu.Unlock()
		e.log.Debugf("Correlation id '%s' resolved, %d still pending", correlationID, len(ent.pending))
		return
	}

	// Last one in: take ownership of the results and fire outside the lock.
	results := ent.results
	if e.pendingGauge != nil {
		e.pendingGauge.Dec()
	}
	e.mu.Unlock()

	if err := ent.callback.Notify(ctx, results); err != nil {
		e.log.Errorf("Wait callback failed after correlation id '%s' completed the set: %v", correlationID, err)
	}
}

// ProgressOn forwards an intermediate update for a pending ID to its
// registration's progress callback, if one was provided. Updates for
// unknown IDs are dropped silently; progress is advisory.
func (e *Engine) ProgressOn(ctx context.Context, correlationID string, update waiter.ResponseData) {
	e.mu.Lock()
	ent, exists := e.index[correlationID]
	var progress waiter.ProgressCallback
	if exists {
		progress = ent.progress
	}
	e.mu.Unlock()

	if progress != nil {
		progress.Progress(ctx, correlationID, update)
	}
}

// PendingCount reports how many correlation IDs are currently unresolved.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.index)
}

func (e *Engine) recordAnomaly(correlationID string) {
	e.log.Warnf("Dropping resolution for unknown or already-consumed correlation id '%s'", correlationID)
	if e.anomalyCounter != nil {
		e.anomalyCounter.Inc()
	}
}
