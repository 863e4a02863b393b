// Package engine implements the node execution engine: the single writer of
// node execution status, the dispatcher that runs steps on a bounded worker
// pool, and the resume path that re-enters suspended steps when their async
// work completes.
package engine

import (
	"context"
	"time"

	"github.com/flowmech-labs/flowmech/internal/adviser"
	internalevents "github.com/flowmech-labs/flowmech/internal/events"
	"github.com/flowmech-labs/flowmech/internal/execution"
	"github.com/flowmech-labs/flowmech/internal/facilitator"
	"github.com/flowmech-labs/flowmech/internal/logger"
	"github.com/flowmech-labs/flowmech/internal/metrics"
	"github.com/flowmech-labs/flowmech/internal/step"
	"github.com/flowmech-labs/flowmech/internal/task"
	"github.com/flowmech-labs/flowmech/internal/tracing"
	internalwaiter "github.com/flowmech-labs/flowmech/internal/waiter"
	flowmech "github.com/flowmech-labs/flowmech/pkg/flowmech/v1"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	fmmetrics "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/metrics"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	fmtracing "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/tracing"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Engine is the default EngineV1 implementation.
type Engine struct {
	store        execution.Store
	waitEngine   waiter.Engine
	steps        *step.Registry
	advisers     *adviser.Registry
	facilitators *facilitator.Registry
	executors    *task.Registry
	navigator    plan.Navigator

	bus             events.Bus
	log             fmlog.Logger
	metricsProvider fmmetrics.RegistryProvider
	tracerProvider  fmtracing.TracerProvider
	tracer          oteltrace.Tracer
	metrics         *engineMetrics

	dispatcher *dispatcher
}

// Option customizes engine construction.
type Option func(*Engine)

// WithNavigator wires the plan-graph navigator consulted when a node ends.
func WithNavigator(nav plan.Navigator) Option {
	return func(e *Engine) { e.navigator = nav }
}

// WithEventBus replaces the default no-op event bus.
func WithEventBus(bus events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger replaces the default stderr logger.
func WithLogger(log fmlog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetricsRegistryProvider replaces the default Prometheus provider.
func WithMetricsRegistryProvider(p fmmetrics.RegistryProvider) Option {
	return func(e *Engine) { e.metricsProvider = p }
}

// WithTracerProvider replaces the default no-op tracer provider.
func WithTracerProvider(p fmtracing.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = p }
}

// WithWaitEngine replaces the engine-owned wait/notify engine, typically
// with a fake in tests.
func WithWaitEngine(w waiter.Engine) Option {
	return func(e *Engine) { e.waitEngine = w }
}

// WithWorkerPool sizes the dispatch worker pool and its queue.
func WithWorkerPool(workers, queueSize int) Option {
	return func(e *Engine) {
		e.dispatcher.workers = workers
		e.dispatcher.queueSize = queueSize
	}
}

// WithSynchronousDispatch makes dispatches run inline instead of on the
// worker pool, giving tests deterministic ordering.
func WithSynchronousDispatch() Option {
	return func(e *Engine) { e.dispatcher.synchronous = true }
}

// New wires an engine around the given store and registries. Unset
// collaborators default to no-op or stderr implementations.
func New(
	store execution.Store,
	steps *step.Registry,
	advisers *adviser.Registry,
	facilitators *facilitator.Registry,
	executors *task.Registry,
	opts ...Option,
) *Engine {
	if store == nil || steps == nil || advisers == nil || facilitators == nil || executors == nil {
		panic("engine.New requires store and all registries")
	}
	e := &Engine{
		store:        store,
		steps:        steps,
		advisers:     advisers,
		facilitators: facilitators,
		executors:    executors,
	}
	e.dispatcher = newDispatcher(e)

	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		e.log = logger.NewDefaultLogger("info")
	}
	e.log = e.log.With("component", "NodeExecutionEngine")
	if e.bus == nil {
		e.bus = internalevents.NewNoOpEventBus()
	}
	if e.metricsProvider == nil {
		e.metricsProvider = metrics.NewPrometheusRegistryProvider()
	}
	e.metrics = newEngineMetrics(e.metricsProvider.Registry())
	if e.tracerProvider == nil {
		noop, _ := tracing.NewNoOpProvider()
		e.tracerProvider = noop
	}
	e.tracer = e.tracerProvider.GetTracer("flowmech/engine")
	if e.waitEngine == nil {
		e.waitEngine = internalwaiter.NewEngine(e.log, e.metrics.waiterPending, e.metrics.waiterAnomalies)
	}
	return e
}

var _ flowmech.EngineV1 = (*Engine)(nil)

// Start launches the dispatch worker pool. Dispatches queued before Start
// wait in the queue.
func (e *Engine) Start(ctx context.Context) {
	e.dispatcher.start(ctx)
}

// Stop drains the dispatcher and waits for in-flight node executions.
func (e *Engine) Stop() {
	e.dispatcher.stop()
}

// EventBus implements flowmech.EngineV1.
func (e *Engine) EventBus() events.Bus { return e.bus }

// MetricsRegistryProvider implements flowmech.EngineV1.
func (e *Engine) MetricsRegistryProvider() fmmetrics.RegistryProvider { return e.metricsProvider }

// TracerProvider implements flowmech.EngineV1.
func (e *Engine) TracerProvider() fmtracing.TracerProvider { return e.tracerProvider }

// WaitEngine exposes the wait/notify engine so external producers (task
// pools, child plan executions) can resolve correlation IDs.
func (e *Engine) WaitEngine() waiter.Engine { return e.waitEngine }

func (e *Engine) emit(eventType events.EventType, node *plan.NodeExecution, payload map[string]interface{}) {
	e.bus.Emit(events.Event{
		Type:            eventType,
		Timestamp:       time.Now(),
		PlanExecutionID: node.PlanExecutionID,
		NodeExecutionID: node.ID,
		Payload:         payload,
	})
}
