package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowmech-labs/flowmech/internal/execution"
	"github.com/flowmech-labs/flowmech/internal/facilitator"
	"github.com/flowmech-labs/flowmech/internal/step"
	"github.com/flowmech-labs/flowmech/internal/tracing"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// QueueNodeExecution implements flowmech.EngineV1. The node is persisted at
// QUEUED and one dispatch is scheduled; everything after that happens on the
// worker pool.
func (e *Engine) QueueNodeExecution(ctx context.Context, node *plan.NodeExecution) error {
	if node == nil || node.ID == "" {
		return fmerrors.NewValidationError("queueNodeExecution requires a node execution with an id", nil)
	}
	queued := node.Clone()
	queued.Status = plan.StatusQueued
	if err := e.store.Save(ctx, queued); err != nil {
		return err
	}
	e.metrics.transitions.WithLabelValues(string(plan.StatusQueued)).Inc()
	e.emit(events.NodeQueued, queued, map[string]interface{}{"step_type": queued.StepType})
	e.log.Debugf("Queued node execution '%s' (step=%s)", queued.ID, queued.StepType)
	e.dispatcher.enqueue(ctx, queued.ID)
	return nil
}

// QueueTask implements flowmech.EngineV1. The executor owns task ID
// generation; queueing is idempotent per (nodeExecutionID, taskID) because a
// duplicate wait registration short-circuits before the response log is
// touched again.
func (e *Engine) QueueTask(ctx context.Context, nodeExecutionID string, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error) {
	if req == nil {
		return "", fmerrors.NewValidationError("queueTask requires a task request", nil)
	}
	node, err := e.store.Get(ctx, nodeExecutionID)
	if err != nil {
		return "", err
	}
	if node.Status.IsTerminal() {
		return "", fmerrors.NewInvalidRequestError(fmt.Sprintf("cannot queue task for ended node execution '%s'", nodeExecutionID), nil)
	}

	executor, err := e.executors.Get(req.Category)
	if err != nil {
		return "", fmerrors.NewConfigError(fmt.Sprintf("queueTask for node execution '%s'", nodeExecutionID), err)
	}

	taskID, err := executor.QueueTask(ctx, setupAbstractions, req)
	if err != nil {
		return "", err
	}

	err = e.waitEngine.WaitForAll(ctx, e.resumeCallback(nodeExecutionID), e.progressCallback(nodeExecutionID), taskID)
	if err != nil {
		if fmerrors.IsInvalidRequest(err) {
			// Already registered: a duplicate queue attempt for the same
			// task. The first registration stands.
			e.log.Debugf("Task '%s' already queued for node execution '%s'", taskID, nodeExecutionID)
			return taskID, nil
		}
		return "", err
	}

	if _, err := e.store.AppendResponseWithStatus(ctx, nodeExecutionID, plan.NewTaskExecutableResponse(taskID, req.Category), plan.StatusAsyncWaiting); err != nil {
		return "", err
	}
	e.metrics.transitions.WithLabelValues(string(plan.StatusAsyncWaiting)).Inc()
	e.metrics.queuedTasks.Inc()
	e.emit(events.TaskQueued, node, map[string]interface{}{
		"task_id":       taskID,
		"task_category": string(req.Category),
		"task_type":     req.Type,
	})
	e.log.Debugf("Queued task '%s' (category=%s) for node execution '%s'", taskID, req.Category, nodeExecutionID)
	return taskID, nil
}

// AddExecutableResponse implements flowmech.EngineV1. Wait registration
// happens before the append so a fast callback cannot outrun it. An empty
// or NO_OP status leaves the node's status untouched; otherwise the append
// and the transition are one atomic store write.
func (e *Engine) AddExecutableResponse(ctx context.Context, nodeExecutionID string, status plan.Status, resp plan.ExecutableResponse, callbackIDs []string) error {
	if len(callbackIDs) > 0 {
		err := e.waitEngine.WaitForAll(ctx, e.resumeCallback(nodeExecutionID), e.progressCallback(nodeExecutionID), callbackIDs...)
		if err != nil {
			return err
		}
	}

	if status == "" || status == plan.StatusNoOp {
		if _, err := e.store.AppendExecutableResponse(ctx, nodeExecutionID, resp); err != nil {
			return err
		}
		e.log.Debugf("Appended %s response to node execution '%s' without status change", resp.Kind, nodeExecutionID)
		return nil
	}

	node, err := e.store.AppendResponseWithStatus(ctx, nodeExecutionID, resp, status)
	if err != nil {
		return err
	}
	e.metrics.transitions.WithLabelValues(string(status)).Inc()
	e.emit(events.NodeStatusChanged, node, map[string]interface{}{"status": string(status)})
	e.log.Debugf("Appended %s response to node execution '%s', status now %s", resp.Kind, nodeExecutionID, status)
	return nil
}

// HandleStepResponse implements flowmech.EngineV1.
func (e *Engine) HandleStepResponse(ctx context.Context, nodeExecutionID string, stepResponse *plan.StepResponse) error {
	if stepResponse == nil || !stepResponse.Status.IsTerminal() {
		return fmerrors.NewValidationError("handleStepResponse requires a step response with a terminal status", nil)
	}
	node, err := e.store.Get(ctx, nodeExecutionID)
	if err != nil {
		return err
	}
	if node.Status.IsTerminal() {
		e.dropDuplicate(node, "step response")
		return nil
	}

	advice, err := e.consultAdvisers(ctx, node, stepResponse)
	if err != nil {
		return err
	}
	return e.applyAdvice(ctx, node, stepResponse, advice)
}

// consultAdvisers moves the node to EXECUTING_ADVISER and asks its advisers
// in order. The first adviser with an opinion wins; adviser errors are
// logged and treated as no opinion.
func (e *Engine) consultAdvisers(ctx context.Context, node *plan.NodeExecution, stepResponse *plan.StepResponse) (*plan.AdviserResponse, error) {
	if len(node.AdviserTypes) == 0 {
		return nil, nil
	}
	updated, err := e.store.UpdateStatus(ctx, node.ID, plan.StatusExecutingAdviser)
	if err != nil {
		return nil, err
	}
	e.metrics.transitions.WithLabelValues(string(plan.StatusExecutingAdviser)).Inc()

	event := plan.AdvisingEvent{NodeExecution: updated, StepResponse: stepResponse}
	for _, adviserType := range node.AdviserTypes {
		adv, err := e.advisers.Get(adviserType)
		if err != nil {
			// Unknown adviser type is a configuration problem of the node;
			// fail it loudly rather than guessing.
			e.endTransition(ctx, node, plan.StatusFailed, err.Error())
			return nil, err
		}
		response, err := adv.Advise(ctx, event)
		if err != nil {
			e.log.Errorf("Adviser '%s' failed for node execution '%s': %v", adviserType, node.ID, err)
			continue
		}
		if response != nil {
			e.log.Debugf("Adviser '%s' decided %s for node execution '%s'", adviserType, response.Type, node.ID)
			return response, nil
		}
	}
	return nil, nil
}

func (e *Engine) applyAdvice(ctx context.Context, node *plan.NodeExecution, stepResponse *plan.StepResponse, advice *plan.AdviserResponse) error {
	if advice == nil {
		// No adviser had an opinion: end with the step's own status and
		// continue the plan only on success.
		e.endTransition(ctx, node, stepResponse.Status, stepResponse.FailureMessage())
		if stepResponse.Status == plan.StatusSucceeded {
			e.advance(ctx, node)
		} else {
			e.emitPlanEnded(node, stepResponse.Status)
		}
		return nil
	}

	switch advice.Type {
	case plan.AdviseProceed:
		e.endTransition(ctx, node, stepResponse.Status, stepResponse.FailureMessage())
		if stepResponse.Status == plan.StatusSucceeded {
			e.advance(ctx, node)
		} else {
			e.emitPlanEnded(node, stepResponse.Status)
		}

	case plan.AdviseMarkSuccess:
		e.endTransition(ctx, node, plan.StatusSucceeded, "")
		e.advance(ctx, node)

	case plan.AdviseRetry:
		if _, err := e.store.MarkRetry(ctx, node.ID); err != nil {
			return err
		}
		e.metrics.transitions.WithLabelValues(string(plan.StatusRunning)).Inc()
		e.log.Infof("Retrying node execution '%s' (attempt %d)", node.ID, node.RetryCount+1)
		e.dispatcher.enqueueAfter(ctx, node.ID, advice.RetryWait)

	case plan.AdviseRollback:
		e.endTransition(ctx, node, stepResponse.Status, stepResponse.FailureMessage())
		e.queueRollback(ctx, node)

	case plan.AdviseEndPlan:
		e.endTransition(ctx, node, stepResponse.Status, stepResponse.FailureMessage())
		e.emitPlanEnded(node, stepResponse.Status)

	default:
		return fmerrors.NewValidationError(fmt.Sprintf("unknown advise type '%s'", advice.Type), nil)
	}
	return nil
}

// ResumeNodeExecution implements flowmech.EngineV1. An async error routes
// the node straight to FAILED without consulting its advisers; otherwise the
// step re-enters with the accumulated responses.
func (e *Engine) ResumeNodeExecution(ctx context.Context, nodeExecutionID string, responses map[string]waiter.ResponseData, asyncError bool) error {
	node, err := e.store.Get(ctx, nodeExecutionID)
	if err != nil {
		return err
	}
	if node.Status.IsTerminal() {
		e.dropDuplicate(node, "resume")
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "node.resume",
		oteltrace.WithAttributes(tracing.NodeAttributes(node.PlanExecutionID, node.ID, node.StepType)...))
	defer span.End()

	e.emit(events.NodeResumed, node, map[string]interface{}{"async_error": asyncError})

	if asyncError {
		e.endTransition(ctx, node, plan.StatusFailed, failureMessageFrom(responses))
		e.emitPlanEnded(node, plan.StatusFailed)
		return nil
	}

	updated, err := e.store.UpdateStatus(ctx, nodeExecutionID, plan.StatusRunning)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	e.metrics.transitions.WithLabelValues(string(plan.StatusRunning)).Inc()

	mode, err := e.facilitateNode(ctx, updated)
	if err != nil {
		e.endTransition(ctx, updated, plan.StatusFailed, err.Error())
		return nil
	}
	e.runStep(ctx, updated, responses, mode)
	return nil
}

// AbortExecution implements flowmech.EngineV1. Both preconditions are
// checked against a fresh read; a node that does not satisfy them is left
// untouched.
func (e *Engine) AbortExecution(ctx context.Context, node *plan.NodeExecution, finalStatus plan.Status) error {
	if node == nil || node.ID == "" {
		return fmerrors.NewValidationError("abortExecution requires a node execution with an id", nil)
	}
	if !finalStatus.IsTerminal() {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("abort final status must be terminal, got '%s'", finalStatus), nil)
	}

	fresh, err := e.store.Get(ctx, node.ID)
	if err != nil {
		return err
	}
	if fresh.Status.IsTerminal() {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("node execution '%s' already ended with status %s", fresh.ID, fresh.Status), nil)
	}

	stepImpl, err := e.steps.Get(fresh.StepType)
	if err != nil {
		return err
	}
	abortable, ok := stepImpl.(step.Abortable)
	if !ok {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("step type '%s' does not support abort", fresh.StepType), nil)
	}
	latest := fresh.LatestExecutableResponse()
	if latest == nil || latest.Kind != plan.ResponseKindAsync || latest.Async == nil {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("node execution '%s' is not suspended on async work", fresh.ID), nil)
	}

	if err := abortable.HandleAbort(ctx, fresh.Ambiance, fresh.ResolvedParameters, latest.Async); err != nil {
		// The abort hook failing does not keep the node alive; the external
		// work may leak and is logged for follow-up.
		e.log.Errorf("Abort hook for node execution '%s' failed: %v", fresh.ID, err)
	}

	e.endTransition(ctx, fresh, finalStatus, "")
	e.emitPlanEnded(fresh, finalStatus)
	e.log.Infof("Aborted node execution '%s' with final status %s", fresh.ID, finalStatus)
	return nil
}

// --- dispatch and step execution ---

// triggerNode is the worker-pool entry for one execution attempt.
func (e *Engine) triggerNode(ctx context.Context, nodeExecutionID string) {
	node, err := e.store.Get(ctx, nodeExecutionID)
	if err != nil {
		e.log.Errorf("Dispatch failed to load node execution '%s': %v", nodeExecutionID, err)
		return
	}

	ctx, span := e.tracer.Start(ctx, "node.dispatch",
		oteltrace.WithAttributes(tracing.NodeAttributes(node.PlanExecutionID, node.ID, node.StepType)...))
	defer span.End()

	switch node.Status {
	case plan.StatusQueued:
		node, err = e.store.UpdateStatus(ctx, nodeExecutionID, plan.StatusRunning)
		if err != nil {
			// Lost a race with an abort; nothing to run.
			e.log.Debugf("Dispatch skipped for node execution '%s': %v", nodeExecutionID, err)
			return
		}
		e.metrics.transitions.WithLabelValues(string(plan.StatusRunning)).Inc()
		e.emit(events.NodeStatusChanged, node, map[string]interface{}{"status": string(plan.StatusRunning)})
	case plan.StatusRunning:
		// Retry attempt: MarkRetry already re-armed the status.
	default:
		e.log.Debugf("Dispatch skipped for node execution '%s' in status %s", nodeExecutionID, node.Status)
		return
	}

	mode, err := e.facilitateNode(ctx, node)
	if err != nil {
		e.endTransition(ctx, node, plan.StatusFailed, err.Error())
		return
	}
	e.log.Debugf("Dispatching node execution '%s' (step=%s, mode=%s)", node.ID, node.StepType, mode)

	e.runStep(ctx, node, nil, mode)
}

// facilitateNode resolves the node's facilitator and asks it to select the
// execution mode for the next step invocation.
func (e *Engine) facilitateNode(ctx context.Context, node *plan.NodeExecution) (facilitator.Mode, error) {
	fac, err := e.facilitators.Resolve(node)
	if err != nil {
		return "", err
	}
	return fac.Facilitate(ctx, node)
}

// modeViolation reports why outcome is illegal under mode, or "" when it is
// allowed. SYNC steps must finish in-process, ASYNC steps may suspend but
// not hand work to a task pool, TASK steps may not suspend on raw callbacks.
// Modes outside the built-in three impose no constraint.
func modeViolation(mode facilitator.Mode, outcome *step.Outcome) string {
	switch mode {
	case facilitator.ModeSync:
		if outcome.Async != nil || outcome.Task != nil {
			return fmt.Sprintf("step produced %s work but the facilitator selected %s mode", outcomeKind(outcome), mode)
		}
	case facilitator.ModeAsync:
		if outcome.Task != nil {
			return fmt.Sprintf("step produced task work but the facilitator selected %s mode", mode)
		}
	case facilitator.ModeTask:
		if outcome.Async != nil {
			return fmt.Sprintf("step produced async work but the facilitator selected %s mode", mode)
		}
	}
	return ""
}

func outcomeKind(outcome *step.Outcome) string {
	switch {
	case outcome.Async != nil:
		return "async"
	case outcome.Task != nil:
		return "task"
	}
	return "response"
}

// runStep executes the node's step under the facilitated mode and routes its
// outcome. responses is nil on first execution and carries the accumulated
// async results on resume.
func (e *Engine) runStep(ctx context.Context, node *plan.NodeExecution, responses map[string]waiter.ResponseData, mode facilitator.Mode) {
	stepImpl, err := e.steps.Get(node.StepType)
	if err != nil {
		e.endTransition(ctx, node, plan.StatusFailed, err.Error())
		return
	}

	outcome, err := stepImpl.Execute(ctx, node.Ambiance, node.ResolvedParameters, responses)
	if err != nil {
		resp := &plan.StepResponse{Status: plan.StatusFailed, FailureInfo: &plan.FailureInfo{Message: err.Error()}}
		if handleErr := e.HandleStepResponse(ctx, node.ID, resp); handleErr != nil {
			e.log.Errorf("Handling step failure for node execution '%s' failed: %v", node.ID, handleErr)
		}
		return
	}
	if outcome != nil {
		if msg := modeViolation(mode, outcome); msg != "" {
			e.endTransition(ctx, node, plan.StatusFailed, msg)
			return
		}
	}

	switch {
	case outcome == nil:
		e.endTransition(ctx, node, plan.StatusFailed, "step returned no outcome")

	case outcome.Async != nil:
		err := e.AddExecutableResponse(ctx, node.ID, plan.StatusAsyncWaiting,
			plan.NewAsyncExecutableResponse(outcome.Async.CallbackIDs), outcome.Async.CallbackIDs)
		if err != nil {
			e.log.Errorf("Registering async wait for node execution '%s' failed: %v", node.ID, err)
		}

	case outcome.Task != nil:
		if _, err := e.QueueTask(ctx, node.ID, node.Ambiance.SetupAbstractions, outcome.Task); err != nil {
			e.log.Errorf("Queueing task for node execution '%s' failed: %v", node.ID, err)
			e.endTransition(ctx, node, plan.StatusFailed, err.Error())
		}

	case outcome.Response != nil:
		if err := e.HandleStepResponse(ctx, node.ID, outcome.Response); err != nil {
			e.log.Errorf("Handling step response for node execution '%s' failed: %v", node.ID, err)
		}

	default:
		e.endTransition(ctx, node, plan.StatusFailed, "step returned an empty outcome")
	}
}

// --- terminal transitions and plan continuation ---

// endTransition applies a terminal status with its bookkeeping fields in one
// atomic write. Losing the race to another terminal transition is dropped as
// a duplicate, not an error.
func (e *Engine) endTransition(ctx context.Context, node *plan.NodeExecution, status plan.Status, failureMessage string) {
	ops := []execution.FieldOp{execution.WithEndedNow()}
	if failureMessage != "" {
		ops = append(ops, execution.WithFailureMessage(failureMessage))
	}
	updated, err := e.store.UpdateStatus(ctx, node.ID, status, ops...)
	if err != nil {
		e.dropDuplicate(node, fmt.Sprintf("terminal transition to %s", status))
		return
	}
	e.metrics.transitions.WithLabelValues(string(status)).Inc()
	e.metrics.nodesEnded.WithLabelValues(string(status)).Inc()
	e.emit(events.NodeStatusChanged, updated, map[string]interface{}{"status": string(status)})
	e.emit(events.NodeEnded, updated, map[string]interface{}{"status": string(status)})
	e.log.Infof("Node execution '%s' ended with status %s", node.ID, status)
}

// advance queues the plan's next node after a successful end.
func (e *Engine) advance(ctx context.Context, node *plan.NodeExecution) {
	if e.navigator == nil {
		e.emitPlanEnded(node, plan.StatusSucceeded)
		return
	}
	next, err := e.navigator.NextNodeExecution(ctx, node)
	if err != nil {
		e.log.Errorf("Resolving next node after '%s' failed: %v", node.ID, err)
		return
	}
	if next == nil {
		e.emitPlanEnded(node, plan.StatusSucceeded)
		return
	}
	if err := e.QueueNodeExecution(ctx, next); err != nil {
		e.log.Errorf("Queueing next node '%s' after '%s' failed: %v", next.ID, node.ID, err)
	}
}

// queueRollback queues the designated rollback node after a ROLLBACK advise.
func (e *Engine) queueRollback(ctx context.Context, node *plan.NodeExecution) {
	if e.navigator == nil {
		e.emitPlanEnded(node, plan.StatusFailed)
		return
	}
	rollback, err := e.navigator.RollbackNodeExecution(ctx, node)
	if err != nil {
		e.log.Errorf("Resolving rollback node for '%s' failed: %v", node.ID, err)
		return
	}
	if rollback == nil {
		e.emitPlanEnded(node, plan.StatusFailed)
		return
	}
	if err := e.QueueNodeExecution(ctx, rollback); err != nil {
		e.log.Errorf("Queueing rollback node '%s' for '%s' failed: %v", rollback.ID, node.ID, err)
	}
}

func (e *Engine) emitPlanEnded(node *plan.NodeExecution, status plan.Status) {
	e.emit(events.PlanEnded, node, map[string]interface{}{"status": string(status)})
}

// dropDuplicate records a delivery that arrived after the node already
// reached a terminal status.
func (e *Engine) dropDuplicate(node *plan.NodeExecution, kind string) {
	e.metrics.duplicateCallbacks.Inc()
	e.emit(events.AnomalyDetected, node, map[string]interface{}{
		"kind":   kind,
		"status": string(node.Status),
	})
	e.log.Warnf("Dropping %s for node execution '%s' already in terminal status %s", kind, node.ID, node.Status)
}

// --- waiter callbacks ---

// resumeCallback builds the exactly-once notify callback that re-enters the
// node when its whole correlation set resolves.
func (e *Engine) resumeCallback(nodeExecutionID string) waiter.NotifyCallback {
	return waiter.NotifyCallbackFunc(func(ctx context.Context, responses map[string]waiter.ResponseData) error {
		asyncError := false
		for _, resp := range responses {
			if resp.Failed() {
				asyncError = true
				break
			}
		}
		return e.ResumeNodeExecution(ctx, nodeExecutionID, responses, asyncError)
	})
}

func (e *Engine) progressCallback(nodeExecutionID string) waiter.ProgressCallback {
	return waiter.ProgressCallbackFunc(func(ctx context.Context, correlationID string, update waiter.ResponseData) {
		e.log.Debugf("Progress on correlation '%s' for node execution '%s'", correlationID, nodeExecutionID)
	})
}

func failureMessageFrom(responses map[string]waiter.ResponseData) string {
	var messages []string
	for id, resp := range responses {
		if resp.Failed() {
			messages = append(messages, fmt.Sprintf("%s: %s", id, resp.Error))
		}
	}
	if len(messages) == 0 {
		return "async work reported an error"
	}
	return strings.Join(messages, "; ")
}
