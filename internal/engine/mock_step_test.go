package engine_test

import (
	"context"
	"sync"

	"github.com/flowmech-labs/flowmech/internal/step"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
)

// mockStep delegates to ExecuteFunc, passing the 1-based invocation count so
// tests can script different behavior for first execution vs resume vs retry.
type mockStep struct {
	mu    sync.Mutex
	calls int

	ExecuteFunc func(call int, responses map[string]waiter.ResponseData) (*step.Outcome, error)

	// lastResponses captures what the engine handed to the most recent call.
	lastResponses map[string]waiter.ResponseData
}

func (m *mockStep) Execute(ctx context.Context, ambiance plan.Ambiance, resolvedParams []byte, responses map[string]waiter.ResponseData) (*step.Outcome, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastResponses = responses
	m.mu.Unlock()
	return m.ExecuteFunc(call, responses)
}

func (m *mockStep) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockStep) receivedResponses() map[string]waiter.ResponseData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResponses
}

// abortableMockStep additionally implements step.Abortable and records the
// async responses its abort hook received.
type abortableMockStep struct {
	mockStep

	abortMu sync.Mutex
	aborted []*plan.AsyncResponse
	// AbortErr, when set, is returned by HandleAbort.
	AbortErr error
}

func (m *abortableMockStep) HandleAbort(ctx context.Context, ambiance plan.Ambiance, resolvedParams []byte, asyncResponse *plan.AsyncResponse) error {
	m.abortMu.Lock()
	m.aborted = append(m.aborted, asyncResponse)
	m.abortMu.Unlock()
	return m.AbortErr
}

func (m *abortableMockStep) abortCalls() []*plan.AsyncResponse {
	m.abortMu.Lock()
	defer m.abortMu.Unlock()
	return m.aborted
}

// succeed builds a terminal success outcome.
func succeed() (*step.Outcome, error) {
	return &step.Outcome{Response: &plan.StepResponse{Status: plan.StatusSucceeded}}, nil
}

// fail builds a terminal failure outcome with the given message.
func fail(msg string) (*step.Outcome, error) {
	return &step.Outcome{Response: &plan.StepResponse{
		Status:      plan.StatusFailed,
		FailureInfo: &plan.FailureInfo{Message: msg},
	}}, nil
}

// suspendOn builds an async-wait outcome for the given callback IDs.
func suspendOn(callbackIDs ...string) (*step.Outcome, error) {
	return &step.Outcome{Async: &plan.AsyncResponse{CallbackIDs: callbackIDs}}, nil
}

// fakeNavigator resolves plan-graph linkage from plain funcs. Nil funcs mean
// the plan ends in that direction.
type fakeNavigator struct {
	NextFunc     func(current *plan.NodeExecution) *plan.NodeExecution
	RollbackFunc func(current *plan.NodeExecution) *plan.NodeExecution
}

func (n *fakeNavigator) NextNodeExecution(ctx context.Context, current *plan.NodeExecution) (*plan.NodeExecution, error) {
	if n.NextFunc == nil {
		return nil, nil
	}
	return n.NextFunc(current), nil
}

func (n *fakeNavigator) RollbackNodeExecution(ctx context.Context, current *plan.NodeExecution) (*plan.NodeExecution, error) {
	if n.RollbackFunc == nil {
		return nil, nil
	}
	return n.RollbackFunc(current), nil
}

// fixedIDExecutor returns a canned task ID for every queued task.
type fixedIDExecutor struct {
	mu     sync.Mutex
	taskID string
	queued []*plan.TaskRequest
}

func (e *fixedIDExecutor) QueueTask(ctx context.Context, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error) {
	e.mu.Lock()
	e.queued = append(e.queued, req)
	e.mu.Unlock()
	return e.taskID, nil
}

func (e *fixedIDExecutor) queuedRequests() []*plan.TaskRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queued
}
