package delegate

import (
	"context"
	"sync"
	"time"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/google/uuid"
)

// setupAbstractionAccountID is the setup abstraction key naming the account
// whose delegate fleet should run the task.
const setupAbstractionAccountID = "accountId"

// QueuedTask is one unit of work waiting for a delegate to acquire it.
type QueuedTask struct {
	TaskID    string
	AccountID string
	Request   *plan.TaskRequest
	QueuedAt  time.Time
}

// TaskExecutor queues engine work for the delegate fleet. Delegates pull with
// Acquire; results come back through the engine's wait/notify correlation on
// the task ID, so queueing is accept-and-return.
type TaskExecutor struct {
	registry *Registry
	log      fmlog.Logger

	mu sync.Mutex
	// outbox holds queued tasks per account until a delegate acquires them.
	outbox map[string][]*QueuedTask
}

// NewTaskExecutor creates an executor backed by the given fleet registry.
func NewTaskExecutor(registry *Registry, log fmlog.Logger) *TaskExecutor {
	if registry == nil || log == nil {
		panic("delegate.NewTaskExecutor requires a registry and a logger")
	}
	return &TaskExecutor{
		registry: registry,
		log:      log.With("component", "DelegateTaskExecutor"),
		outbox:   make(map[string][]*QueuedTask),
	}
}

// QueueTask accepts work for the account's fleet and returns the generated
// task ID the remote side will resolve. Queueing fails fast when the account
// has no fleet to run it.
func (e *TaskExecutor) QueueTask(ctx context.Context, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error) {
	if req == nil {
		return "", fmerrors.NewValidationError("task request cannot be nil", nil)
	}
	accountID := setupAbstractions[setupAbstractionAccountID]
	if accountID == "" {
		return "", fmerrors.NewValidationError("task setup abstractions must carry an accountId", nil)
	}
	if len(e.registry.ConnectedDelegates(accountID)) == 0 {
		return "", fmerrors.NewTransientError("no connected delegate to accept task", ErrNoAvailableDelegates)
	}

	queued := &QueuedTask{
		TaskID:    uuid.NewString(),
		AccountID: accountID,
		Request:   req,
		QueuedAt:  time.Now(),
	}

	e.mu.Lock()
	e.outbox[accountID] = append(e.outbox[accountID], queued)
	e.mu.Unlock()

	e.log.Debugf("Queued delegate task '%s' (type '%s') for account '%s'", queued.TaskID, req.Type, accountID)
	return queued.TaskID, nil
}

// Acquire hands the oldest queued task for the account to a delegate, or nil
// when the outbox is empty.
func (e *TaskExecutor) Acquire(accountID string) *QueuedTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.outbox[accountID]
	if len(pending) == 0 {
		return nil
	}
	next := pending[0]
	e.outbox[accountID] = pending[1:]
	return next
}

// PendingCount reports how many tasks are waiting for the account's fleet.
func (e *TaskExecutor) PendingCount(accountID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outbox[accountID])
}
