package execution_test

import (
	"context"
	"testing"

	"github.com/flowmech-labs/flowmech/internal/execution"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedNode(id string) *plan.NodeExecution {
	return &plan.NodeExecution{
		ID:              id,
		PlanExecutionID: "plan-1",
		StepType:        "HTTP",
		Status:          plan.StatusQueued,
	}
}

func TestMemoryStore_SaveAndGetReturnsCopy(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))

	got, err := store.Get(ctx, "node-1")
	require.NoError(t, err)
	got.StepType = "MUTATED"
	got.ExecutableResponses = append(got.ExecutableResponses, plan.NewAsyncExecutableResponse([]string{"x"}))

	fresh, err := store.Get(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, "HTTP", fresh.StepType, "mutating a read copy must not touch the stored record")
	assert.Empty(t, fresh.ExecutableResponses)
}

func TestMemoryStore_SaveDuplicateIDRejected(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	err := store.Save(ctx, newQueuedNode("node-1"))
	require.Error(t, err)
	assert.True(t, fmerrors.IsInvalidRequest(err))
}

func TestMemoryStore_GetUnknownIDIsNotFound(t *testing.T) {
	store := execution.NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, fmerrors.IsNotFound(err))
}

func TestMemoryStore_UpdateStatusStampsStartedAt(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))

	updated, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusRunning, updated.Status)
	assert.False(t, updated.StartedAt.IsZero())
}

func TestMemoryStore_UpdateStatusRejectsIllegalTransition(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))

	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusSucceeded)
	require.Error(t, err)

	var transitionErr *fmerrors.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "node-1", transitionErr.NodeExecutionID)
	assert.Equal(t, string(plan.StatusQueued), transitionErr.From)
	assert.Equal(t, string(plan.StatusSucceeded), transitionErr.To)

	// The record must be untouched.
	node, err := store.Get(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusQueued, node.Status)
}

func TestMemoryStore_UpdateStatusAppliesFieldOps(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)

	updated, err := store.UpdateStatus(ctx, "node-1", plan.StatusFailed,
		execution.WithEndedNow(), execution.WithFailureMessage("step blew up"))
	require.NoError(t, err)
	assert.Equal(t, plan.StatusFailed, updated.Status)
	assert.Equal(t, "step blew up", updated.FailureMessage)
	assert.False(t, updated.EndedAt.IsZero())
}

func TestMemoryStore_AppendResponseWithStatusIsAtomic(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)

	resp := plan.NewAsyncExecutableResponse([]string{"cb-1", "cb-2"})
	updated, err := store.AppendResponseWithStatus(ctx, "node-1", resp, plan.StatusAsyncWaiting)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusAsyncWaiting, updated.Status)
	require.Len(t, updated.ExecutableResponses, 1)
	assert.Equal(t, plan.ResponseKindAsync, updated.ExecutableResponses[0].Kind)
}

func TestMemoryStore_AppendResponseWithStatusRejectedWholesale(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	node := newQueuedNode("node-1")
	node.Status = plan.StatusSucceeded
	require.NoError(t, store.Save(ctx, node))

	_, err := store.AppendResponseWithStatus(ctx, "node-1",
		plan.NewAsyncExecutableResponse([]string{"cb-1"}), plan.StatusAsyncWaiting)
	require.Error(t, err)

	// Neither the log nor the status may have moved.
	fresh, getErr := store.Get(ctx, "node-1")
	require.NoError(t, getErr)
	assert.Empty(t, fresh.ExecutableResponses)
	assert.Equal(t, plan.StatusSucceeded, fresh.Status)
}

func TestMemoryStore_AppendExecutableResponseLeavesStatus(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)

	updated, err := store.AppendExecutableResponse(ctx, "node-1",
		plan.ExecutableResponse{Kind: plan.ResponseKindSync, Sync: &plan.SyncResponse{Note: "checkpoint"}})
	require.NoError(t, err)
	assert.Equal(t, plan.StatusRunning, updated.Status)
	require.Len(t, updated.ExecutableResponses, 1)
}

func TestMemoryStore_MarkRetryIncrementsAndReArms(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, "node-1", plan.StatusExecutingAdviser)
	require.NoError(t, err)

	retried, err := store.MarkRetry(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusRunning, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)

	_, err = store.UpdateStatus(ctx, "node-1", plan.StatusExecutingAdviser)
	require.NoError(t, err)
	retried, err = store.MarkRetry(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, 2, retried.RetryCount)
}

func TestMemoryStore_TerminalStatusesAreFinal(t *testing.T) {
	store := execution.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newQueuedNode("node-1")))
	_, err := store.UpdateStatus(ctx, "node-1", plan.StatusRunning)
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, "node-1", plan.StatusAborted)
	require.NoError(t, err)

	for _, next := range []plan.Status{plan.StatusRunning, plan.StatusSucceeded, plan.StatusFailed, plan.StatusQueued} {
		_, err := store.UpdateStatus(ctx, "node-1", next)
		assert.Error(t, err, "transition out of ABORTED to %s must be rejected", next)
	}
	_, err = store.MarkRetry(ctx, "node-1")
	assert.Error(t, err)
}
