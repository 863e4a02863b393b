package perpetual

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/flowmech-labs/flowmech/internal/alert"
	"github.com/flowmech-labs/flowmech/internal/delegate"
	"github.com/flowmech-labs/flowmech/internal/lock"
	"github.com/flowmech-labs/flowmech/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDelegateService scripts the capability probe and liveness answers.
type fakeDelegateService struct {
	mu        sync.Mutex
	connected map[string]bool
	result    *delegate.ValidationResult
	err       error
	probes    int
}

func (f *fakeDelegateService) IsConnected(accountID, delegateID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[accountID+"/"+delegateID]
}

func (f *fakeDelegateService) ExecuteValidationTask(ctx context.Context, accountID string, task *delegate.ValidationTask) (*delegate.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.result, f.err
}

func (f *fakeDelegateService) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

type schedulerHarness struct {
	scheduler *Scheduler
	store     *MemoryStore
	delegates *fakeDelegateService
	alerts    *alert.RecordingPublisher
	metrics   *Metrics
}

func setupScheduler(t *testing.T, delegates *fakeDelegateService) *schedulerHarness {
	t.Helper()
	log := logger.NewLogger("debug", "text", os.Stderr)
	store := NewMemoryStore()
	alerts := alert.NewRecordingPublisher()
	metrics := NewMetrics(prometheus.NewRegistry())

	clients := NewClientRegistry()
	require.NoError(t, clients.Register("inventory", ServiceClientFunc(
		func(ctx context.Context, clientContext ClientContext, accountID string) (*delegate.ValidationTask, error) {
			return &delegate.ValidationTask{TaskType: "inventory"}, nil
		})))

	cfg := SchedulerConfig{
		// Long intervals: only explicit wakeups or direct handler calls drive
		// these tests.
		AssignmentInterval: time.Hour,
		RebalanceInterval:  time.Hour,
		AssignmentPoolSize: 1,
		RebalancePoolSize:  1,
		ValidationTimeout:  time.Second,
		LockTTL:            time.Second,
	}
	s := NewScheduler(cfg, store, clients, delegates, alerts, lock.NewMemoryLocker(), nil, metrics, log)
	return &schedulerHarness{scheduler: s, store: store, delegates: delegates, alerts: alerts, metrics: metrics}
}

func unassignedRecord(id string) *Record {
	return &Record{ID: id, AccountID: "acct-1", Type: "inventory", State: StateUnassigned}
}

func TestScheduler_AssignPositiveVerdict(t *testing.T) {
	delegates := &fakeDelegateService{result: &delegate.ValidationResult{DelegateID: "d-1", CanExecute: true}}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, record.State)
	assert.Equal(t, "d-1", record.DelegateID)
	assert.Empty(t, record.UnassignedReason)
	assert.False(t, record.LastAssignedAt.IsZero())

	calls := h.alerts.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Opened, "a successful assignment closes the standing alert")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.AssignOutcomes.WithLabelValues("assigned")))
}

func TestScheduler_AssignNegativeVerdict(t *testing.T) {
	delegates := &fakeDelegateService{result: &delegate.ValidationResult{
		DelegateID: "d-1",
		CanExecute: false,
		Message:    "unsupported task type",
	}}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateUnassigned, record.State)
	assert.Equal(t, ReasonNoEligibleDelegates, record.UnassignedReason)
	assert.Empty(t, record.DelegateID)

	calls := h.alerts.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Opened)
	assert.Equal(t, "rec-1", calls[0].Payload.RecordID)
	assert.Equal(t, "unsupported task type", calls[0].Payload.Message)
}

func TestScheduler_AssignNoInstalledDelegates(t *testing.T) {
	delegates := &fakeDelegateService{err: delegate.ErrNoInstalledDelegates}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoDelegateInstalled, record.UnassignedReason)

	calls := h.alerts.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Opened)
}

func TestScheduler_AssignNoAvailableDelegatesOpensAlert(t *testing.T) {
	delegates := &fakeDelegateService{err: delegate.ErrNoAvailableDelegates}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoDelegateAvailable, record.UnassignedReason)

	calls := h.alerts.Calls()
	require.Len(t, calls, 1, "a disconnected fleet must still raise an alert")
	assert.True(t, calls[0].Opened)
	assert.Equal(t, "inventory", calls[0].Payload.TaskType)
	assert.Equal(t, "rec-1", calls[0].Payload.RecordID)
}

func TestScheduler_AssignProbeFailureOpensAlertAndLeavesRecord(t *testing.T) {
	delegates := &fakeDelegateService{err: errors.New("probe transport broke")}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateUnassigned, record.State)
	assert.Empty(t, record.UnassignedReason, "a generic failure must not overwrite the record")

	calls := h.alerts.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Opened)
	assert.Contains(t, calls[0].Payload.Message, "failed to assign")
	assert.Contains(t, calls[0].Payload.Message, "probe transport broke")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.AssignOutcomes.WithLabelValues("failed")))
}

func TestScheduler_AssignSkipsRecordNoLongerUnassigned(t *testing.T) {
	delegates := &fakeDelegateService{result: &delegate.ValidationResult{DelegateID: "d-1", CanExecute: true}}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))
	_, err := h.store.AppointDelegate(context.Background(), "rec-1", "d-other", time.Now())
	require.NoError(t, err)

	h.scheduler.handleAssign(context.Background(), "rec-1")

	assert.Equal(t, 0, delegates.probeCount(), "an already-assigned record must not be probed")
	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "d-other", record.DelegateID)
}

func TestScheduler_AssignUnknownClientType(t *testing.T) {
	delegates := &fakeDelegateService{}
	h := setupScheduler(t, delegates)
	record := unassignedRecord("rec-1")
	record.Type = "no-such-type"
	require.NoError(t, h.store.Create(context.Background(), record))

	h.scheduler.handleAssign(context.Background(), "rec-1")

	got, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateUnassigned, got.State)
	assert.Equal(t, 0, delegates.probeCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.AssignOutcomes.WithLabelValues("failed")))
}

func TestScheduler_RebalanceFastPathKeepsConnectedDelegate(t *testing.T) {
	delegates := &fakeDelegateService{connected: map[string]bool{"acct-1/d-1": true}}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))
	_, err := h.store.AppointDelegate(context.Background(), "rec-1", "d-1", time.Now())
	require.NoError(t, err)
	_, err = h.store.MarkToRebalance(context.Background(), "rec-1")
	require.NoError(t, err)

	h.scheduler.handleRebalance(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, record.State)
	assert.Equal(t, "d-1", record.DelegateID)
	assert.Equal(t, 0, delegates.probeCount(), "the fast path must not re-validate")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RebalanceFastPath))
}

func TestScheduler_RebalanceFallsThroughToFullAssignment(t *testing.T) {
	delegates := &fakeDelegateService{
		connected: map[string]bool{}, // d-1 is gone
		result:    &delegate.ValidationResult{DelegateID: "d-2", CanExecute: true},
	}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))
	_, err := h.store.AppointDelegate(context.Background(), "rec-1", "d-1", time.Now())
	require.NoError(t, err)
	_, err = h.store.MarkToRebalance(context.Background(), "rec-1")
	require.NoError(t, err)

	h.scheduler.handleRebalance(context.Background(), "rec-1")

	record, err := h.store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateAssigned, record.State)
	assert.Equal(t, "d-2", record.DelegateID)
	assert.Equal(t, 1, delegates.probeCount())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.RebalanceFastPath))
}

func TestScheduler_CreateTaskWakesAssignmentLoop(t *testing.T) {
	delegates := &fakeDelegateService{result: &delegate.ValidationResult{DelegateID: "d-1", CanExecute: true}}
	h := setupScheduler(t, delegates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.scheduler.Start(ctx)
	defer h.scheduler.Stop()

	require.NoError(t, h.scheduler.CreateTask(ctx, unassignedRecord("rec-1")))

	// The wakeup should assign long before the hour-long poll interval.
	require.Eventually(t, func() bool {
		record, err := h.store.Get(context.Background(), "rec-1")
		return err == nil && record.State == StateAssigned
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_RequestRebalanceWakesRebalanceLoop(t *testing.T) {
	delegates := &fakeDelegateService{connected: map[string]bool{"acct-1/d-1": true}}
	h := setupScheduler(t, delegates)
	require.NoError(t, h.store.Create(context.Background(), unassignedRecord("rec-1")))
	_, err := h.store.AppointDelegate(context.Background(), "rec-1", "d-1", time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.scheduler.Start(ctx)
	defer h.scheduler.Stop()

	require.NoError(t, h.scheduler.RequestRebalance(ctx, "rec-1"))

	require.Eventually(t, func() bool {
		record, err := h.store.Get(context.Background(), "rec-1")
		return err == nil && record.State == StateAssigned && record.DelegateID == "d-1"
	}, 2*time.Second, 10*time.Millisecond)
}
