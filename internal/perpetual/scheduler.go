package perpetual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmech-labs/flowmech/internal/delegate"
	"github.com/flowmech-labs/flowmech/internal/iterator"
	"github.com/flowmech-labs/flowmech/internal/lock"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/alert"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
)

// SchedulerConfig paces and bounds the two scheduler loops.
type SchedulerConfig struct {
	AssignmentInterval time.Duration
	RebalanceInterval  time.Duration
	AssignmentPoolSize int
	RebalancePoolSize  int
	// ValidationTimeout bounds the synchronous capability probe per record.
	ValidationTimeout time.Duration
	// LockTTL is the lease duration of the per-record lock.
	LockTTL time.Duration
}

// Scheduler keeps every perpetual task record assigned to a connected,
// capable delegate. Two pumps drive it: the assignment loop scans
// TASK_UNASSIGNED records on a skip-missed cadence, the rebalance loop scans
// TASK_TO_REBALANCE records at a regular cadence. Both hand records to
// bounded worker pools behind a short-lived per-record lock.
type Scheduler struct {
	cfg       SchedulerConfig
	store     Store
	clients   *ClientRegistry
	delegates delegate.Service
	alerts    alert.Publisher
	locker    lock.Locker
	log       fmlog.Logger
	bus       events.Bus
	metrics   *Metrics

	assignPump    *iterator.Pump
	rebalancePump *iterator.Pump
}

// NewScheduler wires a scheduler. bus may be nil; metrics may be nil when
// collection is not wired.
func NewScheduler(
	cfg SchedulerConfig,
	store Store,
	clients *ClientRegistry,
	delegates delegate.Service,
	alerts alert.Publisher,
	locker lock.Locker,
	bus events.Bus,
	metrics *Metrics,
	log fmlog.Logger,
) *Scheduler {
	if store == nil || clients == nil || delegates == nil || alerts == nil || locker == nil || log == nil {
		panic("perpetual.NewScheduler requires store, clients, delegates, alerts, locker, and logger")
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     store,
		clients:   clients,
		delegates: delegates,
		alerts:    alerts,
		locker:    locker,
		log:       log.With("component", "PerpetualTaskScheduler"),
		bus:       bus,
		metrics:   metrics,
	}

	s.assignPump = iterator.New(iterator.Config{
		Name:     "perpetual-task-assignment",
		Interval: cfg.AssignmentInterval,
		PoolSize: cfg.AssignmentPoolSize,
		Mode:     iterator.ModeSkipMissed,
	}, s.listUnassigned, s.handleAssign, log)

	s.rebalancePump = iterator.New(iterator.Config{
		Name:     "perpetual-task-rebalance",
		Interval: cfg.RebalanceInterval,
		PoolSize: cfg.RebalancePoolSize,
		Mode:     iterator.ModeRegular,
	}, s.listToRebalance, s.handleRebalance, log)

	return s
}

// Start launches both loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.assignPump.Start(ctx)
	s.rebalancePump.Start(ctx)
}

// Stop shuts both loops down and waits for in-flight handlers.
func (s *Scheduler) Stop() {
	s.assignPump.Stop()
	s.rebalancePump.Stop()
}

// CreateTask persists a new record and nudges the assignment loop so the
// record does not wait a full interval.
func (s *Scheduler) CreateTask(ctx context.Context, record *Record) error {
	if err := s.store.Create(ctx, record); err != nil {
		return err
	}
	s.OnTaskCreated()
	return nil
}

// DeleteTask removes a record.
func (s *Scheduler) DeleteTask(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// RequestRebalance flags a record for redistribution and nudges the
// rebalance loop.
func (s *Scheduler) RequestRebalance(ctx context.Context, id string) error {
	if _, err := s.store.MarkToRebalance(ctx, id); err != nil {
		return err
	}
	s.OnRebalanceRequired()
	return nil
}

// OnTaskCreated nudges the assignment loop.
func (s *Scheduler) OnTaskCreated() { s.assignPump.Wakeup() }

// OnRebalanceRequired nudges the rebalance loop.
func (s *Scheduler) OnRebalanceRequired() { s.rebalancePump.Wakeup() }

func (s *Scheduler) listUnassigned(ctx context.Context) ([]string, error) {
	return s.store.ListIDsByState(ctx, StateUnassigned)
}

func (s *Scheduler) listToRebalance(ctx context.Context) ([]string, error) {
	return s.store.ListIDsByState(ctx, StateToRebalance)
}

// lockName scopes the per-record lock by task type so unrelated types never
// contend.
func lockName(record *Record) string {
	return fmt.Sprintf("perpetual:%s:%s", record.Type, record.ID)
}

// handleAssign is the assignment worker entry: claim the record lock,
// re-read the record, and run the assignment branches.
func (s *Scheduler) handleAssign(ctx context.Context, id string) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Debugf("Skipping assignment for '%s': %v", id, err)
		return
	}
	if record.State != StateUnassigned {
		// Someone else assigned it between scan and handling.
		return
	}

	release, ok := s.locker.TryAcquire(lockName(record), s.cfg.LockTTL)
	if !ok {
		s.log.Debugf("Record '%s' locked by another handler, skipping", id)
		return
	}
	defer release()

	s.assign(ctx, record)
}

// assign runs the capability probe and applies one of the five outcome
// branches.
func (s *Scheduler) assign(ctx context.Context, record *Record) {
	client, err := s.clients.Get(record.Type)
	if err != nil {
		// Unknown type is a config problem of this record; it stays
		// unassigned and is retried next cycle in case a client appears.
		s.log.Errorf("No service client for perpetual task '%s': %v", record.ID, err)
		s.countOutcome("failed")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ValidationTimeout)
	defer cancel()

	vtask, err := client.GetValidationTask(probeCtx, record.ClientContext, record.AccountID)
	if err != nil {
		s.log.Errorf("Building validation task for '%s' failed: %v", record.ID, err)
		s.countOutcome("failed")
		return
	}
	if vtask.Timeout <= 0 {
		vtask.Timeout = s.cfg.ValidationTimeout
	}

	result, err := s.delegates.ExecuteValidationTask(probeCtx, record.AccountID, vtask)
	switch {
	case err == nil && result != nil && result.CanExecute:
		if _, err := s.store.AppointDelegate(ctx, record.ID, result.DelegateID, time.Now()); err != nil {
			s.log.Errorf("Appointing delegate '%s' to record '%s' failed: %v", result.DelegateID, record.ID, err)
			s.countOutcome("failed")
			return
		}
		s.alerts.CloseAlert(alert.TypePerpetualTaskUnassigned, s.alertPayload(record, ""))
		s.emitAssignment(record, result.DelegateID)
		s.countOutcome("assigned")
		s.log.Infof("Assigned perpetual task '%s' to delegate '%s'", record.ID, result.DelegateID)

	case err == nil:
		// A delegate answered with a negative verdict.
		message := ""
		if result != nil {
			message = result.Message
		}
		s.markUnassigned(ctx, record, ReasonNoEligibleDelegates)
		s.alerts.OpenAlert(alert.TypePerpetualTaskUnassigned, s.alertPayload(record, message))
		s.countOutcome("no_eligible_delegates")

	case errors.Is(err, delegate.ErrNoInstalledDelegates):
		s.markUnassigned(ctx, record, ReasonNoDelegateInstalled)
		s.alerts.OpenAlert(alert.TypePerpetualTaskUnassigned, s.alertPayload(record, err.Error()))
		s.countOutcome("no_delegate_installed")

	case errors.Is(err, delegate.ErrNoAvailableDelegates):
		// Delegates exist but none is connected right now. A reconnect
		// resolves the record, but the gap still gets an alert so operators
		// see tasks of this type going unserved.
		s.markUnassigned(ctx, record, ReasonNoDelegateAvailable)
		s.alerts.OpenAlert(alert.TypePerpetualTaskUnassigned, s.alertPayload(record, err.Error()))
		s.countOutcome("no_delegate_available")

	default:
		// Generic probe failure: leave the record untouched so the next
		// cycle retries naturally, but surface the failure.
		s.log.Errorf("Capability probe for perpetual task '%s' failed: %v", record.ID, err)
		s.alerts.OpenAlert(alert.TypePerpetualTaskUnassigned,
			s.alertPayload(record, fmt.Sprintf("failed to assign a delegate: %v", err)))
		s.countOutcome("failed")
	}
}

// handleRebalance is the rebalance worker entry. A record whose delegate is
// still connected takes the fast path: the assignment is refreshed without
// re-validation. Otherwise it falls through to a full assignment.
func (s *Scheduler) handleRebalance(ctx context.Context, id string) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Debugf("Skipping rebalance for '%s': %v", id, err)
		return
	}
	if record.State != StateToRebalance {
		return
	}

	release, ok := s.locker.TryAcquire(lockName(record), s.cfg.LockTTL)
	if !ok {
		s.log.Debugf("Record '%s' locked by another handler, skipping", id)
		return
	}
	defer release()

	if record.DelegateID != "" && s.delegates.IsConnected(record.AccountID, record.DelegateID) {
		if _, err := s.store.AppointDelegate(ctx, record.ID, record.DelegateID, time.Now()); err != nil {
			s.log.Errorf("Refreshing assignment for record '%s' failed: %v", record.ID, err)
			return
		}
		if s.metrics != nil {
			s.metrics.RebalanceFastPath.Inc()
		}
		s.log.Debugf("Rebalance fast path kept record '%s' on delegate '%s'", record.ID, record.DelegateID)
		return
	}

	s.assign(ctx, record)
}

func (s *Scheduler) markUnassigned(ctx context.Context, record *Record, reason UnassignedReason) {
	if _, err := s.store.UpdateUnassignedReason(ctx, record.ID, reason); err != nil {
		s.log.Errorf("Updating unassigned reason for record '%s' failed: %v", record.ID, err)
		return
	}
	s.log.Warnf("Perpetual task '%s' left unassigned: %s", record.ID, reason)
}

func (s *Scheduler) alertPayload(record *Record, message string) alert.Payload {
	return alert.Payload{
		AccountID: record.AccountID,
		TaskType:  record.Type,
		RecordID:  record.ID,
		Message:   message,
	}
}

func (s *Scheduler) emitAssignment(record *Record, delegateID string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.Event{
		Type:      events.AssignmentChanged,
		Timestamp: time.Now(),
		AccountID: record.AccountID,
		Payload: map[string]interface{}{
			"record_id":   record.ID,
			"task_type":   record.Type,
			"delegate_id": delegateID,
		},
	})
}

func (s *Scheduler) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.AssignOutcomes.WithLabelValues(outcome).Inc()
	}
}
