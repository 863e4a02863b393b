package iterator_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/flowmech-labs/flowmech/internal/iterator"
	"github.com/flowmech-labs/flowmech/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handledSet struct {
	mu  sync.Mutex
	ids []string
}

func (h *handledSet) add(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, id)
}

func (h *handledSet) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}

func TestPump_TickDrivesScan(t *testing.T) {
	log := logger.NewLogger("debug", "text", os.Stderr)
	handled := &handledSet{}

	pump := iterator.New(iterator.Config{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		PoolSize: 2,
		Mode:     iterator.ModeRegular,
	}, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}, func(ctx context.Context, id string) {
		handled.add(id)
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pump.Start(ctx)
	defer pump.Stop()

	require.Eventually(t, func() bool {
		return handled.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPump_WakeupScansWithoutWaitingForTick(t *testing.T) {
	log := logger.NewLogger("debug", "text", os.Stderr)
	handled := &handledSet{}

	pump := iterator.New(iterator.Config{
		Name:     "test",
		Interval: time.Hour,
		PoolSize: 1,
		Mode:     iterator.ModeRegular,
	}, func(ctx context.Context) ([]string, error) {
		return []string{"nudged"}, nil
	}, func(ctx context.Context, id string) {
		handled.add(id)
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pump.Start(ctx)
	defer pump.Stop()

	pump.Wakeup()

	require.Eventually(t, func() bool {
		return handled.count() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPump_SkipMissedDropsOverlappingTicks(t *testing.T) {
	log := logger.NewLogger("debug", "text", os.Stderr)

	var mu sync.Mutex
	scans := 0
	block := make(chan struct{})

	pump := iterator.New(iterator.Config{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		PoolSize: 1,
		Mode:     iterator.ModeSkipMissed,
	}, func(ctx context.Context) ([]string, error) {
		mu.Lock()
		scans++
		mu.Unlock()
		// Stall the scan so several ticks fire while it is in flight.
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, nil
	}, func(ctx context.Context, id string) {}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pump.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	scansWhileBlocked := scans
	mu.Unlock()
	assert.Equal(t, 1, scansWhileBlocked, "ticks during an in-flight scan must be dropped")

	close(block)
	pump.Stop()
}

func TestPump_StopWaitsForInFlightHandlers(t *testing.T) {
	log := logger.NewLogger("debug", "text", os.Stderr)

	started := make(chan struct{})
	var finished sync.WaitGroup
	finished.Add(1)

	pump := iterator.New(iterator.Config{
		Name:     "test",
		Interval: time.Hour,
		PoolSize: 1,
		Mode:     iterator.ModeRegular,
	}, func(ctx context.Context) ([]string, error) {
		return []string{"one"}, nil
	}, func(ctx context.Context, id string) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Done()
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pump.Start(ctx)
	pump.Wakeup()

	<-started
	pump.Stop()

	// Stop returning means the handler completed; Wait must not block.
	done := make(chan struct{})
	go func() {
		finished.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler still running after Stop returned")
	}
}
