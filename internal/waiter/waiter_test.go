package waiter_test

import (
	"context"
	"os"
	"sync"
	"testing"

	intwaiter "github.com/flowmech-labs/flowmech/internal/waiter"

	"github.com/flowmech-labs/flowmech/internal/logger"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*intwaiter.Engine, prometheus.Counter) {
	t.Helper()
	log := logger.NewLogger("debug", "text", os.Stderr)
	anomalies := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_waiter_anomalies_total"})
	return intwaiter.NewEngine(log, nil, anomalies), anomalies
}

type recordingCallback struct {
	mu        sync.Mutex
	calls     int
	responses map[string]waiter.ResponseData
}

func (c *recordingCallback) Notify(ctx context.Context, responses map[string]waiter.ResponseData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.responses = responses
	return nil
}

func (c *recordingCallback) snapshot() (int, map[string]waiter.ResponseData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.responses
}

func TestWaitForAll_SingleCorrelationID(t *testing.T) {
	engine, _ := newTestEngine(t)
	cb := &recordingCallback{}

	require.NoError(t, engine.WaitForAll(context.Background(), cb, nil, "cb-1"))
	require.Equal(t, 1, engine.PendingCount())

	engine.DoneWith(context.Background(), "cb-1", waiter.ResponseData{Data: []byte(`{"ok":true}`)})

	calls, responses := cb.snapshot()
	assert.Equal(t, 1, calls)
	require.Contains(t, responses, "cb-1")
	assert.JSONEq(t, `{"ok":true}`, string(responses["cb-1"].Data))
	assert.Equal(t, 0, engine.PendingCount())
}

func TestWaitForAll_FiresOnlyWhenWholeSetResolves(t *testing.T) {
	engine, _ := newTestEngine(t)
	cb := &recordingCallback{}

	require.NoError(t, engine.WaitForAll(context.Background(), cb, nil, "cb-a", "cb-b", "cb-c"))

	engine.DoneWith(context.Background(), "cb-a", waiter.ResponseData{Data: []byte("a")})
	engine.DoneWith(context.Background(), "cb-b", waiter.ResponseData{Data: []byte("b")})

	calls, _ := cb.snapshot()
	assert.Equal(t, 0, calls, "callback must not fire while an id is still pending")

	engine.DoneWith(context.Background(), "cb-c", waiter.ResponseData{Data: []byte("c")})

	calls, responses := cb.snapshot()
	assert.Equal(t, 1, calls)
	assert.Len(t, responses, 3)
	assert.Equal(t, []byte("a"), responses["cb-a"].Data)
	assert.Equal(t, []byte("c"), responses["cb-c"].Data)
}

func TestDoneWith_DuplicateResolutionIsAnomaly(t *testing.T) {
	engine, anomalies := newTestEngine(t)
	cb := &recordingCallback{}

	require.NoError(t, engine.WaitForAll(context.Background(), cb, nil, "cb-1"))
	engine.DoneWith(context.Background(), "cb-1", waiter.ResponseData{})
	engine.DoneWith(context.Background(), "cb-1", waiter.ResponseData{})

	calls, _ := cb.snapshot()
	assert.Equal(t, 1, calls, "callback must fire exactly once")
	assert.Equal(t, float64(1), testutil.ToFloat64(anomalies))
}

func TestDoneWith_UnknownIDIsAnomaly(t *testing.T) {
	engine, anomalies := newTestEngine(t)

	engine.DoneWith(context.Background(), "never-registered", waiter.ResponseData{})

	assert.Equal(t, float64(1), testutil.ToFloat64(anomalies))
}

func TestWaitForAll_RegistrationIsAllOrNothing(t *testing.T) {
	engine, _ := newTestEngine(t)
	first := &recordingCallback{}
	second := &recordingCallback{}

	require.NoError(t, engine.WaitForAll(context.Background(), first, nil, "cb-1"))

	err := engine.WaitForAll(context.Background(), second, nil, "cb-1", "cb-2")
	require.Error(t, err)
	assert.True(t, fmerrors.IsInvalidRequest(err))

	// cb-2 must not have been half-registered by the failed call.
	require.NoError(t, engine.WaitForAll(context.Background(), second, nil, "cb-2"))
}

func TestWaitForAll_RejectsEmptyInput(t *testing.T) {
	engine, _ := newTestEngine(t)
	cb := &recordingCallback{}

	assert.Error(t, engine.WaitForAll(context.Background(), nil, nil, "cb-1"))
	assert.Error(t, engine.WaitForAll(context.Background(), cb, nil))
	assert.Error(t, engine.WaitForAll(context.Background(), cb, nil, ""))
}

func TestProgressOn_ForwardsToProgressCallback(t *testing.T) {
	engine, _ := newTestEngine(t)
	cb := &recordingCallback{}

	var mu sync.Mutex
	var gotID string
	var gotUpdate waiter.ResponseData
	progress := waiter.ProgressCallbackFunc(func(ctx context.Context, correlationID string, update waiter.ResponseData) {
		mu.Lock()
		defer mu.Unlock()
		gotID = correlationID
		gotUpdate = update
	})

	require.NoError(t, engine.WaitForAll(context.Background(), cb, progress, "cb-1"))

	engine.ProgressOn(context.Background(), "cb-1", waiter.ResponseData{Data: []byte("halfway")})

	mu.Lock()
	assert.Equal(t, "cb-1", gotID)
	assert.Equal(t, []byte("halfway"), gotUpdate.Data)
	mu.Unlock()

	// Progress never consumes the registration.
	calls, _ := cb.snapshot()
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, engine.PendingCount())

	// Unknown IDs are dropped silently.
	engine.ProgressOn(context.Background(), "unknown", waiter.ResponseData{})
}

func TestWaitForAll_FailedResponseCarriesError(t *testing.T) {
	engine, _ := newTestEngine(t)
	cb := &recordingCallback{}

	require.NoError(t, engine.WaitForAll(context.Background(), cb, nil, "cb-1", "cb-2"))
	engine.DoneWith(context.Background(), "cb-1", waiter.ResponseData{Data: []byte("fine")})
	engine.DoneWith(context.Background(), "cb-2", waiter.ResponseData{Error: "remote pool exploded"})

	_, responses := cb.snapshot()
	assert.False(t, responses["cb-1"].Failed())
	assert.True(t, responses["cb-2"].Failed())
}
