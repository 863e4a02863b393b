package boundary_test

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"

	"github.com/flowmech-labs/flowmech/internal/boundary"
	"github.com/flowmech-labs/flowmech/internal/logger"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// fakeService records every call and answers with configurable results.
type fakeService struct {
	mu sync.Mutex

	queuedNodes    []*plan.NodeExecution
	queuedTasks    []*plan.TaskRequest
	addedResponses []plan.ExecutableResponse
	stepResponses  []*plan.StepResponse

	taskID string
	err    error
}

func (f *fakeService) QueueNodeExecution(ctx context.Context, node *plan.NodeExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queuedNodes = append(f.queuedNodes, node)
	return f.err
}

func (f *fakeService) QueueTask(ctx context.Context, nodeExecutionID string, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queuedTasks = append(f.queuedTasks, req)
	return f.taskID, f.err
}

func (f *fakeService) AddExecutableResponse(ctx context.Context, nodeExecutionID string, status plan.Status, resp plan.ExecutableResponse, callbackIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedResponses = append(f.addedResponses, resp)
	return f.err
}

func (f *fakeService) HandleStepResponse(ctx context.Context, nodeExecutionID string, stepResponse *plan.StepResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepResponses = append(f.stepResponses, stepResponse)
	return f.err
}

// setupBoundary serves the fake over an in-memory listener and returns a
// connected client.
func setupBoundary(t *testing.T, service *fakeService) *boundary.Client {
	t.Helper()
	log := logger.NewLogger("debug", "text", os.Stderr)

	lis := bufconn.Listen(1024 * 1024)
	server := boundary.NewServer(service, log)
	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("server stopped: %v", err)
		}
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return boundary.NewClient(conn, log)
}

func TestBoundary_QueueNodeExecutionRoundTrip(t *testing.T) {
	service := &fakeService{}
	client := setupBoundary(t, service)

	node := &plan.NodeExecution{
		ID:              "node-1",
		PlanExecutionID: "plan-1",
		StepType:        "HTTP",
	}
	require.NoError(t, client.QueueNodeExecution(context.Background(), node))

	require.Len(t, service.queuedNodes, 1)
	assert.Equal(t, "node-1", service.queuedNodes[0].ID)
	assert.Equal(t, "plan-1", service.queuedNodes[0].PlanExecutionID)
	assert.Equal(t, "HTTP", service.queuedNodes[0].StepType)
}

func TestBoundary_QueueTaskRoundTrip(t *testing.T) {
	service := &fakeService{taskID: "task-42"}
	client := setupBoundary(t, service)

	taskID, err := client.QueueTask(context.Background(), "node-1",
		map[string]string{"accountId": "acct-1"},
		&plan.TaskRequest{Category: plan.TaskCategoryDelegate, Type: "inventory"})
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)

	require.Len(t, service.queuedTasks, 1)
	assert.Equal(t, plan.TaskCategoryDelegate, service.queuedTasks[0].Category)
}

func TestBoundary_AddExecutableResponseRoundTrip(t *testing.T) {
	service := &fakeService{}
	client := setupBoundary(t, service)

	resp := plan.NewAsyncExecutableResponse([]string{"cb-1", "cb-2"})
	err := client.AddExecutableResponse(context.Background(), "node-1", plan.StatusAsyncWaiting, resp, []string{"cb-1", "cb-2"})
	require.NoError(t, err)

	require.Len(t, service.addedResponses, 1)
	got := service.addedResponses[0]
	assert.Equal(t, plan.ResponseKindAsync, got.Kind)
	require.NotNil(t, got.Async)
	assert.Equal(t, []string{"cb-1", "cb-2"}, got.Async.CallbackIDs)
}

func TestBoundary_HandleStepResponseRoundTrip(t *testing.T) {
	service := &fakeService{}
	client := setupBoundary(t, service)

	err := client.HandleStepResponse(context.Background(), "node-1", &plan.StepResponse{
		Status:      plan.StatusFailed,
		FailureInfo: &plan.FailureInfo{Message: "connection refused"},
	})
	require.NoError(t, err)

	require.Len(t, service.stepResponses, 1)
	assert.Equal(t, plan.StatusFailed, service.stepResponses[0].Status)
	assert.Equal(t, "connection refused", service.stepResponses[0].FailureMessage())
}

func TestBoundary_MissingFieldsRejected(t *testing.T) {
	service := &fakeService{}
	client := setupBoundary(t, service)
	ctx := context.Background()

	err := client.QueueNodeExecution(ctx, nil)
	assert.True(t, fmerrors.IsInvalidRequest(err), "nil node must map back to an invalid request")

	_, err = client.QueueTask(ctx, "", nil, nil)
	assert.True(t, fmerrors.IsInvalidRequest(err))

	err = client.HandleStepResponse(ctx, "node-1", nil)
	assert.True(t, fmerrors.IsInvalidRequest(err))

	assert.Empty(t, service.queuedNodes)
	assert.Empty(t, service.queuedTasks)
	assert.Empty(t, service.stepResponses)
}

func TestBoundary_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		check      func(t *testing.T, err error)
	}{
		{
			name:       "not found",
			serviceErr: fmerrors.NewNotFoundError("node execution", "node-1"),
			check: func(t *testing.T, err error) {
				assert.True(t, fmerrors.IsNotFound(err))
			},
		},
		{
			name:       "invalid request",
			serviceErr: fmerrors.NewInvalidRequestError("node execution 'node-1' has already ended", nil),
			check: func(t *testing.T, err error) {
				assert.True(t, fmerrors.IsInvalidRequest(err))
				assert.Contains(t, err.Error(), "already ended")
			},
		},
		{
			name:       "invalid transition",
			serviceErr: fmerrors.NewInvalidTransitionError("node-1", "QUEUED", "SUCCEEDED"),
			check: func(t *testing.T, err error) {
				assert.True(t, fmerrors.IsInvalidRequest(err), "transition violations are failed preconditions")
			},
		},
		{
			name:       "validation",
			serviceErr: fmerrors.NewValidationError("step response must carry a terminal status", nil),
			check: func(t *testing.T, err error) {
				assert.True(t, fmerrors.IsInvalidRequest(err))
			},
		},
		{
			name:       "unclassified",
			serviceErr: errors.New("disk on fire"),
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.False(t, fmerrors.IsInvalidRequest(err))
				assert.False(t, fmerrors.IsNotFound(err))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeService{err: tc.serviceErr}
			client := setupBoundary(t, service)

			err := client.QueueNodeExecution(context.Background(), &plan.NodeExecution{ID: "node-1"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}
