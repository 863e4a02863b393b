package boundary

import (
	"context"
	"time"

	"github.com/flowmech-labs/flowmech/internal/retry"
	flowmech "github.com/flowmech-labs/flowmech/pkg/flowmech/v1"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is the gRPC client side of the node execution service. Transient
// transport failures are retried with backoff; failed preconditions and
// invalid arguments are surfaced immediately as the matching typed error.
type Client struct {
	conn  *grpc.ClientConn
	retry *retry.Helper
	cfg   retry.Config
}

// defaultRetryConfig keeps retries short: the callers of this boundary are
// external systems delivering callbacks, which retry on their own schedule.
func defaultRetryConfig() retry.Config {
	return retry.Config{
		Attempts:      3,
		Delay:         200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.2,
		OnError:       true,
		Name:          "node-execution-client",
	}
}

// NewClient wraps an established connection. The connection's lifecycle
// stays with the caller.
func NewClient(conn *grpc.ClientConn, log fmlog.Logger) *Client {
	if conn == nil || log == nil {
		panic("boundary.NewClient requires a connection and a logger")
	}
	return &Client{
		conn:  conn,
		retry: retry.NewHelper(log.With("component", "NodeExecutionClient")),
		cfg:   defaultRetryConfig(),
	}
}

var _ flowmech.NodeExecutionService = (*Client)(nil)

// QueueNodeExecution implements flowmech.NodeExecutionService.
func (c *Client) QueueNodeExecution(ctx context.Context, node *plan.NodeExecution) error {
	req := &QueueNodeExecutionRequest{NodeExecution: node}
	return c.invoke(ctx, "QueueNodeExecution", req, new(QueueNodeExecutionResponse))
}

// QueueTask implements flowmech.NodeExecutionService.
func (c *Client) QueueTask(ctx context.Context, nodeExecutionID string, setupAbstractions map[string]string, task *plan.TaskRequest) (string, error) {
	req := &QueueTaskRequest{
		NodeExecutionID:   nodeExecutionID,
		SetupAbstractions: setupAbstractions,
		Task:              task,
	}
	resp := new(QueueTaskResponse)
	if err := c.invoke(ctx, "QueueTask", req, resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// AddExecutableResponse implements flowmech.NodeExecutionService.
func (c *Client) AddExecutableResponse(ctx context.Context, nodeExecutionID string, st plan.Status, resp plan.ExecutableResponse, callbackIDs []string) error {
	req := &AddExecutableResponseRequest{
		NodeExecutionID: nodeExecutionID,
		Status:          st,
		Response:        resp,
		CallbackIDs:     callbackIDs,
	}
	return c.invoke(ctx, "AddExecutableResponse", req, new(AddExecutableResponseResponse))
}

// HandleStepResponse implements flowmech.NodeExecutionService.
func (c *Client) HandleStepResponse(ctx context.Context, nodeExecutionID string, stepResponse *plan.StepResponse) error {
	req := &HandleStepResponseRequest{
		NodeExecutionID: nodeExecutionID,
		StepResponse:    stepResponse,
	}
	return c.invoke(ctx, "HandleStepResponse", req, new(HandleStepResponseResponse))
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.retry.Do(ctx, c.cfg, func(ctx context.Context) error {
		err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, grpc.CallContentSubtype(CodecName))
		if err != nil {
			return fromStatusError(err)
		}
		return nil
	})
}

// fromStatusError maps status codes back onto the typed errors the rest of
// the system branches on, so the retry predicate and callers behave the same
// whether the engine is in-process or remote.
func fromStatusError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmerrors.NewNotFoundError("node execution", st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmerrors.NewInvalidRequestError(st.Message(), err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmerrors.NewTransientError(st.Message(), err)
	default:
		return err
	}
}
