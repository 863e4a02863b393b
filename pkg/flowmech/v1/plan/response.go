package plan

// ResponseKind discriminates the variants of an ExecutableResponse.
type ResponseKind string

const (
	// ResponseKindAsync records that the step suspended on external
	// callbacks. Only this shape makes a node execution abortable.
	ResponseKindAsync ResponseKind = "ASYNC"
	// ResponseKindTask records that the step delegated work to a remote
	// task pool.
	ResponseKindTask ResponseKind = "TASK"
	// ResponseKindChildren records that the step spawned child node
	// executions and waits for them to finish.
	ResponseKindChildren ResponseKind = "CHILDREN"
	// ResponseKindSync records a synchronous progress marker.
	ResponseKindSync ResponseKind = "SYNC"
)

// AsyncResponse is the async-wait shape: the callback IDs the node is
// suspended on and an optional timeout hint for the external system.
type AsyncResponse struct {
	CallbackIDs []string `json:"callback_ids"`
	TimeoutMs   int64    `json:"timeout_ms,omitempty"`
}

// TaskResponse records the remote task a step queued.
type TaskResponse struct {
	TaskID       string       `json:"task_id"`
	TaskCategory TaskCategory `json:"task_category"`
}

// ChildrenResponse records spawned child node executions.
type ChildrenResponse struct {
	ChildNodeIDs []string `json:"child_node_ids"`
}

// SyncResponse is a synchronous progress marker with no payload beyond a note.
type SyncResponse struct {
	Note string `json:"note,omitempty"`
}

// ExecutableResponse is one entry in a node execution's append-only response
// log. Exactly one variant field matching Kind is set.
type ExecutableResponse struct {
	Kind     ResponseKind      `json:"kind"`
	Async    *AsyncResponse    `json:"async,omitempty"`
	Task     *TaskResponse     `json:"task,omitempty"`
	Children *ChildrenResponse `json:"children,omitempty"`
	Sync     *SyncResponse     `json:"sync,omitempty"`
}

// NewAsyncExecutableResponse builds the async-wait shape for the given callback IDs.
func NewAsyncExecutableResponse(callbackIDs []string) ExecutableResponse {
	return ExecutableResponse{Kind: ResponseKindAsync, Async: &AsyncResponse{CallbackIDs: callbackIDs}}
}

// NewTaskExecutableResponse records a queued remote task.
func NewTaskExecutableResponse(taskID string, category TaskCategory) ExecutableResponse {
	return ExecutableResponse{Kind: ResponseKindTask, Task: &TaskResponse{TaskID: taskID, TaskCategory: category}}
}
