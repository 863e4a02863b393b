// Package waiter defines the public wait/notify correlation contracts: the
// engine interface that registrants and producers share, and the callback
// interfaces invoked when a correlation set completes.
package waiter

import "context"

// ResponseData is the opaque result payload a producer reports for one
// correlation ID. Data is a serialized blob the consumer decodes; Error is
// set when the producer reports failure for that ID.
type ResponseData struct {
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the producer marked this response as an error.
func (r ResponseData) Failed() bool { return r.Error != "" }

// NotifyCallback is invoked exactly once, after every correlation ID of a
// wait registration has been resolved, with the full map of results.
type NotifyCallback interface {
	Notify(ctx context.Context, responses map[string]ResponseData) error
}

// ProgressCallback receives intermediate updates for a still-pending
// correlation ID. Updates are advisory and may be dropped.
type ProgressCallback interface {
	Progress(ctx context.Context, correlationID string, update ResponseData)
}

// NotifyCallbackFunc adapts a function to the NotifyCallback interface.
type NotifyCallbackFunc func(ctx context.Context, responses map[string]ResponseData) error

func (f NotifyCallbackFunc) Notify(ctx context.Context, responses map[string]ResponseData) error {
	return f(ctx, responses)
}

// ProgressCallbackFunc adapts a function to the ProgressCallback interface.
type ProgressCallbackFunc func(ctx context.Context, correlationID string, update ResponseData)

func (f ProgressCallbackFunc) Progress(ctx context.Context, correlationID string, update ResponseData) {
	f(ctx, correlationID, update)
}

// Engine is the wait/notify correlation engine. Registrants declare interest
// in a set of correlation IDs; producers resolve IDs as work completes. The
// callback fires exactly once, when the last pending ID resolves.
type Engine interface {
	// WaitForAll registers callback to fire once every listed correlation ID
	// has been resolved via DoneWith. progress may be nil. Registering an ID
	// that is already pending for another registration is an error.
	WaitForAll(ctx context.Context, callback NotifyCallback, progress ProgressCallback, correlationIDs ...string) error
	// DoneWith resolves one correlation ID with its result. Resolving an
	// unknown or already-consumed ID is recorded as an anomaly, never an
	// error for the producer.
	DoneWith(ctx context.Context, correlationID string, result ResponseData)
	// ProgressOn forwards an intermediate update for a pending ID to its
	// registration's progress callback, if any.
	ProgressOn(ctx context.Context, correlationID string, update ResponseData)
}
