package boundary

import (
	"context"
	"errors"
	"net"

	flowmech "github.com/flowmech-labs/flowmech/pkg/flowmech/v1"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "flowmech.v1.NodeExecutionService"

// Server exposes a NodeExecutionService over gRPC.
type Server struct {
	service flowmech.NodeExecutionService
	log     fmlog.Logger

	grpcServer *grpc.Server
}

// NewServer wraps the given service. opts are passed through to the
// underlying grpc.Server.
func NewServer(service flowmech.NodeExecutionService, log fmlog.Logger, opts ...grpc.ServerOption) *Server {
	if service == nil || log == nil {
		panic("boundary.NewServer requires a service and a logger")
	}
	s := &Server{
		service:    service,
		log:        log.With("component", "NodeExecutionServer"),
		grpcServer: grpc.NewServer(opts...),
	}
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Serve blocks serving the given listener until Stop is called or the
// listener fails.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Infof("Node execution service listening on %s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

// ListenAndServe listens on addr and serves until Stop.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmerrors.NewConfigError("node execution service listen error", err)
	}
	return s.Serve(lis)
}

// Stop drains in-flight RPCs and shuts the server down.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueueNodeExecution", Handler: queueNodeExecutionHandler},
		{MethodName: "QueueTask", Handler: queueTaskHandler},
		{MethodName: "AddExecutableResponse", Handler: addExecutableResponseHandler},
		{MethodName: "HandleStepResponse", Handler: handleStepResponseHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func queueNodeExecutionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(QueueNodeExecutionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, in interface{}) (interface{}, error) {
		return srv.(*Server).queueNodeExecution(ctx, in.(*QueueNodeExecutionRequest))
	}
	if interceptor == nil {
		return handler(ctx, req)
	}
	return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/QueueNodeExecution"}, handler)
}

func queueTaskHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(QueueTaskRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, in interface{}) (interface{}, error) {
		return srv.(*Server).queueTask(ctx, in.(*QueueTaskRequest))
	}
	if interceptor == nil {
		return handler(ctx, req)
	}
	return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/QueueTask"}, handler)
}

func addExecutableResponseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(AddExecutableResponseRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, in interface{}) (interface{}, error) {
		return srv.(*Server).addExecutableResponse(ctx, in.(*AddExecutableResponseRequest))
	}
	if interceptor == nil {
		return handler(ctx, req)
	}
	return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/AddExecutableResponse"}, handler)
}

func handleStepResponseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(HandleStepResponseRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, in interface{}) (interface{}, error) {
		return srv.(*Server).handleStepResponse(ctx, in.(*HandleStepResponseRequest))
	}
	if interceptor == nil {
		return handler(ctx, req)
	}
	return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/HandleStepResponse"}, handler)
}

func (s *Server) queueNodeExecution(ctx context.Context, req *QueueNodeExecutionRequest) (*QueueNodeExecutionResponse, error) {
	if req.NodeExecution == nil {
		return nil, status.Error(codes.InvalidArgument, "node_execution is required")
	}
	if err := s.service.QueueNodeExecution(ctx, req.NodeExecution); err != nil {
		return nil, s.toStatusError(err)
	}
	return &QueueNodeExecutionResponse{NodeExecutionID: req.NodeExecution.ID}, nil
}

func (s *Server) queueTask(ctx context.Context, req *QueueTaskRequest) (*QueueTaskResponse, error) {
	if req.NodeExecutionID == "" || req.Task == nil {
		return nil, status.Error(codes.InvalidArgument, "node_execution_id and task are required")
	}
	taskID, err := s.service.QueueTask(ctx, req.NodeExecutionID, req.SetupAbstractions, req.Task)
	if err != nil {
		return nil, s.toStatusError(err)
	}
	return &QueueTaskResponse{TaskID: taskID}, nil
}

func (s *Server) addExecutableResponse(ctx context.Context, req *AddExecutableResponseRequest) (*AddExecutableResponseResponse, error) {
	if req.NodeExecutionID == "" {
		return nil, status.Error(codes.InvalidArgument, "node_execution_id is required")
	}
	if err := s.service.AddExecutableResponse(ctx, req.NodeExecutionID, req.Status, req.Response, req.CallbackIDs); err != nil {
		return nil, s.toStatusError(err)
	}
	return &AddExecutableResponseResponse{}, nil
}

func (s *Server) handleStepResponse(ctx context.Context, req *HandleStepResponseRequest) (*HandleStepResponseResponse, error) {
	if req.NodeExecutionID == "" || req.StepResponse == nil {
		return nil, status.Error(codes.InvalidArgument, "node_execution_id and step_response are required")
	}
	if err := s.service.HandleStepResponse(ctx, req.NodeExecutionID, req.StepResponse); err != nil {
		return nil, s.toStatusError(err)
	}
	return &HandleStepResponseResponse{}, nil
}

// toStatusError maps the typed domain errors onto gRPC status codes so
// clients can tell caller bugs from transient conditions.
func (s *Server) toStatusError(err error) error {
	var validationErr *fmerrors.ValidationError
	var transitionErr *fmerrors.InvalidTransitionError

	switch {
	case fmerrors.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &transitionErr), fmerrors.IsInvalidRequest(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case fmerrors.IsTransient(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.log.Errorf("Unclassified service error: %v", err)
		return status.Error(codes.Internal, err.Error())
	}
}
