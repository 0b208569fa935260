package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"macross/pkg/macross"
)

// Full method names of the Optimizer service.
const (
	OptimizerServiceName    = "macross.v1.Optimizer"
	OptimizerOptimizeMethod = "/macross.v1.Optimizer/Optimize"
	OptimizerBacktestMethod = "/macross.v1.Optimizer/Backtest"
	OptimizerGetRunMethod   = "/macross.v1.Optimizer/GetRun"
)

// OptimizerServer is the server API for the Optimizer service. Requests
// and responses carry the REST JSON bodies as structpb.Struct.
type OptimizerServer interface {
	Optimize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Backtest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// OptimizerServiceDesc describes the Optimizer service for grpc.Server.
var OptimizerServiceDesc = grpc.ServiceDesc{
	ServiceName: OptimizerServiceName,
	HandlerType: (*OptimizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Optimize", Handler: unaryHandler(OptimizerOptimizeMethod, OptimizerServer.Optimize)},
		{MethodName: "Backtest", Handler: unaryHandler(OptimizerBacktestMethod, OptimizerServer.Backtest)},
		{MethodName: "GetRun", Handler: unaryHandler(OptimizerGetRunMethod, OptimizerServer.GetRun)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "macross/v1/optimizer.proto",
}

// RegisterOptimizerServer registers srv on s.
func RegisterOptimizerServer(s grpc.ServiceRegistrar, srv OptimizerServer) {
	s.RegisterService(&OptimizerServiceDesc, srv)
}

type unaryMethod func(OptimizerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, m unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(OptimizerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(OptimizerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ---------------------------------------------------------------------------
// Server implementation
// ---------------------------------------------------------------------------

// OptimizerService implements OptimizerServer on top of a Service.
type OptimizerService struct {
	svc      Service
	defaults Defaults
	log      *slog.Logger
	now      func() time.Time
}

var _ OptimizerServer = (*OptimizerService)(nil)

// NewOptimizerService creates the gRPC service backed by svc.
func NewOptimizerService(svc Service, defaults Defaults, log *slog.Logger) *OptimizerService {
	if log == nil {
		log = slog.Default()
	}
	return &OptimizerService{svc: svc, defaults: defaults, log: log, now: time.Now}
}

// Optimize runs a grid search. The request carries OptimizeRequest fields.
func (s *OptimizerService) Optimize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body macross.OptimizeRequest
	if err := fromStruct(in, &body); err != nil {
		return nil, err
	}
	req, err := optimizeRequest(body, s.defaults, s.now())
	if err != nil {
		return nil, grpcError(err)
	}
	run, err := s.svc.Optimize(ctx, req)
	if err != nil {
		s.log.Debug("grpc optimize failed", "symbol", body.Symbol, "error", err)
		return nil, grpcError(err)
	}
	return toStruct(fromRun(run))
}

// Backtest replays one pair. The request carries BacktestRequest fields.
func (s *OptimizerService) Backtest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body macross.BacktestRequest
	if err := fromStruct(in, &body); err != nil {
		return nil, err
	}
	req, err := backtestRequest(body, s.now())
	if err != nil {
		return nil, grpcError(err)
	}
	rep, err := s.svc.Backtest(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(fromBacktest(rep, body.Rows))
}

// GetRun returns a stored run. The request carries {"id": "..."}.
func (s *OptimizerService) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	run, err := s.svc.Run(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(fromRun(run))
}

// grpcError converts an engine error using the same classification as the
// REST layer.
func grpcError(err error) error {
	var code codes.Code
	switch statusFor(err) {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusUnprocessableEntity:
		code = codes.FailedPrecondition
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusServiceUnavailable:
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func fromStruct(in *structpb.Struct, v any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encoding request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "decoding response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "building response: %v", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// OptimizerClient calls the Optimizer service.
type OptimizerClient struct {
	cc grpc.ClientConnInterface
}

// NewOptimizerClient wraps a client connection.
func NewOptimizerClient(cc grpc.ClientConnInterface) *OptimizerClient {
	return &OptimizerClient{cc: cc}
}

// Optimize runs a grid search on the server.
func (c *OptimizerClient) Optimize(ctx context.Context, req macross.OptimizeRequest, opts ...grpc.CallOption) (*macross.Run, error) {
	var run macross.Run
	if err := c.invoke(ctx, OptimizerOptimizeMethod, req, &run, opts...); err != nil {
		return nil, err
	}
	return &run, nil
}

// Backtest replays one pair on the server.
func (c *OptimizerClient) Backtest(ctx context.Context, req macross.BacktestRequest, opts ...grpc.CallOption) (*macross.BacktestResponse, error) {
	var resp macross.BacktestResponse
	if err := c.invoke(ctx, OptimizerBacktestMethod, req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun fetches a stored run.
func (c *OptimizerClient) GetRun(ctx context.Context, id string, opts ...grpc.CallOption) (*macross.Run, error) {
	var run macross.Run
	if err := c.invoke(ctx, OptimizerGetRunMethod, map[string]string{"id": id}, &run, opts...); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *OptimizerClient) invoke(ctx context.Context, method string, req, out any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
