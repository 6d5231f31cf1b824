// Package rpc exposes the risk engine over gRPC. Messages are plain JSON
// structs carried by the codec registered in this package, so clients must
// call with grpc.CallContentSubtype(CodecName).
package rpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"klendrisk/native/lending"
	"klendrisk/services/riskd/registry"
)

const ServiceName = "klendrisk.v1.RiskService"

// ObligationRequest addresses one obligation. A zero Slot selects the slot of
// the loaded snapshot.
type ObligationRequest struct {
	Market     lending.Address `json:"market"`
	Obligation lending.Address `json:"obligation"`
	Slot       uint64          `json:"slot,omitempty"`
}

type ObligationStatsResponse struct {
	Market         lending.Address         `json:"market"`
	Obligation     lending.Address         `json:"obligation"`
	Slot           uint64                  `json:"slot"`
	ElevationGroup uint32                  `json:"elevationGroup"`
	Stats          lending.ObligationStats `json:"stats"`
	Deposits       lending.PositionMap     `json:"deposits"`
	Borrows        lending.PositionMap     `json:"borrows"`
}

type SimulateRequest struct {
	ObligationRequest
	Action lending.ActionRequest `json:"action"`
}

type SimulateResponse struct {
	Slot   uint64                   `json:"slot"`
	Result lending.SimulationResult `json:"result"`
}

type BorrowPowerRequest struct {
	ObligationRequest
	Mint  lending.Address `json:"mint"`
	Group *uint32         `json:"elevationGroup,omitempty"`
}

type BorrowPowerResponse struct {
	Slot           uint64          `json:"slot"`
	ElevationGroup *uint32         `json:"elevationGroup,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
}

// RiskServiceServer is the server API for klendrisk.v1.RiskService.
type RiskServiceServer interface {
	ObligationStats(context.Context, *ObligationRequest) (*ObligationStatsResponse, error)
	Simulate(context.Context, *SimulateRequest) (*SimulateResponse, error)
	BorrowPower(context.Context, *BorrowPowerRequest) (*BorrowPowerResponse, error)
}

// Service answers RiskService calls from the engine and the registry backing
// it.
type Service struct {
	engine   *lending.Engine
	registry *registry.Registry
	logger   *slog.Logger
}

func New(engine *lending.Engine, reg *registry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, registry: reg, logger: logger}
}

func (s *Service) query(req ObligationRequest) (lending.Query, error) {
	market := lending.Address(strings.TrimSpace(string(req.Market)))
	obligation := lending.Address(strings.TrimSpace(string(req.Obligation)))
	if market == "" || obligation == "" {
		return lending.Query{}, status.Error(codes.InvalidArgument, "market and obligation are required")
	}
	entry, err := s.registry.Get(market)
	if err != nil {
		return lending.Query{}, toStatus(err)
	}
	slot := req.Slot
	if slot == 0 {
		slot = entry.Slot
	}
	return lending.Query{Market: market, Obligation: obligation, Slot: slot}, nil
}

func (s *Service) fail(method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error("rpc call failed", slog.String("method", method), slog.Any("error", err))
	}
	return st
}

func (s *Service) ObligationStats(ctx context.Context, req *ObligationRequest) (*ObligationStatsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	q, err := s.query(*req)
	if err != nil {
		return nil, err
	}
	_, o, err := s.engine.Obligation(q)
	if err != nil {
		return nil, s.fail("ObligationStats", err)
	}
	return &ObligationStatsResponse{
		Market:         q.Market,
		Obligation:     q.Obligation,
		Slot:           q.Slot,
		ElevationGroup: o.ElevationGroup(),
		Stats:          o.Stats(),
		Deposits:       o.Deposits(),
		Borrows:        o.Borrows(),
	}, nil
}

func (s *Service) Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	q, err := s.query(req.ObligationRequest)
	if err != nil {
		return nil, err
	}
	action, err := req.Action.Decode()
	if err != nil {
		return nil, toStatus(err)
	}
	result, err := s.engine.Simulate(q, action)
	if err != nil {
		return nil, s.fail("Simulate", err)
	}
	return &SimulateResponse{Slot: q.Slot, Result: result}, nil
}

func (s *Service) BorrowPower(ctx context.Context, req *BorrowPowerRequest) (*BorrowPowerResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	q, err := s.query(req.ObligationRequest)
	if err != nil {
		return nil, err
	}
	q.Mint = lending.Address(strings.TrimSpace(string(req.Mint)))
	if q.Mint == "" {
		return nil, status.Error(codes.InvalidArgument, "mint is required")
	}
	q.Group = req.Group
	amount, err := s.engine.BorrowPower(q)
	if err != nil {
		return nil, s.fail("BorrowPower", err)
	}
	return &BorrowPowerResponse{Slot: q.Slot, ElevationGroup: req.Group, Amount: amount}, nil
}

// RegisterRiskServiceServer attaches srv to the gRPC server.
func RegisterRiskServiceServer(s grpc.ServiceRegistrar, srv RiskServiceServer) {
	s.RegisterService(&RiskServiceDesc, srv)
}

var RiskServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ObligationStats", Handler: obligationStatsHandler},
		{MethodName: "Simulate", Handler: simulateHandler},
		{MethodName: "BorrowPower", Handler: borrowPowerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "klendrisk/v1/risk.json",
}

func obligationStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ObligationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RiskServiceServer).ObligationStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ObligationStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RiskServiceServer).ObligationStats(ctx, req.(*ObligationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func simulateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SimulateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RiskServiceServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Simulate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RiskServiceServer).Simulate(ctx, req.(*SimulateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func borrowPowerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BorrowPowerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RiskServiceServer).BorrowPower(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/BorrowPower"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RiskServiceServer).BorrowPower(ctx, req.(*BorrowPowerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a thin RiskService client over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) ObligationStats(ctx context.Context, in *ObligationRequest, opts ...grpc.CallOption) (*ObligationStatsResponse, error) {
	out := new(ObligationStatsResponse)
	if err := c.invoke(ctx, "ObligationStats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Simulate(ctx context.Context, in *SimulateRequest, opts ...grpc.CallOption) (*SimulateResponse, error) {
	out := new(SimulateResponse)
	if err := c.invoke(ctx, "Simulate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BorrowPower(ctx context.Context, in *BorrowPowerRequest, opts ...grpc.CallOption) (*BorrowPowerResponse, error) {
	out := new(BorrowPowerResponse)
	if err := c.invoke(ctx, "BorrowPower", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
