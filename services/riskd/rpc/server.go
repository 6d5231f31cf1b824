package rpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewServer builds a gRPC server with tracing and request logging
// interceptors and registers svc on it.
func NewServer(svc RiskServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	options := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			otelgrpc.UnaryServerInterceptor(),
			loggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			otelgrpc.StreamServerInterceptor(),
		),
	}
	options = append(options, opts...)
	server := grpc.NewServer(options...)
	RegisterRiskServiceServer(server, svc)
	return server
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		logger.LogAttrs(ctx, slog.LevelDebug, "rpc call",
			slog.String("method", info.FullMethod),
			slog.String("status", status.Code(err).String()),
			slog.Float64("duration_ms", float64(time.Since(started).Microseconds())/1000),
		)
		return resp, err
	}
}
