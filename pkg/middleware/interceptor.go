package middleware

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ContextFunc copies request metadata into the context.
type ContextFunc func(ctx context.Context) context.Context

// ContextInterceptor applies each ContextFunc before the handler runs.
func ContextInterceptor(fns ...ContextFunc) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		for _, fn := range fns {
			ctx = fn(ctx)
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each unary call with its status code and latency.
func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("grpc call", fields...)
		}
		return resp, err
	}
}
