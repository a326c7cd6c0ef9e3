package auth

import (
	"context"
	"strconv"

	"google.golang.org/grpc/metadata"
)

type ctxKey string

const (
	storeIDKey ctxKey = "shopify_store_id"
	userIDKey  ctxKey = "user_id"

	StoreIDHeader = "x-shopify-store-id"
	UserIDHeader  = "x-user-id"
)

// WithStoreID and WithUserID are used by the interceptor and by tests.
func WithStoreID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, storeIDKey, id)
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetStoreID returns the caller's store, from context or incoming metadata.
// Zero means the caller did not say.
func GetStoreID(ctx context.Context) int64 {
	if val, ok := ctx.Value(storeIDKey).(int64); ok {
		return val
	}
	return int64FromMetadata(ctx, StoreIDHeader)
}

// GetUserID returns nil for system callers (scheduler, kafka).
func GetUserID(ctx context.Context) *int64 {
	if val, ok := ctx.Value(userIDKey).(int64); ok {
		return &val
	}
	if id := int64FromMetadata(ctx, UserIDHeader); id != 0 {
		return &id
	}
	return nil
}

func int64FromMetadata(ctx context.Context, key string) int64 {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// FromMetadata lifts the store and user headers into typed context values.
func FromMetadata(ctx context.Context) context.Context {
	if id := int64FromMetadata(ctx, StoreIDHeader); id != 0 {
		ctx = WithStoreID(ctx, id)
	}
	if id := int64FromMetadata(ctx, UserIDHeader); id != 0 {
		ctx = WithUserID(ctx, id)
	}
	return ctx
}
