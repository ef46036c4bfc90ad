package service

import (
	"context"

	"relaychat/platform"
)

var logger = platform.Logger

type requestIDKey struct{}

// WithRequestID tags ctx so service log lines carry the originating request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "-"
}
