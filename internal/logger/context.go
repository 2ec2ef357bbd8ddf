package logger

import "context"

type requestIDKey struct{}

// WithRequestID stores the request ID used to correlate log lines across
// the lifecycle of one API call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "" when the call
// did not come through the HTTP middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
