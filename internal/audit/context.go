package audit

import "context"

// RequestInfo identifies who performed a mutation and from where.
type RequestInfo struct {
	ActorID   string
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo returns a context carrying info for audit entries.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the request info stored in ctx, if any.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
